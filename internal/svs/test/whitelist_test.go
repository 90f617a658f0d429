package test

import (
	"errors"
	"os"
	"testing"

	"github.com/jbarry1506/project-medid/internal/svs"
)

func TestFilterDescription(t *testing.T) {
	allowed := map[string]bool{"Date": true, "AppMag": true}
	filtered, err := svs.FilterDescription("Aperio Image|Date=1/1/2020|ScanScope ID=ABC123|AppMag=20", allowed)
	if err != nil {
		t.Fatalf("Error filtering description: %s", err)
	}
	if filtered != "Aperio Image|Date=1/1/2020|AppMag=20" {
		t.Fatalf("Unexpected filtered description: %s", filtered)
	}
}

func TestFilterDescription_TrimsKeys(t *testing.T) {
	allowed := map[string]bool{"AppMag": true}
	filtered, err := svs.FilterDescription("Aperio Image|AppMag = 20|User = someone", allowed)
	if err != nil {
		t.Fatalf("Error filtering description: %s", err)
	}
	if filtered != "Aperio Image|AppMag = 20" {
		t.Fatalf("Kept segments must be verbatim, got: %s", filtered)
	}
}

func TestFilterDescription_FirstSegmentVerbatim(t *testing.T) {
	raw := "Aperio Image Library v12.0.15\r\n2048x1536 JPEG/RGB Q=30"
	filtered, err := svs.FilterDescription(raw, map[string]bool{})
	if err != nil {
		t.Fatalf("Error filtering description: %s", err)
	}
	if filtered != raw {
		t.Fatalf("First segment must be preserved verbatim, got: %s", filtered)
	}
}

func TestFilterDescription_MissingEquals(t *testing.T) {
	_, err := svs.FilterDescription("A|BadSegment|Date=1", map[string]bool{"Date": true})
	if !errors.Is(err, svs.ErrMalformedDescription) {
		t.Fatalf("Expecting ErrMalformedDescription but got %v", err)
	}
}

func TestFilterDescription_DoubleEquals(t *testing.T) {
	_, err := svs.FilterDescription("A|Date=1=2", map[string]bool{"Date": true})
	if !errors.Is(err, svs.ErrMalformedDescription) {
		t.Fatalf("Expecting ErrMalformedDescription but got %v", err)
	}
}

func TestFilterPageDescription(t *testing.T) {
	f := classicSlide(t)
	sizeBefore := fileSize(t, f.path)

	c, err := svs.Open(f.path)
	if err != nil {
		t.Fatalf("Error opening container: %s", err)
	}
	pages, err := c.Pages()
	if err != nil {
		t.Fatalf("Error reading pages: %s", err)
	}
	original, changed, err := c.FilterPageDescription(pages[0], svs.DefaultAllowedKeys)
	if err != nil {
		t.Fatalf("Error filtering page description: %s", err)
	}
	if !changed {
		t.Fatalf("Page 0 description should have been rewritten")
	}
	if original != classicPages()[0].description {
		t.Fatalf("Unexpected original description: %s", original)
	}

	pages, err = c.Pages()
	if err != nil {
		t.Fatalf("Error re-reading pages: %s", err)
	}
	want := classicLibrary + "\r\n46000x32914 [0,100 2048x1536] JPEG/RGB Q=30|AppMag = 20"
	if pages[0].Description() != want {
		t.Fatalf("Expecting filtered description %q but found %q", want, pages[0].Description())
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Error closing container: %s", err)
	}
	if fileSize(t, f.path) != sizeBefore {
		t.Fatalf("File length must not change")
	}
}

func TestFilterPageDescription_NoTag(t *testing.T) {
	f := gt450Slide(t, false, 2)
	c, err := svs.Open(f.path)
	if err != nil {
		t.Fatalf("Error opening container: %s", err)
	}
	defer c.Close()
	pages, err := c.Pages()
	if err != nil {
		t.Fatalf("Error reading pages: %s", err)
	}
	original, changed, err := c.FilterPageDescription(pages[1], svs.DefaultAllowedKeys)
	if err != nil {
		t.Fatalf("Error filtering page description: %s", err)
	}
	if changed || original != "" {
		t.Fatalf("Pages without a description tag must be left untouched")
	}
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Error retrieving file stat: %s", err)
	}
	return info.Size()
}
