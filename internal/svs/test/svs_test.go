package test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jbarry1506/project-medid/internal/svs"
)

func TestSniff(t *testing.T) {
	f := classicSlide(t)
	file, err := os.Open(f.path)
	if err != nil {
		t.Fatalf("Error opening file: %s", err)
	}
	defer file.Close()
	supported, err := svs.Sniff(file, 0)
	if err != nil {
		t.Fatalf("Error sniffing file: %s", err)
	}
	if !supported {
		t.Fatalf("Result should be true")
	}
}

func TestSniff_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.svs")
	if err := os.WriteFile(path, []byte("this is not a TIFF file"), 0o644); err != nil {
		t.Fatalf("Error writing file: %s", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Error opening file: %s", err)
	}
	defer file.Close()
	supported, err := svs.Sniff(file, 0)
	if err != nil {
		t.Fatalf("Error sniffing file: %s", err)
	}
	if supported {
		t.Fatalf("Result should be false")
	}
}

func TestOpen_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.svs")
	if err := os.WriteFile(path, []byte("XXXXXXXXXXXXXXXX"), 0o644); err != nil {
		t.Fatalf("Error writing file: %s", err)
	}
	_, err := svs.Open(path)
	if !errors.Is(err, svs.ErrMalformedContainer) {
		t.Fatalf("Expecting ErrMalformedContainer but got %v", err)
	}
}

func TestPages_Classic(t *testing.T) {
	f := classicSlide(t)
	c, err := svs.Open(f.path)
	if err != nil {
		t.Fatalf("Error opening container: %s", err)
	}
	defer c.Close()
	pages, err := c.Pages()
	if err != nil {
		t.Fatalf("Error reading pages: %s", err)
	}
	if len(pages) != 3 {
		t.Fatalf("Expecting 3 pages but found %d", len(pages))
	}
	for i, page := range pages {
		if page.Offset != f.ifdOffsets[i] {
			t.Fatalf("Expecting page %d at offset %d but found %d", i, f.ifdOffsets[i], page.Offset)
		}
		if page.NextIFDOffset != f.nextPointerAt[i] {
			t.Fatalf("Expecting page %d next pointer at %d but found %d", i, f.nextPointerAt[i], page.NextIFDOffset)
		}
	}
	if pages[0].NextIFDValue != f.ifdOffsets[1] {
		t.Fatalf("Expecting page 0 to link to %d but found %d", f.ifdOffsets[1], pages[0].NextIFDValue)
	}
	if pages[2].NextIFDValue != 0 {
		t.Fatalf("Expecting page 2 to terminate the chain but found %d", pages[2].NextIFDValue)
	}
	if !strings.Contains(pages[0].Description(), "Aperio Image Library") {
		t.Fatalf("Unexpected page 0 description: %s", pages[0].Description())
	}
	if !strings.Contains(pages[1].Description(), "label") {
		t.Fatalf("Unexpected page 1 description: %s", pages[1].Description())
	}
	if !pages[0].IsStriped() || pages[0].IsTiled() {
		t.Fatalf("Page 0 should be striped")
	}
	strips, err := pages[2].StripLocations(c)
	if err != nil {
		t.Fatalf("Error reading strip locations: %s", err)
	}
	if len(strips) != 2 {
		t.Fatalf("Expecting 2 strips but found %d", len(strips))
	}
	if strips[0].Offset != f.pixels[2].offset || strips[0].Length+strips[1].Length != f.pixels[2].length {
		t.Fatalf("Unexpected strip locations: %+v", strips)
	}
}

func TestPages_BigTIFF(t *testing.T) {
	f := gt450Slide(t, true, 2)
	c, err := svs.Open(f.path)
	if err != nil {
		t.Fatalf("Error opening container: %s", err)
	}
	defer c.Close()
	pages, err := c.Pages()
	if err != nil {
		t.Fatalf("Error reading pages: %s", err)
	}
	if len(pages) != 3 {
		t.Fatalf("Expecting 3 pages but found %d", len(pages))
	}
	for i, page := range pages {
		if page.Offset != f.ifdOffsets[i] {
			t.Fatalf("Expecting page %d at offset %d but found %d", i, f.ifdOffsets[i], page.Offset)
		}
	}
	if !pages[0].IsTiled() {
		t.Fatalf("Page 0 should be tiled")
	}
	if !pages[1].IsStriped() || !pages[2].IsStriped() {
		t.Fatalf("Trailing pages should be striped")
	}
}

func TestPages_AbsurdTagCount(t *testing.T) {
	f := classicSlide(t)
	count := make([]byte, 2)
	binary.LittleEndian.PutUint16(count, 0xFFFF)
	mutateFile(t, f.path, f.ifdOffsets[1], count)
	c, err := svs.Open(f.path)
	if err != nil {
		t.Fatalf("Error opening container: %s", err)
	}
	defer c.Close()
	_, err = c.Pages()
	if !errors.Is(err, svs.ErrMalformedContainer) {
		t.Fatalf("Expecting ErrMalformedContainer but got %v", err)
	}
}

func TestPages_ChainLoop(t *testing.T) {
	f := classicSlide(t)
	next := make([]byte, 4)
	binary.LittleEndian.PutUint32(next, uint32(f.ifdOffsets[0]))
	mutateFile(t, f.path, f.nextPointerAt[2], next)
	c, err := svs.Open(f.path)
	if err != nil {
		t.Fatalf("Error opening container: %s", err)
	}
	defer c.Close()
	_, err = c.Pages()
	if !errors.Is(err, svs.ErrMalformedContainer) {
		t.Fatalf("Expecting ErrMalformedContainer but got %v", err)
	}
}
