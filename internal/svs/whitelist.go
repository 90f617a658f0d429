package svs

import (
	"fmt"
	"strings"
)

// DefaultAllowedKeys is the compiled-in allow-list of Aperio description keys
// considered non-identifying. Keys carrying timestamps, device serials, or
// operator identity (Date, Time, ScanScope ID, User, Barcode, ...) are absent
// on purpose. Revise per scanner vendor at build time.
var DefaultAllowedKeys = map[string]bool{
	"AppMag":          true,
	"MPP":             true,
	"Left":            true,
	"Top":             true,
	"Right":           true,
	"Bottom":          true,
	"LineCameraSkew":  true,
	"LineAreaXOffset": true,
	"LineAreaYOffset": true,
	"Focus Offset":    true,
	"StripeWidth":     true,
	"Exposure Time":   true,
	"Exposure Scale":  true,
	"Gamma":           true,
	"Filtered":        true,
	"OriginalWidth":   true,
	"OriginalHeight":  true,
	"ICC Profile":     true,
	"DisplayColor":    true,
	"SessonMode":      true,
	"Parmset":         true,
}

// FilterDescription rebuilds a pipe-delimited description keeping only the
// segments whose key is on the allow-list. The first segment is unkeyed free
// text and is always preserved verbatim; every later segment must contain
// exactly one '='. Dropped segments vanish entirely; kept segments and their
// relative order are unchanged.
func FilterDescription(raw string, allowed map[string]bool) (string, error) {
	segments := strings.Split(raw, "|")
	kept := segments[:1]
	for _, segment := range segments[1:] {
		if strings.Count(segment, "=") != 1 {
			return "", fmt.Errorf("segment %q: %w", segment, ErrMalformedDescription)
		}
		key, _, _ := strings.Cut(segment, "=")
		if allowed[strings.TrimSpace(key)] {
			kept = append(kept, segment)
		}
	}
	return strings.Join(kept, "|"), nil
}

// FilterPageDescription filters the page's ImageDescription value against the
// allow-list and overwrites it in place, zero-filling the remainder of the
// original value slot and shrinking the recorded count. Pages without the tag
// are left untouched. Returns the pre-filter text for auditing.
func (c *Container) FilterPageDescription(page *Page, allowed map[string]bool) (original string, changed bool, err error) {
	tag, exists := page.Tags[TagImageDescription]
	if !exists || tag.Data == nil {
		return "", false, nil
	}
	original = tag.ascii()
	filtered, err := FilterDescription(original, allowed)
	if err != nil {
		return original, false, fmt.Errorf("page %d: %w", page.Index, err)
	}
	if filtered == original {
		return original, false, nil
	}
	// Filtering only deletes, so this should never trip; the slot size still
	// constrains the write and is checked before mutating.
	slot := make([]byte, tag.ByteLen)
	if int64(len(filtered))+1 > tag.ByteLen {
		return original, false, fmt.Errorf("page %d: %d bytes into a %d byte slot: %w",
			page.Index, len(filtered)+1, tag.ByteLen, ErrDescriptionTooLong)
	}
	copy(slot, filtered)
	if _, err := c.file.WriteAt(slot, tag.ValueOffset); err != nil {
		return original, false, fmt.Errorf("page %d: failed to rewrite description: %w", page.Index, err)
	}
	if err := c.writeTagCount(tag, int64(len(filtered))+1); err != nil {
		return original, false, fmt.Errorf("page %d: %w", page.Index, err)
	}
	return original, true, nil
}

// writeTagCount shrinks the count recorded in a tag's directory entry. The
// count field sits 4 bytes into the entry in both classic and BigTIFF
// layouts.
func (c *Container) writeTagCount(tag *TagEntry, count int64) error {
	if count > tag.Count {
		return fmt.Errorf("tag 0x%04X count may only shrink (%d -> %d): %w",
			tag.Code, tag.Count, count, ErrDescriptionTooLong)
	}
	raw := make([]byte, c.entrySize()-c.offsetSize()-4)
	if c.big {
		c.order.PutUint64(raw, uint64(count))
	} else {
		c.order.PutUint32(raw, uint32(count))
	}
	if _, err := c.file.WriteAt(raw, tag.HeaderOffset+4); err != nil {
		return fmt.Errorf("failed to rewrite count of tag 0x%04X: %w", tag.Code, err)
	}
	tag.Count = count
	return nil
}
