package svs

import "fmt"

// span is one byte range owned by a single pending write. Every destructive
// write names its range here and the whole plan is validated before the first
// byte is touched.
type span struct {
	offset int64
	length int64
	what   string
}

func (s span) end() int64 {
	return s.offset + s.length
}

func (s span) overlaps(other span) bool {
	return s.offset < other.end() && other.offset < s.end()
}

func (c *Container) validateSpan(s span) error {
	if s.offset < 0 || s.length < 0 || s.end() > c.size {
		return fmt.Errorf("%s range [%d,%d) outside file of %d bytes: %w",
			s.what, s.offset, s.end(), c.size, ErrMalformedContainer)
	}
	return nil
}

// Redact erases the pixel payload of target in place and returns it as a
// Raster, read before any destructive write. With keepEntry the page stays in
// the chain with zeroed pixels and an intact tag table; without it the tag
// values and the IFD block are zeroed as well and the preceding page's next
// pointer is rewritten to skip the page. The file length and every other
// page's offsets are unchanged either way.
//
// The caller must hold exclusive access to the file for the duration of the
// call; link metadata is re-derived from disk rather than trusted from pages.
func (c *Container) Redact(pages []*Page, target *Page, keepEntry bool) (*Raster, error) {
	strips, err := target.StripLocations(c)
	if err != nil {
		return nil, err
	}
	nextIFDOffset, nextIFDValue, err := c.readLink(target.Offset)
	if err != nil {
		return nil, err
	}

	directory := span{
		offset: target.Offset,
		length: nextIFDOffset + c.offsetSize() - target.Offset,
		what:   fmt.Sprintf("page %d directory", target.Index),
	}
	if err := c.validateSpan(directory); err != nil {
		return nil, err
	}
	pixels := make([]span, len(strips))
	for i, strip := range strips {
		pixels[i] = span{strip.Offset, strip.Length, fmt.Sprintf("page %d strip %d", target.Index, i)}
		if err := c.validateSpan(pixels[i]); err != nil {
			return nil, err
		}
		if pixels[i].overlaps(directory) {
			return nil, fmt.Errorf("%s overlaps %s: %w", pixels[i].what, directory.what, ErrMalformedContainer)
		}
	}
	var values []span
	if !keepEntry {
		for _, code := range target.tagOrder {
			tag := target.Tags[code]
			if tag.ByteLen == 0 {
				continue
			}
			s := span{tag.ValueOffset, tag.ByteLen, fmt.Sprintf("page %d tag 0x%04X value", target.Index, code)}
			if err := c.validateSpan(s); err != nil {
				return nil, err
			}
			for _, pixel := range pixels {
				if s.overlaps(pixel) {
					return nil, fmt.Errorf("%s overlaps %s: %w", s.what, pixel.what, ErrMalformedContainer)
				}
			}
			values = append(values, s)
		}
	}

	// The payload is handed back before the first destructive write so the
	// caller can export or inspect it.
	raster, err := c.readRaster(target, strips)
	if err != nil {
		return nil, err
	}

	for _, s := range pixels {
		if err := c.zeroSpan(s); err != nil {
			return raster, err
		}
	}
	if keepEntry {
		return raster, nil
	}
	for _, s := range values {
		if err := c.zeroSpan(s); err != nil {
			return raster, err
		}
	}
	if err := c.zeroSpan(directory); err != nil {
		return raster, err
	}
	if err := c.unlink(pages, target, nextIFDValue); err != nil {
		return raster, err
	}
	return raster, nil
}

// unlink patches the pointer that reaches target so the chain skips it. The
// pointer lives either in the preceding page or, for the first page, in the
// container header.
func (c *Container) unlink(pages []*Page, target *Page, skipTo int64) error {
	if target.Offset == c.rootOffset {
		if err := c.writeOffsetAt(c.rootPointerAt, skipTo); err != nil {
			return err
		}
		c.rootOffset = skipTo
		return nil
	}
	for _, page := range pages {
		if page == target {
			continue
		}
		nextIFDOffset, nextIFDValue, err := c.readLink(page.Offset)
		if err != nil {
			return err
		}
		if nextIFDValue == target.Offset {
			return c.writeOffsetAt(nextIFDOffset, skipTo)
		}
	}
	return fmt.Errorf("no page points at page %d (offset %d): %w", target.Index, target.Offset, ErrMalformedContainer)
}

// zeroSpan overwrites the range with zero bytes in bounded chunks.
func (c *Container) zeroSpan(s span) error {
	const chunk = 1 << 20
	zeros := make([]byte, min64(s.length, chunk))
	for written := int64(0); written < s.length; {
		n := min64(s.length-written, chunk)
		if _, err := c.file.WriteAt(zeros[:n], s.offset+written); err != nil {
			return fmt.Errorf("failed to zero %s: %w", s.what, err)
		}
		written += n
	}
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
