package svs

import (
	"encoding/binary"
	"fmt"
)

// Page is one IFD in the chain: its absolute offset, tag table, and the
// position/value of its next-IFD pointer.
type Page struct {
	Index  int
	Offset int64
	Tags   map[uint16]*TagEntry

	// NextIFDOffset is the byte position holding the pointer to the next
	// IFD; NextIFDValue is that pointer's value (0 terminates the chain).
	NextIFDOffset int64
	NextIFDValue  int64

	tagOrder []uint16
}

// TagEntry is one directory entry. ValueOffset is where the value bytes live
// on disk, inline within the entry or out-of-line; ByteLen is the recorded
// byte length of the value (count times type size).
type TagEntry struct {
	Code         uint16
	Type         uint16
	Count        int64
	HeaderOffset int64
	ValueOffset  int64
	ByteLen      int64
	Data         []byte
}

// StripLocation describes one contiguous byte range of a page's pixel payload.
type StripLocation struct {
	Offset int64
	Length int64
}

func (t *TagEntry) ascii() string {
	data := t.Data
	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return string(data)
}

// ints decodes an integer-valued tag into a slice, one element per count.
func (t *TagEntry) ints(order binary.ByteOrder) []int64 {
	size, ok := typeSizes[t.Type]
	if !ok || t.Data == nil || size == 0 {
		return nil
	}
	values := make([]int64, 0, t.Count)
	for i := int64(0); i+size <= int64(len(t.Data)); i += size {
		switch size {
		case 1:
			values = append(values, int64(t.Data[i]))
		case 2:
			values = append(values, int64(order.Uint16(t.Data[i:])))
		case 4:
			values = append(values, int64(order.Uint32(t.Data[i:])))
		case 8:
			values = append(values, int64(order.Uint64(t.Data[i:])))
		}
	}
	return values
}

// Description returns the page's ImageDescription text, or "" if absent.
func (p *Page) Description() string {
	tag, exists := p.Tags[TagImageDescription]
	if !exists {
		return ""
	}
	return tag.ascii()
}

func (p *Page) intValue(c *Container, code uint16, fallback int64) int64 {
	tag, exists := p.Tags[code]
	if !exists {
		return fallback
	}
	values := tag.ints(c.order)
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}

// IsTiled reports whether the page stores pixel data in tiles.
func (p *Page) IsTiled() bool {
	_, exists := p.Tags[TagTileOffsets]
	return exists
}

// IsStriped reports whether the page stores pixel data in strips.
func (p *Page) IsStriped() bool {
	_, exists := p.Tags[TagStripOffsets]
	return exists && !p.IsTiled()
}

// StripLocations returns the byte ranges of the page's pixel payload. Tiled
// pages and pages without strip metadata are rejected.
func (p *Page) StripLocations(c *Container) ([]StripLocation, error) {
	if p.IsTiled() {
		return nil, fmt.Errorf("page %d is tiled: %w", p.Index, ErrUnsupportedLayout)
	}
	offsetsTag, exists := p.Tags[TagStripOffsets]
	if !exists {
		return nil, fmt.Errorf("page %d has no strip offsets: %w", p.Index, ErrUnsupportedLayout)
	}
	countsTag, exists := p.Tags[TagStripByteCounts]
	if !exists {
		return nil, fmt.Errorf("page %d has no strip byte counts: %w", p.Index, ErrUnsupportedLayout)
	}
	offsets := offsetsTag.ints(c.order)
	counts := countsTag.ints(c.order)
	if len(offsets) == 0 || len(offsets) != len(counts) {
		return nil, fmt.Errorf("page %d has %d strip offsets but %d byte counts: %w",
			p.Index, len(offsets), len(counts), ErrMalformedContainer)
	}
	strips := make([]StripLocation, len(offsets))
	for i := range offsets {
		strips[i] = StripLocation{Offset: offsets[i], Length: counts[i]}
		if offsets[i] <= 0 || counts[i] < 0 || offsets[i]+counts[i] > c.size {
			return nil, fmt.Errorf("page %d strip %d range [%d,%d) out of range: %w",
				p.Index, i, offsets[i], offsets[i]+counts[i], ErrMalformedContainer)
		}
	}
	return strips, nil
}
