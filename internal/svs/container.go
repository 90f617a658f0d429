package svs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

const (
	classicMagic = 42
	bigTIFFMagic = 43

	// Tag values larger than this are not loaded into memory; the entry
	// metadata (offset and byte length) is kept so the bytes can still be
	// zeroed during redaction.
	maxTagData = 16 << 20
)

// Container is an SVS (TIFF or BigTIFF) file opened for in-place mutation.
// Writes never move or grow any structure; the file length is fixed for the
// lifetime of the Container.
type Container struct {
	file  *os.File
	order binary.ByteOrder
	big   bool
	size  int64

	rootOffset    int64
	rootPointerAt int64
}

// Sniff reports whether the file starts with a TIFF or BigTIFF header. It is
// the cheap format check run before any real parsing.
func Sniff(file *os.File, startOffset int64) (bool, error) {
	header := make([]byte, 4)
	if _, err := file.ReadAt(header, startOffset); err != nil {
		return false, fmt.Errorf("failed to read file: %w", err)
	}
	var order binary.ByteOrder
	if bytes.Equal(header[:2], []byte{0x49, 0x49}) {
		order = binary.LittleEndian
	} else if bytes.Equal(header[:2], []byte{0x4D, 0x4D}) {
		order = binary.BigEndian
	} else {
		return false, nil
	}
	magic := order.Uint16(header[2:])
	return magic == classicMagic || magic == bigTIFFMagic, nil
}

// Open opens the container read-write and parses its header.
func Open(path string) (*Container, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	c, err := newContainer(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return c, nil
}

func newContainer(file *os.File) (*Container, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("error retrieving file stat: %w", err)
	}
	c := &Container{file: file, size: info.Size()}

	header := make([]byte, 16)
	if _, err := file.ReadAt(header[:8], 0); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	switch {
	case bytes.Equal(header[:2], []byte{0x49, 0x49}):
		c.order = binary.LittleEndian
	case bytes.Equal(header[:2], []byte{0x4D, 0x4D}):
		c.order = binary.BigEndian
	default:
		return nil, fmt.Errorf("unrecognized byte order mark %X: %w", header[:2], ErrMalformedContainer)
	}
	switch c.order.Uint16(header[2:]) {
	case classicMagic:
		c.big = false
		c.rootPointerAt = 4
		c.rootOffset = int64(c.order.Uint32(header[4:]))
	case bigTIFFMagic:
		c.big = true
		if _, err := file.ReadAt(header[8:], 8); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		if c.order.Uint16(header[4:]) != 8 || c.order.Uint16(header[6:]) != 0 {
			return nil, fmt.Errorf("invalid BigTIFF header: %w", ErrMalformedContainer)
		}
		c.rootPointerAt = 8
		c.rootOffset = int64(c.order.Uint64(header[8:]))
	default:
		return nil, fmt.Errorf("unrecognized magic number: %w", ErrMalformedContainer)
	}
	if c.rootOffset <= 0 || c.rootOffset >= c.size {
		return nil, fmt.Errorf("root IFD offset %d out of range: %w", c.rootOffset, ErrMalformedContainer)
	}
	return c, nil
}

// Close syncs pending writes and closes the underlying file.
func (c *Container) Close() error {
	if err := c.file.Sync(); err != nil {
		c.file.Close()
		return fmt.Errorf("error syncing file: %w", err)
	}
	return c.file.Close()
}

// Size returns the file length in bytes. Redaction never changes it.
func (c *Container) Size() int64 {
	return c.size
}

func (c *Container) offsetSize() int64 {
	if c.big {
		return 8
	}
	return 4
}

func (c *Container) countSize() int64 {
	if c.big {
		return 8
	}
	return 2
}

func (c *Container) entrySize() int64 {
	if c.big {
		return 20
	}
	return 12
}

// readOffsetAt reads an offset-width value (4 or 8 bytes) at pos.
func (c *Container) readOffsetAt(pos int64) (int64, error) {
	raw := make([]byte, c.offsetSize())
	if _, err := c.file.ReadAt(raw, pos); err != nil {
		return 0, fmt.Errorf("failed to read offset at %d: %w", pos, err)
	}
	if c.big {
		return int64(c.order.Uint64(raw)), nil
	}
	return int64(c.order.Uint32(raw)), nil
}

// writeOffsetAt writes an offset-width value at pos.
func (c *Container) writeOffsetAt(pos int64, value int64) error {
	raw := make([]byte, c.offsetSize())
	if c.big {
		c.order.PutUint64(raw, uint64(value))
	} else {
		c.order.PutUint32(raw, uint32(value))
	}
	if _, err := c.file.WriteAt(raw, pos); err != nil {
		return fmt.Errorf("failed to write offset at %d: %w", pos, err)
	}
	return nil
}

// readCountAt reads a tag-count value (2 or 8 bytes) at pos.
func (c *Container) readCountAt(pos int64) (int64, error) {
	raw := make([]byte, c.countSize())
	if _, err := c.file.ReadAt(raw, pos); err != nil {
		return 0, fmt.Errorf("failed to read tag count at %d: %w", pos, err)
	}
	if c.big {
		return int64(c.order.Uint64(raw)), nil
	}
	return int64(c.order.Uint16(raw)), nil
}

// readLink derives the link metadata of the IFD at offset: the byte position
// holding the next-IFD pointer and the pointer's current value. It validates
// the tag count against the remaining file size but does not parse entries.
func (c *Container) readLink(offset int64) (nextIFDOffset int64, nextIFDValue int64, err error) {
	if offset <= 0 || offset >= c.size {
		return 0, 0, fmt.Errorf("IFD offset %d out of range: %w", offset, ErrMalformedContainer)
	}
	count, err := c.readCountAt(offset)
	if err != nil {
		return 0, 0, err
	}
	nextIFDOffset = offset + c.countSize() + count*c.entrySize()
	if count < 0 || nextIFDOffset+c.offsetSize() > c.size {
		return 0, 0, fmt.Errorf("IFD at %d declares %d tags: %w", offset, count, ErrMalformedContainer)
	}
	nextIFDValue, err = c.readOffsetAt(nextIFDOffset)
	if err != nil {
		return 0, 0, err
	}
	return nextIFDOffset, nextIFDValue, nil
}

// Pages walks the IFD chain from the root offset and returns the ordered page
// list with tag tables and link metadata. The result reflects the file at the
// time of the call; callers re-read after mutating.
func (c *Container) Pages() ([]*Page, error) {
	var pages []*Page
	seen := make(map[int64]bool)
	for offset := c.rootOffset; offset != 0; {
		if seen[offset] {
			return nil, fmt.Errorf("IFD chain loops back to offset %d: %w", offset, ErrMalformedContainer)
		}
		seen[offset] = true
		page, err := c.readPage(offset, len(pages))
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
		offset = page.NextIFDValue
		if offset < 0 || offset >= c.size {
			return nil, fmt.Errorf("next IFD offset %d out of range: %w", offset, ErrMalformedContainer)
		}
	}
	return pages, nil
}

func (c *Container) readPage(offset int64, index int) (*Page, error) {
	nextIFDOffset, nextIFDValue, err := c.readLink(offset)
	if err != nil {
		return nil, err
	}
	count := (nextIFDOffset - offset - c.countSize()) / c.entrySize()
	raw := make([]byte, count*c.entrySize())
	if _, err := c.file.ReadAt(raw, offset+c.countSize()); err != nil {
		return nil, fmt.Errorf("failed to read tag table at %d: %w", offset, err)
	}
	page := &Page{
		Index:         index,
		Offset:        offset,
		Tags:          make(map[uint16]*TagEntry, count),
		NextIFDOffset: nextIFDOffset,
		NextIFDValue:  nextIFDValue,
	}
	valueField := c.entrySize() - c.offsetSize()
	for i := int64(0); i < count; i++ {
		entry := raw[i*c.entrySize() : (i+1)*c.entrySize()]
		tag := &TagEntry{
			Code:         c.order.Uint16(entry),
			Type:         c.order.Uint16(entry[2:]),
			HeaderOffset: offset + c.countSize() + i*c.entrySize(),
		}
		if c.big {
			tag.Count = int64(c.order.Uint64(entry[4:]))
		} else {
			tag.Count = int64(c.order.Uint32(entry[4:]))
		}
		tag.ByteLen = tag.Count * typeSizes[tag.Type]
		if tag.ByteLen <= c.offsetSize() {
			// Value stored inline, inside the entry itself.
			tag.ValueOffset = tag.HeaderOffset + valueField
		} else {
			if c.big {
				tag.ValueOffset = int64(c.order.Uint64(entry[valueField:]))
			} else {
				tag.ValueOffset = int64(c.order.Uint32(entry[valueField:]))
			}
			if tag.ValueOffset <= 0 || tag.ValueOffset+tag.ByteLen > c.size {
				return nil, fmt.Errorf("page %d tag 0x%04X value range [%d,%d) out of range: %w",
					index, tag.Code, tag.ValueOffset, tag.ValueOffset+tag.ByteLen, ErrMalformedContainer)
			}
		}
		if tag.ByteLen > 0 && tag.ByteLen <= maxTagData {
			tag.Data = make([]byte, tag.ByteLen)
			if _, err := c.file.ReadAt(tag.Data, tag.ValueOffset); err != nil {
				return nil, fmt.Errorf("failed to read value of tag 0x%04X: %w", tag.Code, err)
			}
		}
		page.Tags[tag.Code] = tag
		page.tagOrder = append(page.tagOrder, tag.Code)
	}
	return page, nil
}
