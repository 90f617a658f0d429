package test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Synthetic SVS fixtures. The builder serializes a classic TIFF or BigTIFF
// container with one IFD per page: header, then each page's tag table
// followed by its out-of-line values, then the pixel payloads. Little-endian
// throughout, as Aperio writes.

type fixturePage struct {
	width       int
	height      int
	description string
	tiled       bool
	fill        byte
}

type pixelSpan struct {
	offset int64
	length int64
}

type fixture struct {
	path string
	size int64

	ifdOffsets    []int64
	nextPointerAt []int64
	pixels        []pixelSpan
}

type fixtureEntry struct {
	code  uint16
	typ   uint16
	count int64
	data  []byte
}

const (
	typeASCII = 2
	typeShort = 3
	typeLong  = 4
)

func shortEntry(code uint16, vals ...uint16) fixtureEntry {
	data := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(data[i*2:], v)
	}
	return fixtureEntry{code: code, typ: typeShort, count: int64(len(vals)), data: data}
}

func longEntry(code uint16, vals ...uint32) fixtureEntry {
	data := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	return fixtureEntry{code: code, typ: typeLong, count: int64(len(vals)), data: data}
}

func asciiEntry(code uint16, s string) fixtureEntry {
	data := append([]byte(s), 0)
	return fixtureEntry{code: code, typ: typeASCII, count: int64(len(data)), data: data}
}

func align2(n int64) int64 {
	return (n + 1) &^ 1
}

// pageEntries builds the tag table for one page with zeroed pixel offsets;
// the real offsets are patched in once the layout is known.
func pageEntries(p fixturePage) []fixtureEntry {
	entries := []fixtureEntry{
		shortEntry(0x100, uint16(p.width)),  // ImageWidth
		shortEntry(0x101, uint16(p.height)), // ImageLength
		shortEntry(0x102, 8),                // BitsPerSample
		shortEntry(0x103, 1),                // Compression
		shortEntry(0x106, 1),                // PhotometricInterpretation
	}
	if p.description != "" {
		entries = append(entries, asciiEntry(0x10E, p.description))
	}
	if p.tiled {
		entries = append(entries,
			shortEntry(0x115, 1), // SamplesPerPixel
			longEntry(0x142, uint32(p.width)),
			longEntry(0x143, uint32(p.height)),
			longEntry(0x144, 0),
			longEntry(0x145, uint32(p.width*p.height)),
		)
		return entries
	}
	rows := rowsPerStrip(p)
	entries = append(entries,
		longEntry(0x111, 0, 0), // StripOffsets, patched later
		shortEntry(0x115, 1),
		shortEntry(0x116, uint16(rows)),
		longEntry(0x117, uint32(rows*p.width), uint32((p.height-rows)*p.width)),
	)
	return entries
}

func rowsPerStrip(p fixturePage) int {
	return (p.height + 1) / 2
}

func patchLong(entries []fixtureEntry, code uint16, vals ...uint32) {
	for i := range entries {
		if entries[i].code == code {
			entries[i] = longEntry(code, vals...)
			return
		}
	}
}

// buildContainer writes a synthetic container into a temp dir and returns its
// layout for assertions.
func buildContainer(t *testing.T, big bool, pages []fixturePage) *fixture {
	t.Helper()
	headerLen, countSize, entrySize, offsetSize := int64(8), int64(2), int64(12), int64(4)
	if big {
		headerLen, countSize, entrySize, offsetSize = 16, 8, 20, 8
	}
	order := binary.LittleEndian

	pageEntryTables := make([][]fixtureEntry, len(pages))
	f := &fixture{
		ifdOffsets:    make([]int64, len(pages)),
		nextPointerAt: make([]int64, len(pages)),
		pixels:        make([]pixelSpan, len(pages)),
	}

	pos := headerLen
	extraOffsets := make([]int64, len(pages))
	for i, p := range pages {
		entries := pageEntries(p)
		pageEntryTables[i] = entries
		f.ifdOffsets[i] = pos
		f.nextPointerAt[i] = pos + countSize + int64(len(entries))*entrySize
		pos = f.nextPointerAt[i] + offsetSize
		extraOffsets[i] = pos
		for _, e := range entries {
			if int64(len(e.data)) > offsetSize {
				pos += align2(int64(len(e.data)))
			}
		}
	}
	for i, p := range pages {
		length := int64(p.width * p.height)
		f.pixels[i] = pixelSpan{offset: pos, length: length}
		pos += align2(length)
	}
	f.size = pos

	for i, p := range pages {
		pix := f.pixels[i]
		if p.tiled {
			patchLong(pageEntryTables[i], 0x144, uint32(pix.offset))
			continue
		}
		rows := rowsPerStrip(p)
		patchLong(pageEntryTables[i], 0x111,
			uint32(pix.offset), uint32(pix.offset+int64(rows*p.width)))
	}

	buf := make([]byte, f.size)
	copy(buf, []byte{0x49, 0x49})
	if big {
		order.PutUint16(buf[2:], 43)
		order.PutUint16(buf[4:], 8)
		order.PutUint64(buf[8:], uint64(f.ifdOffsets[0]))
	} else {
		order.PutUint16(buf[2:], 42)
		order.PutUint32(buf[4:], uint32(f.ifdOffsets[0]))
	}

	for i := range pages {
		entries := pageEntryTables[i]
		ifd := f.ifdOffsets[i]
		if big {
			order.PutUint64(buf[ifd:], uint64(len(entries)))
		} else {
			order.PutUint16(buf[ifd:], uint16(len(entries)))
		}
		extra := extraOffsets[i]
		for j, e := range entries {
			entryPos := ifd + countSize + int64(j)*entrySize
			order.PutUint16(buf[entryPos:], e.code)
			order.PutUint16(buf[entryPos+2:], e.typ)
			valuePos := entryPos + entrySize - offsetSize
			if big {
				order.PutUint64(buf[entryPos+4:], uint64(e.count))
			} else {
				order.PutUint32(buf[entryPos+4:], uint32(e.count))
			}
			if int64(len(e.data)) <= offsetSize {
				copy(buf[valuePos:], e.data)
				continue
			}
			if big {
				order.PutUint64(buf[valuePos:], uint64(extra))
			} else {
				order.PutUint32(buf[valuePos:], uint32(extra))
			}
			copy(buf[extra:], e.data)
			extra += align2(int64(len(e.data)))
		}
		if i+1 < len(pages) {
			next := f.ifdOffsets[i+1]
			if big {
				order.PutUint64(buf[f.nextPointerAt[i]:], uint64(next))
			} else {
				order.PutUint32(buf[f.nextPointerAt[i]:], uint32(next))
			}
		}
	}
	for i := range pages {
		pix := f.pixels[i]
		for b := int64(0); b < pix.length; b++ {
			buf[pix.offset+b] = pages[i].fill
		}
	}

	f.path = filepath.Join(t.TempDir(), "fixture.svs")
	if err := os.WriteFile(f.path, buf, 0o644); err != nil {
		t.Fatalf("Error writing fixture: %s", err)
	}
	return f
}

const classicLibrary = "Aperio Image Library v12.0.15"

func classicPages() []fixturePage {
	return []fixturePage{
		{
			width: 8, height: 8, fill: 0xAA,
			description: classicLibrary + "\r\n46000x32914 [0,100 2048x1536] JPEG/RGB Q=30" +
				"|AppMag = 20|Date = 01/01/20|ScanScope ID = SS1302|Time = 09:59:12|User = clinician",
		},
		{width: 4, height: 4, fill: 0xBB, description: classicLibrary + "\r\nlabel 415x422"},
		{width: 4, height: 4, fill: 0xCC, description: classicLibrary + "\r\nmacro 1280x431"},
	}
}

// classicSlide is the 3-page AT2-style container: striped main image, label,
// macro, all identified by descriptive strings.
func classicSlide(t *testing.T) *fixture {
	t.Helper()
	return buildContainer(t, false, classicPages())
}

// gt450Slide is the GT450-style container: tiled main image plus unlabeled
// trailing striped pages (normally two: label then macro).
func gt450Slide(t *testing.T, big bool, trailing int) *fixture {
	t.Helper()
	pages := []fixturePage{{
		width: 16, height: 16, fill: 0xAA, tiled: true,
		description: "Aperio Leica Biosystems GT450 v1.0.1\r\n46000x32914 [0,0,46000,32914]",
	}}
	fills := []byte{0xBB, 0xCC, 0xDD}
	for i := 0; i < trailing; i++ {
		pages = append(pages, fixturePage{width: 4, height: 4, fill: fills[i%len(fills)]})
	}
	return buildContainer(t, big, pages)
}

// mutateFile overwrites bytes of a built fixture, used to corrupt structures.
func mutateFile(t *testing.T, path string, offset int64, data []byte) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("Error opening file: %s", err)
	}
	defer file.Close()
	if _, err := file.WriteAt(data, offset); err != nil {
		t.Fatalf("Error writing file: %s", err)
	}
}

func readAll(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Error reading file: %s", err)
	}
	return data
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
