package svs

// TIFF 6.0 tags used by the redaction and filtering logic.
const (
	TagImageWidth                = 0x100
	TagImageLength               = 0x101
	TagBitsPerSample             = 0x102
	TagCompression               = 0x103
	TagPhotometricInterpretation = 0x106
	TagImageDescription          = 0x10E
	TagStripOffsets              = 0x111
	TagSamplesPerPixel           = 0x115
	TagRowsPerStrip              = 0x116
	TagStripByteCounts           = 0x117
	TagTileWidth                 = 0x142
	TagTileLength                = 0x143
	TagTileOffsets               = 0x144
	TagTileByteCounts            = 0x145
)

// Compression schemes seen on Aperio associated images.
const (
	CompressionNone = 1
	CompressionLZW  = 5
	CompressionJPEG = 7
)

// Byte size of a single value of each TIFF data type. Type 16 (LONG8), 17
// (SLONG8) and 18 (IFD8) are BigTIFF additions.
var typeSizes = map[uint16]int64{
	1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2,
	9: 4, 10: 8, 11: 4, 12: 8, 13: 4, 16: 8, 17: 8, 18: 8,
}
