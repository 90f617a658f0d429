package svs

import "errors"

var (
	// ErrMalformedContainer indicates the TIFF structure is unreadable or an
	// offset points outside the file.
	ErrMalformedContainer = errors.New("malformed container")

	// ErrUnsupportedLayout indicates pixel data that is not stored as
	// independent strips, or stored in a way the raster decoder cannot handle.
	ErrUnsupportedLayout = errors.New("unsupported image layout")

	// ErrDuplicateAssociatedImage indicates the vendor heuristic matched more
	// than one page for a single image type.
	ErrDuplicateAssociatedImage = errors.New("duplicate associated image")

	// ErrMalformedDescription indicates a description segment that does not
	// split into exactly one key and one value.
	ErrMalformedDescription = errors.New("malformed description")

	// ErrDescriptionTooLong indicates the filtered description cannot fit the
	// original tag value slot.
	ErrDescriptionTooLong = errors.New("filtered description too long")
)
