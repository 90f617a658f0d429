package svs

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
)

// Rasters larger than this are rejected; associated images are small.
const maxRasterBytes = 1 << 30

// Raster holds an associated image's pixel payload as read from its strips,
// in strip order, together with the page's declared geometry. For
// uncompressed pages Data is the row-major pixel matrix.
type Raster struct {
	Width           int
	Height          int
	SamplesPerPixel int
	BitsPerSample   int
	Compression     int
	Data            []byte
}

func (c *Container) readRaster(page *Page, strips []StripLocation) (*Raster, error) {
	var total int64
	for _, strip := range strips {
		total += strip.Length
	}
	if total > maxRasterBytes {
		return nil, fmt.Errorf("page %d pixel payload is %d bytes: %w", page.Index, total, ErrMalformedContainer)
	}
	raster := &Raster{
		Width:           int(page.intValue(c, TagImageWidth, 0)),
		Height:          int(page.intValue(c, TagImageLength, 0)),
		SamplesPerPixel: int(page.intValue(c, TagSamplesPerPixel, 1)),
		BitsPerSample:   int(page.intValue(c, TagBitsPerSample, 1)),
		Compression:     int(page.intValue(c, TagCompression, CompressionNone)),
		Data:            make([]byte, total),
	}
	pos := 0
	for i, strip := range strips {
		if _, err := c.file.ReadAt(raster.Data[pos:pos+int(strip.Length)], strip.Offset); err != nil {
			return nil, fmt.Errorf("failed to read page %d strip %d: %w", page.Index, i, err)
		}
		pos += int(strip.Length)
	}
	return raster, nil
}

// Image decodes the raster into an image.Image. Uncompressed 8-bit grayscale
// and RGB payloads decode directly; JPEG payloads decode as a single stream.
// Other codecs are reported as unsupported without affecting redaction, which
// operates on the raw strip bytes.
func (r *Raster) Image() (image.Image, error) {
	switch r.Compression {
	case CompressionJPEG:
		img, err := jpeg.Decode(bytes.NewReader(r.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode JPEG payload: %w", err)
		}
		return img, nil
	case CompressionNone:
		// Decoded below.
	default:
		return nil, fmt.Errorf("compression scheme %d: %w", r.Compression, ErrUnsupportedLayout)
	}
	if r.BitsPerSample != 8 || r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("%dx%d at %d bits per sample: %w", r.Width, r.Height, r.BitsPerSample, ErrUnsupportedLayout)
	}
	if len(r.Data) < r.Width*r.Height*r.SamplesPerPixel {
		return nil, fmt.Errorf("pixel payload is %d bytes, need %d: %w",
			len(r.Data), r.Width*r.Height*r.SamplesPerPixel, ErrMalformedContainer)
	}
	switch r.SamplesPerPixel {
	case 1:
		img := image.NewGray(image.Rect(0, 0, r.Width, r.Height))
		copy(img.Pix, r.Data)
		return img, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
		for i := 0; i < r.Width*r.Height; i++ {
			img.Pix[i*4] = r.Data[i*3]
			img.Pix[i*4+1] = r.Data[i*3+1]
			img.Pix[i*4+2] = r.Data[i*3+2]
			img.Pix[i*4+3] = 0xFF
		}
		return img, nil
	}
	return nil, fmt.Errorf("%d samples per pixel: %w", r.SamplesPerPixel, ErrUnsupportedLayout)
}

// EncodePNG writes the raster to w as a PNG image.
func (r *Raster) EncodePNG(w io.Writer) error {
	img, err := r.Image()
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return nil
}
