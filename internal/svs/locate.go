package svs

import (
	"fmt"
	"strings"
)

// ImageType names an associated image embedded alongside the main slide.
type ImageType string

const (
	LabelImage ImageType = "label"
	MacroImage ImageType = "macro"
)

// Vendor family markers found in page 0's description. AT2 and older Aperio
// scanners tag label/macro pages with descriptive strings; the GT450 omits
// them and always stores the two associated images as the last two (striped)
// pages.
const (
	aperioClassicMarker = "Aperio Image Library"
	aperioGT450Marker   = "Aperio Leica Biosystems GT450"
)

// FindAssociatedImage returns the page holding the requested associated image,
// or nil if the container has none. The heuristic is chosen by inspecting page
// 0's description; a substring match on more than one page means an
// unsupported container variant and fails rather than picking one.
func FindAssociatedImage(pages []*Page, imageType ImageType) (*Page, error) {
	if imageType != LabelImage && imageType != MacroImage {
		return nil, fmt.Errorf("invalid associated image type %q", imageType)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("container has no pages: %w", ErrMalformedContainer)
	}
	first := pages[0].Description()
	if !strings.Contains(first, aperioClassicMarker) && strings.Contains(first, aperioGT450Marker) {
		return findByPosition(pages, imageType)
	}
	return findByDescription(pages, imageType)
}

func findByDescription(pages []*Page, imageType ImageType) (*Page, error) {
	var match *Page
	for _, page := range pages {
		if !strings.Contains(page.Description(), string(imageType)) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("pages %d and %d both match %q: %w",
				match.Index, page.Index, imageType, ErrDuplicateAssociatedImage)
		}
		match = page
	}
	return match, nil
}

// findByPosition implements the GT450 rule: label is the second-to-last page
// and macro the last, both striped. The trailing striped run is measured so a
// container with extra trailing striped pages is rejected instead of a page
// being silently misidentified.
func findByPosition(pages []*Page, imageType ImageType) (*Page, error) {
	run := 0
	for i := len(pages) - 1; i >= 0 && pages[i].IsStriped(); i-- {
		run++
	}
	if run > 2 || run == len(pages) {
		return nil, fmt.Errorf("%d trailing striped pages, expected at most 2 after the image pyramid: %w",
			run, ErrMalformedContainer)
	}
	if run < 2 {
		return nil, nil
	}
	if imageType == LabelImage {
		return pages[len(pages)-2], nil
	}
	return pages[len(pages)-1], nil
}
