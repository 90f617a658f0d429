// Package deident sequences the redaction of one whole-slide-image file: copy
// the original to a working path while fingerprinting it, filter page
// descriptions against the allow-list, blank the label image in place, remove
// the macro image from the directory chain, then promote the working copy to
// the output path and fingerprint the result. A failure at any step discards
// the working copy; the output path is only ever touched by the final rename.
package deident

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jbarry1506/project-medid/internal/integrity"
	"github.com/jbarry1506/project-medid/internal/svs"
)

// Options carries the optional side products and the allow-list override.
// Empty directory fields disable the corresponding export.
type Options struct {
	// AllowedKeys overrides svs.DefaultAllowedKeys when non-nil.
	AllowedKeys map[string]bool

	LabelImageDir string
	MacroImageDir string
	MetadataDir   string
}

// Result reports what one file's run produced.
type Result struct {
	Input        string
	Output       string
	DigestBefore string
	DigestAfter  string

	// Descriptions maps page index to the pre-filter description text of
	// every page that carried one.
	Descriptions map[int]string

	LabelImage string
	MacroImage string
	Metadata   string
}

// File de-identifies the container at inputPath into outputPath. The input is
// never modified. On error no file is left at outputPath.
func File(inputPath, outputPath string, opts Options) (*Result, error) {
	allowed := opts.AllowedKeys
	if allowed == nil {
		allowed = svs.DefaultAllowedKeys
	}
	result := &Result{
		Input:        inputPath,
		Output:       outputPath,
		Descriptions: make(map[int]string),
	}

	workPath := filepath.Join(filepath.Dir(outputPath), uuid.New().String()+".partial")
	digestBefore, err := integrity.CopyWithDigest(inputPath, workPath)
	if err != nil {
		os.Remove(workPath)
		return nil, fmt.Errorf("%s: %w", inputPath, err)
	}
	result.DigestBefore = digestBefore

	labelRaster, macroRaster, err := redactWorkingCopy(workPath, allowed, result)
	if err != nil {
		os.Remove(workPath)
		return nil, fmt.Errorf("%s: %w", inputPath, err)
	}

	base := filepath.Base(inputPath)
	if opts.LabelImageDir != "" && labelRaster != nil {
		result.LabelImage, err = saveRaster(labelRaster, opts.LabelImageDir, base)
		if err != nil {
			os.Remove(workPath)
			return nil, fmt.Errorf("%s: %w", inputPath, err)
		}
	}
	if opts.MacroImageDir != "" && macroRaster != nil {
		result.MacroImage, err = saveRaster(macroRaster, opts.MacroImageDir, base)
		if err != nil {
			os.Remove(workPath)
			return nil, fmt.Errorf("%s: %w", inputPath, err)
		}
	}

	if err := os.Rename(workPath, outputPath); err != nil {
		os.Remove(workPath)
		return nil, fmt.Errorf("%s: error promoting working copy: %w", inputPath, err)
	}
	result.DigestAfter, err = integrity.DigestOf(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inputPath, err)
	}

	if opts.MetadataDir != "" {
		result.Metadata, err = writeMetadata(opts.MetadataDir, base, result)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", inputPath, err)
		}
	}
	return result, nil
}

// redactWorkingCopy runs the in-place steps on the working file. Each step
// re-reads the page list; nothing derived before a mutation is trusted after
// it.
func redactWorkingCopy(workPath string, allowed map[string]bool, result *Result) (label, macro *svs.Raster, err error) {
	container, err := svs.Open(workPath)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		closeErr := container.Close()
		if err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	pages, err := container.Pages()
	if err != nil {
		return nil, nil, err
	}
	for _, page := range pages {
		original, _, err := container.FilterPageDescription(page, allowed)
		if err != nil {
			return nil, nil, err
		}
		if original != "" {
			result.Descriptions[page.Index] = original
		}
	}

	// The label entry stays in the chain: some downstream readers render a
	// slide with a blank label acceptably but choke when the entry is gone.
	// The macro entry is dropped outright.
	pages, err = container.Pages()
	if err != nil {
		return nil, nil, err
	}
	labelPage, err := svs.FindAssociatedImage(pages, svs.LabelImage)
	if err != nil {
		return nil, nil, err
	}
	if labelPage != nil {
		label, err = container.Redact(pages, labelPage, true)
		if err != nil {
			return nil, nil, err
		}
	}

	pages, err = container.Pages()
	if err != nil {
		return nil, nil, err
	}
	macroPage, err := svs.FindAssociatedImage(pages, svs.MacroImage)
	if err != nil {
		return nil, nil, err
	}
	if macroPage != nil {
		macro, err = container.Redact(pages, macroPage, false)
		if err != nil {
			return nil, nil, err
		}
	}
	return label, macro, nil
}

// saveRaster exports a captured associated image as PNG. Payloads in a codec
// the raster decoder does not handle are skipped, not fatal; only the zeroing
// of their bytes matters for redaction.
func saveRaster(raster *svs.Raster, dir, base string) (string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("error creating output directory: %w", err)
	}
	path := filepath.Join(dir, base+".png")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating image file: %w", err)
	}
	if err := raster.EncodePNG(file); err != nil {
		file.Close()
		os.Remove(path)
		if errors.Is(err, svs.ErrUnsupportedLayout) {
			return "", nil
		}
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("error closing image file: %w", err)
	}
	return path, nil
}
