package deident

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// metadataRecord is the per-slide audit record, one JSON file per input,
// keyed by the original filename.
type metadataRecord struct {
	DeidentFilename string         `json:"deident_filename"`
	DigestBefore    string         `json:"digest_before"`
	DigestAfter     string         `json:"digest_after"`
	Descriptions    map[int]string `json:"original_descriptions,omitempty"`
}

func writeMetadata(dir, base string, result *Result) (string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("error creating metadata directory: %w", err)
	}
	record := metadataRecord{
		DeidentFilename: filepath.Base(result.Output),
		DigestBefore:    result.DigestBefore,
		DigestAfter:     result.DigestAfter,
		Descriptions:    result.Descriptions,
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error encoding metadata: %w", err)
	}
	path := filepath.Join(dir, base+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("error writing metadata: %w", err)
	}
	return path, nil
}
