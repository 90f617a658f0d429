// Package integrity computes content fingerprints used to audit redaction:
// one digest of the original file, one of the redacted output. SHA-256 over
// bounded chunks, so files larger than memory stream through untouched.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const chunkSize = 1 << 20

// DigestOf returns the hex-encoded SHA-256 digest of the file at path.
func DigestOf(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()
	digest := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(digest, file, buf); err != nil {
		return "", fmt.Errorf("error reading %s: %w", path, err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// CopyWithDigest copies src to dst byte for byte and returns the hex-encoded
// SHA-256 digest of the copied content. dst is truncated if it exists.
func CopyWithDigest(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("error opening file: %w", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("error creating file: %w", err)
	}
	digest := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(io.MultiWriter(out, digest), in, buf); err != nil {
		out.Close()
		return "", fmt.Errorf("error copying %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("error closing %s: %w", dst, err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
