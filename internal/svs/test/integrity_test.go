package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jbarry1506/project-medid/internal/integrity"
)

func TestDigestOf_Deterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, []byte("whole slide image bytes"), 0o644); err != nil {
		t.Fatalf("Error writing file: %s", err)
	}
	first, err := integrity.DigestOf(path)
	if err != nil {
		t.Fatalf("Error hashing file: %s", err)
	}
	second, err := integrity.DigestOf(path)
	if err != nil {
		t.Fatalf("Error hashing file: %s", err)
	}
	if first != second {
		t.Fatalf("Digest must be deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("Expecting a hex SHA-256 digest but found %q", first)
	}
}

func TestCopyWithDigest(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte("whole slide image bytes"), 0o644); err != nil {
		t.Fatalf("Error writing file: %s", err)
	}
	copied, err := integrity.CopyWithDigest(src, dst)
	if err != nil {
		t.Fatalf("Error copying file: %s", err)
	}
	direct, err := integrity.DigestOf(dst)
	if err != nil {
		t.Fatalf("Error hashing copy: %s", err)
	}
	if copied != direct {
		t.Fatalf("Copy digest %s does not match destination digest %s", copied, direct)
	}
	srcDigest, err := integrity.DigestOf(src)
	if err != nil {
		t.Fatalf("Error hashing source: %s", err)
	}
	if copied != srcDigest {
		t.Fatalf("Copy digest %s does not match source digest %s", copied, srcDigest)
	}
}

func TestCopyWithDigest_DiffersPerContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	if err := os.WriteFile(a, []byte("before redaction"), 0o644); err != nil {
		t.Fatalf("Error writing file: %s", err)
	}
	if err := os.WriteFile(b, []byte("after  redaction"), 0o644); err != nil {
		t.Fatalf("Error writing file: %s", err)
	}
	digestA, err := integrity.DigestOf(a)
	if err != nil {
		t.Fatalf("Error hashing file: %s", err)
	}
	digestB, err := integrity.DigestOf(b)
	if err != nil {
		t.Fatalf("Error hashing file: %s", err)
	}
	if digestA == digestB {
		t.Fatalf("Different content must produce different digests")
	}
}
