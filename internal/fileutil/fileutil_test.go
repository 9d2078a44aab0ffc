package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "cache.json")

	if err := WriteFileAtomic(dst, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("content mismatch: got %q", got)
	}

	if err := WriteFileAtomic(dst, []byte(`{"a":2}`), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"a":2}` {
		t.Fatalf("overwrite mismatch: got %q", got)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %o", info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestWriteReaderAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "sprite.png")

	n, err := WriteReaderAtomic(dst, strings.NewReader("pngbytes"), 0o644, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len("pngbytes")) {
		t.Fatalf("written = %d", n)
	}
	if !Exists(dst) {
		t.Fatal("expected destination to exist")
	}
}

func TestWriteReaderAtomicRejectsOversizedStream(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "big.png")

	if _, err := WriteReaderAtomic(dst, strings.NewReader("0123456789"), 0o644, 4); err == nil {
		t.Fatal("expected size limit error")
	}
	if Exists(dst) {
		t.Fatal("oversized stream must not produce a file")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftovers, found %d", len(entries))
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if Exists(filepath.Join(dir, "missing")) {
		t.Fatal("missing file reported as existing")
	}
	if Exists(dir) {
		t.Fatal("directory reported as regular file")
	}
}
