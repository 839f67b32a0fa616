package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
)

func TestCanonicalName(t *testing.T) {
	tm := mkTime(2024, 3, 1, 13, 45, 30)
	got := canonicalName("sgpmetE13", tm, "nc", "raw.v0")
	want := "sgpmetE13.20240301.134530.nc.raw.v0"
	if got != want {
		t.Fatalf("canonicalName = %q, want %q", got, want)
	}
}

func TestCanonicalNameNoPreserve(t *testing.T) {
	tm := mkTime(2024, 3, 1, 13, 45, 30)
	got := canonicalName("sgpmetE13", tm, "csv", "")
	want := "sgpmetE13.20240301.134530.csv"
	if got != want {
		t.Fatalf("canonicalName = %q, want %q", got, want)
	}
}

func TestPreserveDotsForLevel(t *testing.T) {
	if got := preserveDotsForLevel("0"); got != 2 {
		t.Errorf("level 0 = %d, want 2", got)
	}
	if got := preserveDotsForLevel("a1"); got != 0 {
		t.Errorf("level a1 = %d, want 0", got)
	}
}

func TestPreserveDotsFromName(t *testing.T) {
	n, ok := preserveDotsFromName("sgpmetE13", "sgpmetE13.20240301.134530.raw.custom.ext")
	if !ok {
		t.Fatal("expected a match")
	}
	if n != 2 {
		t.Fatalf("preserve count = %d, want 2", n)
	}

	if _, ok := preserveDotsFromName("sgpmetE13", "not_canonical_name.dat"); ok {
		t.Error("expected no match for a non-canonical name")
	}
}

func TestTrailingDots(t *testing.T) {
	if got := trailingDots("a.b.c.d", 2); got != "c.d" {
		t.Errorf("trailingDots = %q, want %q", got, "c.d")
	}
	if got := trailingDots("a.b.c.d", 0); got != "" {
		t.Errorf("trailingDots(0) = %q, want empty", got)
	}
	if got := trailingDots("a.b", 5); got != "" {
		t.Errorf("trailingDots(too many) = %q, want empty", got)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRenameRawNoCollision(t *testing.T) {
	dir := t.TempDir()
	srcDir := filepath.Join(dir, "in")
	destDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(srcDir, 0o775); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(srcDir, "raw.dat")
	writeFile(t, src, "hello")

	beginTime := model.FromGoTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	dest, err := RenameRaw(src, "raw.dat", destDir, beginTime, RenameOptions{
		DSName: "sgpmetE13", Level: "0", Extension: "raw", PreserveDots: 0,
	})
	if err != nil {
		t.Fatalf("RenameRaw: %v", err)
	}
	if filepath.Base(dest) != "sgpmetE13.20240301.000000.raw" {
		t.Errorf("dest = %q", dest)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("expected source to be moved away")
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("expected destination file to exist: %v", err)
	}
}

func TestRenameRawMatchingMD5DeletesSource(t *testing.T) {
	dir := t.TempDir()
	destDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(destDir, 0o775); err != nil {
		t.Fatal(err)
	}
	beginTime := model.FromGoTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	existing := filepath.Join(destDir, "sgpmetE13.20240301.000000.raw")
	writeFile(t, existing, "identical-contents")

	src := filepath.Join(dir, "raw.dat")
	writeFile(t, src, "identical-contents")

	dest, err := RenameRaw(src, "raw.dat", destDir, beginTime, RenameOptions{
		DSName: "sgpmetE13", Level: "0", Extension: "raw", PreserveDots: 0,
	})
	if err != nil {
		t.Fatalf("RenameRaw: %v", err)
	}
	if dest != "" {
		t.Errorf("expected no new destination path when deleting a duplicate, got %q", dest)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("expected duplicate source to be deleted")
	}
}

func TestRenameRawMismatchedMD5Fails(t *testing.T) {
	dir := t.TempDir()
	destDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(destDir, 0o775); err != nil {
		t.Fatal(err)
	}
	beginTime := model.FromGoTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	existing := filepath.Join(destDir, "sgpmetE13.20240301.000000.raw")
	writeFile(t, existing, "old-contents")

	src := filepath.Join(dir, "raw.dat")
	writeFile(t, src, "new-contents")

	_, err := RenameRaw(src, "raw.dat", destDir, beginTime, RenameOptions{
		DSName: "sgpmetE13", Level: "0", Extension: "raw", PreserveDots: 0,
	})
	if err == nil {
		t.Fatal("expected an error for mismatched MD5 without force mode")
	}
	kind, ok := dberr.As(err)
	if !ok || kind != dberr.FileMD5Mismatch {
		t.Errorf("error kind = %v (ok=%v), want %v", kind, ok, dberr.FileMD5Mismatch)
	}
}

func TestRenameRawMismatchedMD5ForcedGetsUniqueSuffix(t *testing.T) {
	dir := t.TempDir()
	destDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(destDir, 0o775); err != nil {
		t.Fatal(err)
	}
	beginTime := model.FromGoTime(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	existing := filepath.Join(destDir, "sgpmetE13.20240301.000000.raw")
	writeFile(t, existing, "old-contents")

	src := filepath.Join(dir, "raw.dat")
	writeFile(t, src, "new-contents")

	dest, err := RenameRaw(src, "raw.dat", destDir, beginTime, RenameOptions{
		DSName: "sgpmetE13", Level: "0", Extension: "raw", PreserveDots: 0, ForceMode: true,
	})
	if err != nil {
		t.Fatalf("RenameRaw: %v", err)
	}
	if filepath.Base(dest) != "sgpmetE13.20240301.000000.raw,1" {
		t.Errorf("dest = %q, want a ,1 suffixed name", dest)
	}
}

func TestRenameBadAppendsExtension(t *testing.T) {
	dir := t.TempDir()
	destDir := filepath.Join(dir, "out")
	src := filepath.Join(dir, "sgpmetE13.20240301.000000.raw")
	writeFile(t, src, "bad-data")

	dest, err := RenameBad(src, "sgpmetE13.20240301.000000.raw", destDir)
	if err != nil {
		t.Fatalf("RenameBad: %v", err)
	}
	if filepath.Base(dest) != "sgpmetE13.20240301.000000.bad" {
		t.Errorf("dest = %q", dest)
	}
}
