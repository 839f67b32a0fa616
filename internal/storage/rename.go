package storage

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/armdoe/dsproc/internal/dberr"
	"github.com/armdoe/dsproc/internal/model"
)

// preserveDotsForLevel implements the default preserve-dots inference:
// 2 trailing dot-separated components for level-0 (raw/ingest-facing)
// streams, 0 otherwise.
func preserveDotsForLevel(level string) int {
	if level == "0" {
		return 2
	}
	return 0
}

// preserveDotsFromName infers a preserve_dots count by stripping a
// leading "{dsName}.YYYYMMDD.hhmmss.{alpha}" prefix from an
// already-canonical input file name and counting the remaining dots.
func preserveDotsFromName(dsName, fileName string) (int, bool) {
	pattern := `^` + regexp.QuoteMeta(dsName) + `\.[0-9]{8}\.[0-9]{6}\.[[:alpha:]]+\.`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, false
	}
	loc := re.FindStringIndex(fileName)
	if loc == nil {
		return 0, false
	}
	rest := fileName[loc[1]:]
	if rest == "" {
		return 0, true
	}
	return strings.Count(rest, ".") + 1, true
}

// canonicalName builds the archival file name
// "{dsName}.{YYYYMMDD.hhmmss}.{ext}[.{preserve}]".7 specifies.
func canonicalName(dsName string, t model.Time, ext, preserve string) string {
	stamp := t.GoTime().Format("20060102.150405")
	name := fmt.Sprintf("%s.%s.%s", dsName, stamp, ext)
	if preserve != "" {
		name += "." + preserve
	}
	return name
}

// trailingDots returns the last n dot-separated components of name,
// joined back with dots, or "" if n <= 0 or name has too few components.
func trailingDots(name string, n int) string {
	if n <= 0 {
		return ""
	}
	parts := strings.Split(name, ".")
	if n >= len(parts) {
		return ""
	}
	return strings.Join(parts[len(parts)-n:], ".")
}

// RenameOptions configures RenameRaw.
type RenameOptions struct {
	DSName       string
	Level        string
	Extension    string
	PreserveDots int // -1 requests the level-derived default

	// ForceMode allows an MD5 mismatch against an existing destination
	// file to be resolved by appending a unique ",N" suffix instead of
	// failing.
	ForceMode bool
}

// RenameRaw moves srcPath (named fileName) into destDir under the
// canonical archival name derived from beginTime, handling an existing
// destination file by MD5 comparison. A ".done" subdirectory of destDir,
// if present, is preferred as the destination and always allows the
// forced-unique-suffix path.
func RenameRaw(srcPath, fileName, destDir string, beginTime model.Time, opts RenameOptions) (string, error) {
	preserve := opts.PreserveDots
	if preserve < 0 {
		if inferred, ok := preserveDotsFromName(opts.DSName, fileName); ok {
			preserve = inferred
		} else {
			preserve = preserveDotsForLevel(opts.Level)
		}
	}
	preserveSuffix := trailingDots(fileName, preserve)

	destPath := destDir
	forceRename := opts.ForceMode
	doneDir := filepath.Join(destDir, ".done")
	if fi, err := os.Stat(doneDir); err == nil && fi.IsDir() {
		destPath = doneDir
		forceRename = true
	} else if err := os.MkdirAll(destDir, 0o775); err != nil {
		return "", dberr.Wrap(dberr.IOAccess, err, "storage.RenameRaw: could not create destination directory %q", destDir)
	}

	destName := canonicalName(opts.DSName, beginTime, opts.Extension, preserveSuffix)
	destFile := filepath.Join(destPath, destName)

	renameFile := true
	if _, err := os.Stat(destFile); err == nil {
		srcMD5, err := fileMD5(srcPath)
		if err != nil {
			return "", dberr.Wrap(dberr.FileMD5Mismatch, err, "storage.RenameRaw: could not compute source MD5 for %q", srcPath)
		}
		destMD5, err := fileMD5(destFile)
		if err != nil {
			return "", dberr.Wrap(dberr.FileMD5Mismatch, err, "storage.RenameRaw: could not compute destination MD5 for %q", destFile)
		}

		if srcMD5 == destMD5 {
			if err := os.Remove(srcPath); err != nil {
				return "", dberr.Wrap(dberr.IOUnlink, err, "storage.RenameRaw: matching MD5s but could not delete source %q", srcPath)
			}
			renameFile = false
		} else if !forceRename {
			return "", dberr.New(dberr.FileMD5Mismatch,
				"storage.RenameRaw: destination %q exists with a different MD5 than source %q", destFile, srcPath)
		} else {
			destFile, err = uniqueFileName(destFile)
			if err != nil {
				return "", err
			}
		}
	} else if !os.IsNotExist(err) {
		return "", dberr.Wrap(dberr.IOAccess, err, "storage.RenameRaw: could not stat destination %q", destFile)
	}

	if renameFile {
		if err := os.Rename(srcPath, destFile); err != nil {
			return "", dberr.Wrap(dberr.IOAccess, err, "storage.RenameRaw: could not rename %q to %q", srcPath, destFile)
		}
		return destFile, nil
	}
	return "", nil
}

// RenameBad moves a file that failed ingestion into destDir, preserving
// its original name but replacing (or appending) the extension with
// "bad".
func RenameBad(srcPath, fileName, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o775); err != nil {
		return "", dberr.Wrap(dberr.IOAccess, err, "storage.RenameBad: could not create destination directory %q", destDir)
	}
	base := fileName
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	destFile := filepath.Join(destDir, base+".bad")
	if _, err := os.Stat(destFile); err == nil {
		destFile, err = uniqueFileName(destFile)
		if err != nil {
			return "", err
		}
	}
	if err := os.Rename(srcPath, destFile); err != nil {
		return "", dberr.Wrap(dberr.IOAccess, err, "storage.RenameBad: could not rename %q to %q", srcPath, destFile)
	}
	return destFile, nil
}

// uniqueFileName appends ",1", ",2", ... to path until an unused name is
// found.
func uniqueFileName(path string) (string, error) {
	for v := 1; ; v++ {
		candidate := fmt.Sprintf("%s,%d", path, v)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", dberr.Wrap(dberr.IOAccess, err, "storage.uniqueFileName: could not stat %q", candidate)
		}
	}
}

func fileMD5(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
