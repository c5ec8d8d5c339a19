// Package staging copies uploaded workbooks into the upload directory and
// optionally watches that directory for workbooks dropped in by other means.
package staging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rosterline/rosterline/errors"
)

// Stage copies a workbook into the upload directory under a collision-free
// name. It returns the original base name and the staged name relative to
// the upload directory.
func Stage(uploadDir, src string) (filename string, staged string, err error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", "", errors.Wrapf(err, "failed to create upload directory %s", uploadDir)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	filename = filepath.Base(src)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	staged = stem + "_" + uuid.NewString()[:8] + ext

	out, err := os.Create(filepath.Join(uploadDir, staged))
	if err != nil {
		return "", "", errors.Wrap(err, "failed to create staged file")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return "", "", errors.Wrapf(err, "failed to stage %s", src)
	}
	return filename, staged, nil
}

// IsWorkbook reports whether a path looks like a workbook the pipeline can
// ingest. Spreadsheet lock files ("~$...") and hidden files are excluded.
func IsWorkbook(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	default:
		return false
	}
}
