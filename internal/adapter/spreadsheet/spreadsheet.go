// Package spreadsheet reads the workbook, CSV and ZIP formats EIA and
// OpenEI publish into plain string rows.
package spreadsheet

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrMalformed marks input that could not be parsed in its declared format.
var ErrMalformed = errors.New("malformed input")

// ReadXLSX returns the rows of the first worksheet. Cells keep their raw
// stored value so numbers are not reformatted by the workbook's styles.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w: %w", ErrMalformed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("open workbook: %w: no sheets", ErrMalformed)
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w: %w", sheets[0], ErrMalformed, err)
	}
	return rows, nil
}

// ReadCSV returns every record of a CSV stream. Ragged rows are allowed and a
// leading byte order mark is dropped.
func ReadCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w: %w", ErrMalformed, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

// OpenZip opens an in-memory ZIP archive.
func OpenZip(body []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("open zip: %w: %w", ErrMalformed, err)
	}
	return zr, nil
}

// FindFile returns the first archive entry matching the highest-priority
// pattern. Names are matched lowercased.
func FindFile(zr *zip.Reader, patterns []*regexp.Regexp) (*zip.File, bool) {
	for _, p := range patterns {
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			if p.MatchString(strings.ToLower(f.Name)) {
				return f, true
			}
		}
	}
	return nil, false
}

// ReadZipXLSX reads the first worksheet of a workbook stored in an archive.
func ReadZipXLSX(f *zip.File) ([][]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return ReadXLSX(rc)
}

// ExtractAll writes the entries accepted by keep into dir and returns their
// paths. Entries that would land outside dir are skipped.
func ExtractAll(zr *zip.Reader, dir string, keep func(name string) bool) ([]string, error) {
	var paths []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !keep(f.Name) || !filepath.IsLocal(f.Name) {
			continue
		}
		dst := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := extractFile(f, dst); err != nil {
			return paths, err
		}
		paths = append(paths, dst)
	}
	return paths, nil
}

func extractFile(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", f.Name, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}
