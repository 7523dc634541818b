// Package rawdata persists fetched inputs as per-year JSON files under
// <dir>/<dataset>/<dataset>_<year>.json.
package rawdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
)

// Dataset directory names.
const (
	Generation  = "generation"
	Reliability = "reliability"
	Rates       = "rates"
	Utilities   = "utilities"
	Form861     = "form861"
	Outages     = "outages"
	Wholesale   = "wholesale"
)

// ErrMissing is returned when a year file does not exist.
var ErrMissing = errors.New("raw input missing")

// Store reads and writes raw dataset files.
type Store struct {
	Dir string
}

// DatasetDir is the directory holding a dataset's files and caches.
func (s Store) DatasetDir(dataset string) string {
	return filepath.Join(s.Dir, dataset)
}

// Path is the JSON file for one dataset year.
func (s Store) Path(dataset string, year int) string {
	return filepath.Join(s.DatasetDir(dataset), fmt.Sprintf("%s_%d.json", dataset, year))
}

// HasDataset reports whether the dataset directory exists.
func (s Store) HasDataset(dataset string) bool {
	info, err := os.Stat(s.DatasetDir(dataset))
	return err == nil && info.IsDir()
}

// Years lists the years that have a file, ascending.
func (s Store) Years(dataset string) ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(s.DatasetDir(dataset), dataset+"_*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s files: %w", dataset, err)
	}
	years := make([]int, 0, len(matches))
	for _, m := range matches {
		suffix := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), dataset+"_"), ".json")
		y, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

// ReadRows loads a list-shaped year file. Numbers are kept as json.Number.
func (s Store) ReadRows(dataset string, year int) ([]domain.RawRow, error) {
	var rows []domain.RawRow
	if err := s.read(dataset, year, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ReadGeneration loads a generation year file keyed by fuel id.
func (s Store) ReadGeneration(year int) (map[string][]domain.RawRow, error) {
	var byFuel map[string][]domain.RawRow
	if err := s.read(Generation, year, &byFuel); err != nil {
		return nil, err
	}
	return byFuel, nil
}

// Write stores v as the dataset's file for year, creating the directory.
func (s Store) Write(dataset string, year int, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", dataset, year, err)
	}
	if err := os.MkdirAll(s.DatasetDir(dataset), 0o755); err != nil {
		return fmt.Errorf("create %s dir: %w", dataset, err)
	}
	path := s.Path(dataset, year)
	if err := os.WriteFile(path, append(body, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s Store) read(dataset string, year int, v any) error {
	path := s.Path(dataset, year)
	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %d: %w", dataset, year, ErrMissing)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
