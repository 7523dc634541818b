package pipeline_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/grid-reliability-etl/internal/adapter/download"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
	"github.com/couchcryptid/grid-reliability-etl/internal/pipeline"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// --- fakes ---

type fakeEIA struct {
	generation map[string][]domain.RawRow
	sales      map[string][]domain.RawRow // keyed by "<sector>-<year>"
	err        error

	generationCalls int
	salesCalls      int
}

func (f *fakeEIA) Generation(_ context.Context, fuelID string) ([]domain.RawRow, error) {
	f.generationCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.generation[fuelID], nil
}

func (f *fakeEIA) RetailSales(_ context.Context, sectorID string, year int) ([]domain.RawRow, error) {
	f.salesCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sales[fmt.Sprintf("%s-%d", sectorID, year)], nil
}

// fakeArchive serves bodies keyed by cache name or by URL and records the
// requested URLs.
type fakeArchive struct {
	mu      sync.Mutex
	files   map[string][]byte
	urls    map[string][]string
	evicted []string
}

func newFakeArchive(files map[string][]byte) *fakeArchive {
	return &fakeArchive{files: files, urls: make(map[string][]string)}
}

func (f *fakeArchive) Fetch(_ context.Context, name string, urls ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls[name] = append(f.urls[name], urls...)
	if body, ok := f.files[name]; ok {
		return body, nil
	}
	for _, u := range urls {
		if body, ok := f.files[u]; ok {
			return body, nil
		}
	}
	return nil, fmt.Errorf("fetch %s: %w", name, download.ErrNotFound)
}

func (f *fakeArchive) Evict(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evicted = append(f.evicted, name)
	delete(f.files, name)
	return nil
}

// fakePages serves HTML pages by URL.
type fakePages struct {
	pages map[string]string
	calls int
}

func (f *fakePages) Get(_ context.Context, url string) ([]byte, error) {
	f.calls++
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", url, download.ErrNotFound)
	}
	return []byte(page), nil
}

// memSink keeps published documents in memory.
type memSink struct {
	docs map[string][]byte
}

func (s *memSink) Publish(_ context.Context, doc output.Document) error {
	if s.docs == nil {
		s.docs = make(map[string][]byte)
	}
	s.docs[doc.Name] = doc.Body
	return nil
}

func (s *memSink) decode(t *testing.T, name string, v any) {
	t.Helper()
	body, ok := s.docs[name]
	require.True(t, ok, "%s was not published", name)
	require.NoError(t, json.Unmarshal(body, v))
}

// --- harness ---

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	runner  *pipeline.Runner
	store   rawdata.Store
	sink    *memSink
	metrics *observability.Metrics
	ref     *domain.RefData
}

func newHarness(t *testing.T, src pipeline.Sources) *harness {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(fixedNow))
	t.Cleanup(func() { domain.SetClock(nil) })

	h := &harness{
		store:   rawdata.Store{Dir: t.TempDir()},
		sink:    &memSink{},
		metrics: observability.NewMetricsForTesting(),
		ref:     domain.DefaultRefData(),
	}
	h.runner = pipeline.New(h.ref, h.store, src, h.sink, h.metrics, slog.New(slog.DiscardHandler))
	return h
}

func (h *harness) write(t *testing.T, dataset string, year int, v any) {
	t.Helper()
	require.NoError(t, h.store.Write(dataset, year, v))
}

// --- fixtures ---

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func zipOf(t *testing.T, files ...any) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := 0; i < len(files); i += 2 {
		w, err := zw.Create(files[i].(string))
		require.NoError(t, err)
		_, err = w.Write(files[i+1].([]byte))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func f64(v float64) *float64 { return &v }
