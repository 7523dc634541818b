// Package pipeline wires the fetch, build, outage and wholesale commands
// from adapters, raw storage and the core transforms.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/grid-reliability-etl/internal/adapter/download"
	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
	"github.com/couchcryptid/grid-reliability-etl/internal/normalize"
	"github.com/couchcryptid/grid-reliability-etl/internal/observability"
	"github.com/couchcryptid/grid-reliability-etl/internal/output"
	"github.com/couchcryptid/grid-reliability-etl/internal/rawdata"
)

// ErrNoData means a command found nothing usable to publish.
var ErrNoData = errors.New("no usable data")

// EIA is the part of the EIA API the fetch commands use.
type EIA interface {
	Generation(ctx context.Context, fuelID string) ([]domain.RawRow, error)
	RetailSales(ctx context.Context, sectorID string, year int) ([]domain.RawRow, error)
}

// Archive fetches remote files through a local cache.
type Archive interface {
	Fetch(ctx context.Context, name string, urls ...string) ([]byte, error)
	Evict(name string) error
}

// Sources groups the remote inputs. Commands that do not use a source
// accept it being nil.
type Sources struct {
	EIA       EIA
	Form861   Archive
	Outages   Archive
	Wholesale Archive
	// Pages fetches HTML index pages for link discovery.
	Pages download.Fetcher
}

// Runner executes the pipeline commands.
type Runner struct {
	ref     *domain.RefData
	store   rawdata.Store
	src     Sources
	sink    output.Sink
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Runner.
func New(ref *domain.RefData, store rawdata.Store, src Sources, sink output.Sink, metrics *observability.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		ref:     ref,
		store:   store,
		src:     src,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
	}
}

// Skip reasons for inputs that could not be used.
const (
	reasonMissing   = "missing"
	reasonMalformed = "malformed"
	reasonEmpty     = "empty"
)

func skipReason(err error) string {
	switch {
	case errors.Is(err, rawdata.ErrMissing), errors.Is(err, download.ErrNotFound):
		return reasonMissing
	case errors.Is(err, ErrNoData):
		return reasonEmpty
	default:
		return reasonMalformed
	}
}

// skip records an input that was passed over and logs why.
func (r *Runner) skip(dataset string, year int, err error) {
	reason := skipReason(err)
	r.metrics.DatasetsSkipped.WithLabelValues(dataset, reason).Inc()
	r.logger.Warn("skipping input", "dataset", dataset, "year", year, "reason", reason, "error", err)
}

// count records normalization outcomes.
func (r *Runner) count(dataset string, read int, res normalize.Result) {
	r.metrics.RowsRead.WithLabelValues(dataset).Add(float64(read))
	for reason, n := range res.Skipped {
		r.metrics.RecordsDropped.WithLabelValues(dataset, string(reason)).Add(float64(n))
	}
	r.metrics.RecordsEmitted.WithLabelValues(dataset).Add(float64(len(res.Records)))
}

func (r *Runner) publish(ctx context.Context, name string, v any) error {
	doc, err := output.Encode(name, v)
	if err != nil {
		return err
	}
	if err := r.sink.Publish(ctx, doc); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	r.metrics.FilesPublished.WithLabelValues(name).Inc()
	r.logger.Info("file published", "file", name, "bytes", len(doc.Body))
	return nil
}
