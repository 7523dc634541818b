package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Document is an encoded output file ready to publish.
type Document struct {
	Name string
	Body []byte
}

// Encode renders v as an indented JSON document.
func Encode(name string, v any) (Document, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Document{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return Document{Name: name, Body: append(body, '\n')}, nil
}

// Sink publishes finished documents.
type Sink interface {
	Publish(ctx context.Context, doc Document) error
}

// FileSink writes documents into a directory, replacing any previous file.
type FileSink struct {
	Dir string
}

// Publish writes doc to Dir/doc.Name.
func (s FileSink) Publish(_ context.Context, doc Document) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.Dir, doc.Name)
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Fanout publishes to a primary sink and then to optional mirrors. Only the
// primary's failure is returned; mirror failures are logged.
type Fanout struct {
	Primary Sink
	Mirrors []Sink
	Logger  *slog.Logger
}

// Publish implements Sink.
func (f Fanout) Publish(ctx context.Context, doc Document) error {
	if err := f.Primary.Publish(ctx, doc); err != nil {
		return err
	}
	var errs []error
	for _, m := range f.Mirrors {
		if err := m.Publish(ctx, doc); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && f.Logger != nil {
		f.Logger.Warn("mirror publish failed", "file", doc.Name, "error", err)
	}
	return nil
}
