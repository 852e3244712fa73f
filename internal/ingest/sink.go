package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/pipeline"
	"github.com/insightdelivered/statement-ingest/internal/storage"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

// Delivery is a processed job handed to sinks.
type Delivery struct {
	Job    pipeline.Job
	Result pipeline.Result
}

// Sink publishes processed statements somewhere.
type Sink interface {
	Publish(ctx context.Context, d Delivery) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, d Delivery) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, d Delivery) error { return f(ctx, d) }

// OutputSink writes each parsed statement next to the others in Dir, named
// after its source. Failed jobs are skipped.
type OutputSink struct {
	Dir           string
	Format        writer.Format
	IncludeHeader bool
}

// Publish writes the statement file.
func (s *OutputSink) Publish(ctx context.Context, d Delivery) error {
	if d.Result.Err != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	base := strings.TrimSuffix(d.Result.Source, filepath.Ext(d.Result.Source))
	path := filepath.Join(s.Dir, base+s.Format.Extension())
	return writer.WriteToFile(path, writer.New(s.Format, s.IncludeHeader), d.Result.Output())
}

// ArchiveSink keeps the source document and the outcome of every job, parsed
// or failed, under the job id.
type ArchiveSink struct {
	Store storage.Storage
}

// Archived file names.
const (
	ResultFile = "result.json"
	ErrorFile  = "error.json"
)

type failure struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// Publish archives the source and the outcome.
func (s *ArchiveSink) Publish(ctx context.Context, d Delivery) error {
	id := d.Result.ID

	src, err := openSource(d.Job)
	if err != nil {
		return fmt.Errorf("archive %s: %w", d.Result.Source, err)
	}
	_, err = s.Store.Save(ctx, id, d.Result.Source, "application/pdf", src)
	src.Close()
	if err != nil {
		return fmt.Errorf("archive %s: %w", d.Result.Source, err)
	}

	var buf bytes.Buffer
	name := ResultFile
	if d.Result.Err != nil {
		name = ErrorFile
		err = json.NewEncoder(&buf).Encode(failure{
			Source: d.Result.Source,
			Kind:   models.ErrorKind(d.Result.Err),
			Error:  d.Result.Err.Error(),
		})
	} else {
		err = (&writer.JSONWriter{}).Write(&buf, d.Result.Output())
	}
	if err != nil {
		return fmt.Errorf("archive %s: %w", d.Result.Source, err)
	}
	if _, err := s.Store.Save(ctx, id, name, "application/json", &buf); err != nil {
		return fmt.Errorf("archive %s: %w", d.Result.Source, err)
	}
	return nil
}

func openSource(job pipeline.Job) (io.ReadCloser, error) {
	if job.Source.Bytes != nil {
		return io.NopCloser(bytes.NewReader(job.Source.Bytes)), nil
	}
	return os.Open(job.Source.Path)
}
