// Package pipeline runs statement documents through open, identify, extract and
// parse, one Document per job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/statement-ingest/internal/bank"
	"github.com/insightdelivered/statement-ingest/internal/extractor"
	"github.com/insightdelivered/statement-ingest/internal/metrics"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/parser"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

const tracerName = "github.com/insightdelivered/statement-ingest/internal/pipeline"

// Job is one document to process.
type Job struct {
	ID     uuid.UUID
	Source extractor.Source
	// Credentials are tried in order. Nil means the credentials of the named
	// institution, or of every registered institution when none is named.
	Credentials []models.Credential
	// Institution skips identification when set.
	Institution string
}

// Result is the outcome of one job. Exactly one of Statement and Err is set.
type Result struct {
	ID          uuid.UUID            `json:"id"`
	Source      string               `json:"source"`
	Institution string               `json:"institution,omitempty"`
	Currency    string               `json:"currency,omitempty"`
	Kind        models.StatementKind `json:"kind,omitempty"`
	Statement   *models.ParseResult  `json:"statement,omitempty"`
	Duration    time.Duration        `json:"duration"`
	Err         error                `json:"-"`
}

// Output returns the result in the form the writers serialize.
func (r Result) Output() writer.Statement {
	return writer.Statement{
		Source:      r.Source,
		Institution: r.Institution,
		Currency:    r.Currency,
		Kind:        r.Kind,
		Result:      r.Statement,
	}
}

// Pipeline processes statement documents against a registry of institutions.
// It is safe for concurrent use.
type Pipeline struct {
	registry *bank.Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	timeout  time.Duration
	workers  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTimeout bounds the time spent on each document. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithWorkers sets how many documents Batch processes at once.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// New returns a pipeline over registry.
func New(registry *bank.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: registry,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		workers:  4,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// Registry returns the registry the pipeline identifies documents against.
func (p *Pipeline) Registry() *bank.Registry { return p.registry }

// Process runs one job to completion. Failures are reported in Result.Err; the
// document is closed on every path.
func (p *Pipeline) Process(ctx context.Context, job Job) Result {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	res := Result{ID: job.ID, Source: job.Source.Label()}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("statement.id", job.ID.String()),
		attribute.String("statement.source", res.Source),
	))
	defer span.End()

	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	start := time.Now()
	res.Err = p.run(ctx, job, &res)
	res.Duration = time.Since(start)

	institution := res.Institution
	if institution == "" {
		institution = "unknown"
	}
	log := p.logger.With("id", res.ID, "source", res.Source, "institution", institution)

	if res.Err != nil {
		kind := models.ErrorKind(res.Err)
		res.Statement = nil
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, kind)
		metrics.DocumentsProcessed.WithLabelValues(institution, kind).Inc()
		log.Warn("statement failed", "kind", kind, "error", res.Err, "duration", res.Duration)
		return res
	}

	span.SetAttributes(
		attribute.String("statement.institution", res.Institution),
		attribute.Int("statement.transactions", len(res.Statement.Transactions)),
	)
	metrics.DocumentsProcessed.WithLabelValues(institution, "ok").Inc()
	metrics.TransactionsParsed.WithLabelValues(institution).Add(float64(len(res.Statement.Transactions)))
	log.Info("statement parsed",
		"transactions", len(res.Statement.Transactions),
		"closing_balance", res.Statement.ClosingBalance.String(),
		"duration", res.Duration)
	return res
}

func (p *Pipeline) run(ctx context.Context, job Job, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var named *bank.Profile
	if job.Institution != "" {
		profile, ok := p.registry.Lookup(job.Institution)
		if !ok {
			return fmt.Errorf("%w: no institution named %q", models.ErrUnrecognizedInstitution, job.Institution)
		}
		named = &profile
	}

	creds := job.Credentials
	if creds == nil {
		if named != nil && len(named.Credentials) > 0 {
			creds = named.Credentials
		} else {
			creds = p.registry.Credentials()
		}
	}

	var doc *extractor.Document
	err := p.stage(ctx, "open", func() error {
		var err error
		doc, err = extractor.Open(job.Source, creds)
		return err
	})
	if err != nil {
		return err
	}
	defer doc.Close()

	if err := ctx.Err(); err != nil {
		return err
	}

	var profile bank.Profile
	var probe string
	err = p.stage(ctx, "identify", func() error {
		var err error
		if named != nil {
			profile = *named
			if len(profile.Formats) > 1 {
				probe, err = probeText(doc, profile.ProbeSelection())
			}
			return err
		}
		profile, probe, err = p.identify(doc)
		return err
	})
	if err != nil {
		return err
	}
	res.Institution = profile.Name
	res.Currency = profile.Currency

	if err := ctx.Err(); err != nil {
		return err
	}

	format := profile.SelectFormat(probe)
	res.Kind = format.Kind

	var pages []models.ExtractedPage
	err = p.stage(ctx, "extract", func() error {
		var err error
		pages, err = extractor.ExtractPages(doc, format.Pages)
		return err
	})
	if err != nil {
		return err
	}
	if !extractor.Readable(pages) {
		p.logger.Warn("extracted text does not look like a statement; the PDF may use custom font encodings or be image based",
			"id", res.ID, "source", res.Source, "institution", profile.Name, "pages", len(pages))
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return p.stage(ctx, "parse", func() error {
		statement, err := parser.Parse(pages, format)
		if err != nil {
			return fmt.Errorf("%s: %w", profile.Name, err)
		}
		res.Statement = statement
		return nil
	})
}

// identify matches the registry's probe pages first and falls back to the
// whole document's text.
func (p *Pipeline) identify(doc *extractor.Document) (bank.Profile, string, error) {
	var sels []models.PageSelection
	for _, i := range p.registry.ProbePages() {
		sels = append(sels, bank.ProbeSelection(i))
	}
	probe, err := probeText(doc, sels...)
	if err != nil {
		return bank.Profile{}, "", err
	}
	if profile, ok := p.registry.Identify(probe); ok {
		return profile, probe, nil
	}

	raw, err := extractor.RawText(doc)
	if err != nil {
		return bank.Profile{}, "", err
	}
	if profile, ok := p.registry.Identify(raw); ok {
		return profile, raw, nil
	}
	return bank.Profile{}, "", fmt.Errorf("%w: %s", models.ErrUnrecognizedInstitution, doc.Name())
}

// probeText joins the text of the selected pages. Pages the document does not
// have are skipped.
func probeText(doc *extractor.Document, sels ...models.PageSelection) (string, error) {
	var texts []string
	for _, sel := range sels {
		extracted, err := extractor.ExtractPages(doc, sel)
		if errors.Is(err, models.ErrInvalidPageRange) {
			continue
		}
		if err != nil {
			return "", err
		}
		for _, page := range extracted {
			texts = append(texts, page.Text())
		}
	}
	return strings.Join(texts, "\n"), nil
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	_, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	err := fn()
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, models.ErrorKind(err))
	}
	return err
}

// Batch processes jobs on at most the configured number of workers. Results are
// returned in job order; one job failing does not affect the others.
func (p *Pipeline) Batch(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = p.Process(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
