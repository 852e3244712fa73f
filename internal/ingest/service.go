package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/statement-ingest/internal/extractor"
	"github.com/insightdelivered/statement-ingest/internal/metrics"
	"github.com/insightdelivered/statement-ingest/internal/pipeline"
)

// Subdirectories of the inbox that finished files are moved to.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Config configures the inbox service.
type Config struct {
	Dir      string
	Sweep    string // cron spec; empty disables sweeping
	Debounce time.Duration
	Workers  int
}

// Service processes every statement dropped into an inbox directory.
type Service struct {
	pipeline *pipeline.Pipeline
	sinks    []Sink
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService returns a service feeding the inbox into p and publishing to sinks.
func NewService(p *pipeline.Pipeline, cfg Config, logger *slog.Logger, sinks ...Sink) *Service {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Service{
		pipeline: p,
		sinks:    sinks,
		cfg:      cfg,
		logger:   logger,
		inflight: map[string]struct{}{},
	}
}

// Run watches the inbox until ctx is done. Files already present are processed
// first.
func (s *Service) Run(ctx context.Context) error {
	for _, dir := range []string{ProcessedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(s.cfg.Dir, dir), 0o755); err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
	}

	events, errs, err := Watch(ctx, WatchConfig{Root: s.cfg.Dir, InitialScan: true, Debounce: s.cfg.Debounce})
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}

	swept := make(chan string, 256)
	if s.cfg.Sweep != "" {
		sweeper, err := NewSweeper(s.cfg.Dir, s.cfg.Sweep, swept, s.logger)
		if err != nil {
			return fmt.Errorf("inbox sweep %q: %w", s.cfg.Sweep, err)
		}
		sweeper.Start()
		defer func() { <-sweeper.Stop().Done() }()
	}

	s.logger.Info("watching inbox", "dir", s.cfg.Dir, "sweep", s.cfg.Sweep, "workers", s.cfg.Workers)

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	dispatch := func(path, trigger string) {
		if !s.claim(path) {
			return
		}
		metrics.InboxFiles.WithLabelValues(trigger).Inc()
		g.Go(func() error {
			defer s.release(path)
			_, err := s.Handle(ctx, path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				s.logger.Debug("inbox file already gone", "path", path)
			case errors.Is(err, context.Canceled):
				s.logger.Debug("inbox file left for the next run", "path", path)
			case err != nil:
				s.logger.Error("inbox file not handled", "path", path, "error", err)
			}
			return nil
		})
	}

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return nil
		case path, ok := <-events:
			if !ok {
				_ = g.Wait()
				return nil
			}
			dispatch(path, "watch")
		case path := <-swept:
			dispatch(path, "sweep")
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

func (s *Service) claim(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[path]; busy {
		return false
	}
	s.inflight[path] = struct{}{}
	return true
}

func (s *Service) release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, path)
}

// Handle processes one inbox file, publishes the outcome to every sink and
// moves the file to the processed or failed subdirectory. The returned error
// reports sink and filesystem problems; a statement that fails to parse is a
// successful Handle with Result.Err set.
func (s *Service) Handle(ctx context.Context, path string) (pipeline.Result, error) {
	if _, err := os.Stat(path); err != nil {
		return pipeline.Result{}, err
	}

	job := pipeline.Job{Source: extractor.FromPath(path)}
	res := s.pipeline.Process(ctx, job)
	job.ID = res.ID
	if ctx.Err() != nil && errors.Is(res.Err, ctx.Err()) {
		// Shutting down: leave the file for the next run.
		return res, ctx.Err()
	}

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, Delivery{Job: job, Result: res}); err != nil {
			errs = append(errs, err)
		}
	}

	dest := ProcessedDir
	if res.Err != nil {
		dest = FailedDir
	}
	target := filepath.Join(s.cfg.Dir, dest, res.ID.String()[:8]+"_"+filepath.Base(path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		errs = append(errs, err)
	} else if err := os.Rename(path, target); err != nil {
		errs = append(errs, fmt.Errorf("move %s: %w", filepath.Base(path), err))
	}

	return res, errors.Join(errs...)
}
