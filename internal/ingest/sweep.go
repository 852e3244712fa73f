package ingest

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Sweeper rescans the inbox on a cron schedule, catching files the watcher
// missed, such as those left behind by a restart.
type Sweeper struct {
	cron   *cron.Cron
	root   string
	out    chan<- string
	logger *slog.Logger
}

// NewSweeper creates a sweeper that sends every statement found in root to out.
// spec is a standard 5-field cron expression or a descriptor such as "@every 5m".
func NewSweeper(root, spec string, out chan<- string, logger *slog.Logger) (*Sweeper, error) {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	s := &Sweeper{cron: c, root: root, out: out, logger: logger}
	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("inbox sweeper started", slog.String("root", s.root), slog.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the schedule. The returned context is done once a running sweep
// has finished.
func (s *Sweeper) Stop() context.Context {
	s.logger.Info("inbox sweeper stopping")
	return s.cron.Stop()
}

// RunNow sweeps immediately on the caller's goroutine.
func (s *Sweeper) RunNow() {
	s.sweep()
}

func (s *Sweeper) sweep() {
	paths, err := scanInbox(s.root)
	if err != nil {
		s.logger.Warn("inbox sweep failed", slog.String("root", s.root), slog.Any("error", err))
		return
	}
	for _, p := range paths {
		select {
		case s.out <- p:
		default:
			s.logger.Debug("inbox queue full, leaving file for the next sweep", slog.String("path", p))
		}
	}
	if len(paths) > 0 {
		s.logger.Debug("inbox sweep queued files", slog.Int("files", len(paths)))
	}
}
