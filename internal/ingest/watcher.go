// Package ingest picks statements up from an inbox directory, runs them through
// the pipeline and hands the results to sinks.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig configures an inbox watcher.
type WatchConfig struct {
	Root        string        // inbox directory, watched without recursion
	InitialScan bool          // emit statements already in Root on start
	Debounce    time.Duration // coalesce rapid create/write bursts per file
}

// Watch emits the paths of statements created or written in cfg.Root. Both
// channels are closed once ctx is done.
func Watch(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	if cfg.Root == "" {
		slog.Error("watcher start failed: no inbox directory")
		return nil, nil, errors.New("no inbox directory")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	if err := w.Add(cfg.Root); err != nil {
		slog.Error("failed to watch inbox", "root", cfg.Root, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	var initial []string
	if cfg.InitialScan {
		if initial, err = scanInbox(cfg.Root); err != nil {
			_ = w.Close()
			return nil, nil, err
		}
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer w.Close()

		send := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !send(p) {
				return
			}
		}

		pending := map[string]time.Time{}
		timer := time.NewTimer(time.Hour)
		timer.Stop()

		flush := func(now time.Time) bool {
			for p, due := range pending {
				if due.After(now) {
					continue
				}
				delete(pending, p)
				if !send(p) {
					return false
				}
			}
			if next, ok := earliest(pending); ok {
				timer.Reset(time.Until(next))
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !isStatement(e.Name) || e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if cfg.Debounce <= 0 {
					if !send(e.Name) {
						return
					}
					continue
				}
				pending[e.Name] = time.Now().Add(cfg.Debounce)
				timer.Reset(cfg.Debounce)
			case now := <-timer.C:
				if !flush(now) {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func earliest(pending map[string]time.Time) (time.Time, bool) {
	var first time.Time
	for _, due := range pending {
		if first.IsZero() || due.Before(first) {
			first = due
		}
	}
	return first, !first.IsZero()
}

// isStatement reports whether path names a PDF, ignoring hidden and partial
// uploads.
func isStatement(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".pdf")
}

// scanInbox lists the statements directly inside dir, sorted by name.
func scanInbox(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && isStatement(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}
