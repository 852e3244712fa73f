package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-ingest/internal/bank"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/pdftest"
	"github.com/insightdelivered/statement-ingest/internal/pipeline"
	"github.com/insightdelivered/statement-ingest/internal/storage"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

func testPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	r, err := bank.NewRegistry(bank.Profile{
		Name:         "Acme",
		Fingerprints: []string{"ACME CARD"},
		Currency:     "GBP",
		Formats: []bank.StatementFormat{{
			Kind:                  models.KindCredit,
			StatementDatePattern:  `Statement Date: (?P<date>\d{2}/\d{2}/\d{4})`,
			StatementDateLayout:   "02/01/2006",
			TransactionPattern:    `^(?P<date>\d{2}/\d{2})\s+(?P<description>.+?)\s+(?P<amount>[\d,]+\.\d{2})$`,
			TransactionDateLayout: "02/01",
			BalancePattern:        `Previous Balance\s+(?P<amount>[\d,]+\.\d{2})`,
		}},
	})
	require.NoError(t, err)
	return pipeline.New(r, pipeline.WithLogger(discard()))
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeStatement(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pdftest.BuildText(t, lines), 0o644))
	return path
}

type fixture struct {
	inbox, out string
	store      *storage.LocalStorage
	svc        *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{inbox: filepath.Join(root, "inbox"), out: filepath.Join(root, "out")}
	require.NoError(t, os.MkdirAll(f.inbox, 0o755))

	var err error
	f.store, err = storage.NewLocalStorage(filepath.Join(root, "archive"))
	require.NoError(t, err)

	f.svc = NewService(testPipeline(t), Config{Dir: f.inbox, Debounce: 20 * time.Millisecond, Workers: 2}, discard(),
		&OutputSink{Dir: f.out, Format: writer.FormatCSV, IncludeHeader: true},
		&ArchiveSink{Store: f.store},
	)
	return f
}

func TestHandleParsedStatement(t *testing.T) {
	f := newFixture(t)
	path := writeStatement(t, f.inbox, "december.pdf",
		"ACME CARD", "Statement Date: 15/12/2023", "Previous Balance 10.00", "01/12 Coffee 4.50")

	res, err := f.svc.Handle(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, "Acme", res.Institution)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file should leave the inbox")
	moved, err := filepath.Glob(filepath.Join(f.inbox, ProcessedDir, "*_december.pdf"))
	require.NoError(t, err)
	assert.Len(t, moved, 1)

	csv, err := os.ReadFile(filepath.Join(f.out, "december.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csv), "Coffee")

	files, err := f.store.List(context.Background(), res.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "december.pdf", files[0].Name)
	assert.Equal(t, ResultFile, files[1].Name)
}

func TestHandleFailedStatement(t *testing.T) {
	f := newFixture(t)
	path := writeStatement(t, f.inbox, "mystery.pdf", "MYSTERY LENDER")

	res, err := f.svc.Handle(context.Background(), path)
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, models.ErrUnrecognizedInstitution)

	moved, _ := filepath.Glob(filepath.Join(f.inbox, FailedDir, "*_mystery.pdf"))
	assert.Len(t, moved, 1)

	_, err = os.Stat(filepath.Join(f.out, "mystery.csv"))
	assert.True(t, os.IsNotExist(err), "failed statements produce no output")

	rc, _, err := f.store.Open(context.Background(), res.ID, ErrorFile)
	require.NoError(t, err)
	defer rc.Close()
	var failure struct{ Kind string }
	require.NoError(t, json.NewDecoder(rc).Decode(&failure))
	assert.Equal(t, "unrecognized_institution", failure.Kind)
}

func TestHandleMissingFile(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Handle(context.Background(), filepath.Join(f.inbox, "gone.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunProcessesInbox(t *testing.T) {
	f := newFixture(t)
	writeStatement(t, f.inbox, "existing.pdf",
		"ACME CARD", "Statement Date: 15/12/2023", "Previous Balance 0.00", "01/12 Tea 2.00")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(f.out, "existing.csv"))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)

	writeStatement(t, f.inbox, "dropped.pdf",
		"ACME CARD", "Statement Date: 15/12/2023", "Previous Balance 0.00", "02/12 Cake 3.00")

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(f.out, "dropped.csv"))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)
}

func TestScanInbox(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt", ".hidden.pdf", "~lock.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	paths, err := scanInbox(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.PDF"), filepath.Join(dir, "b.pdf")}, paths)
}

func TestSweeperRunNow(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), nil, 0o644))

	out := make(chan string, 4)
	s, err := NewSweeper(dir, "@every 1h", out, discard())
	require.NoError(t, err)
	s.RunNow()

	select {
	case p := <-out:
		assert.Equal(t, filepath.Join(dir, "a.pdf"), p)
	default:
		t.Fatal("expected a swept path")
	}

	_, err = NewSweeper(dir, "not a schedule", out, discard())
	assert.Error(t, err)
}

func TestWatchEmitsNewStatements(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := Watch(ctx, WatchConfig{Root: dir, Debounce: 10 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.pdf"), []byte("x"), 0o644))

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(dir, "new.pdf"), p)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for new.pdf")
	}

	cancel()
	for range events {
	}
}

func TestSinkFunc(t *testing.T) {
	var got pipeline.Result
	sink := SinkFunc(func(_ context.Context, d Delivery) error {
		got = d.Result
		return nil
	})
	require.NoError(t, sink.Publish(context.Background(), Delivery{Result: pipeline.Result{Source: "x.pdf"}}))
	assert.Equal(t, "x.pdf", got.Source)
}
