package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	job := uuid.New()
	info, err := s.Save(ctx, job, "statement.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, job, info.JobID)
	assert.Equal(t, int64(8), info.Size)

	_, err = s.Save(ctx, job, "result.json", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)

	rc, got, err := s.Open(ctx, job, "statement.pdf")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "application/pdf", got.ContentType)

	files, err := s.List(ctx, job)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "result.json", files[0].Name)
	assert.Equal(t, "statement.pdf", files[1].Name)

	jobs, err := s.Jobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{job}, jobs)
}

func TestLocalStorageReplacesSameName(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	job := uuid.New()
	_, err = s.Save(ctx, job, "result.json", "application/json", strings.NewReader("first"))
	require.NoError(t, err)
	_, err = s.Save(ctx, job, "result.json", "application/json", strings.NewReader("second"))
	require.NoError(t, err)

	rc, _, err := s.Open(ctx, job, "result.json")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "second", string(body))

	files, err := s.List(ctx, job)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestLocalStorageNotFound(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, _, err = s.Open(ctx, uuid.New(), "missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, uuid.New()), ErrNotFound)

	files, err := s.List(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocalStorageDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	job := uuid.New()
	_, err = s.Save(ctx, job, "a.pdf", "application/pdf", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, job))

	_, _, err = s.Open(ctx, job, "a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorageHonoursContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Save(ctx, uuid.New(), "a.pdf", "application/pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"statement.pdf":     "statement.pdf",
		"../../etc/passwd":  "____etc_passwd",
		"a:b*c?.pdf":        "a_b_c_.pdf",
		".meta":             "_.meta",
		"  ":                "_",
		`dir\file<1>|2.pdf`: "dir_file_1__2.pdf",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
