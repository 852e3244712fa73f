// Package storage archives statement sources and outputs, grouped by job id.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for files that were never stored or were deleted.
var ErrNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file.
type FileInfo struct {
	JobID       uuid.UUID `json:"job_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // relative to the job directory
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the archive operations.
type Storage interface {
	// Save stores a file under the job and returns its metadata. Saving the same
	// name twice replaces the earlier file.
	Save(ctx context.Context, jobID uuid.UUID, name, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for a stored file.
	Open(ctx context.Context, jobID uuid.UUID, name string) (io.ReadCloser, *FileInfo, error)

	// List returns the files stored under the job, sorted by name.
	List(ctx context.Context, jobID uuid.UUID) ([]*FileInfo, error)

	// Jobs returns the ids of every job with stored files.
	Jobs(ctx context.Context) ([]uuid.UUID, error)

	// Delete removes the job and all of its files.
	Delete(ctx context.Context, jobID uuid.UUID) error
}
