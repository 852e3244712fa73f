package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaDir = ".meta"

// LocalStorage implements Storage using the local filesystem: one directory per
// job, with metadata kept as JSON next to the files.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save stores a file under the job and returns its metadata.
func (s *LocalStorage) Save(ctx context.Context, jobID uuid.UUID, name, contentType string, r io.Reader) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jobDir := s.jobDir(jobID)
	if err := os.MkdirAll(filepath.Join(jobDir, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}

	stored := sanitizeFilename(name)
	filePath := filepath.Join(jobDir, stored)

	// Write to a temporary file first so readers never see a partial file.
	tmp, err := os.CreateTemp(jobDir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	info := &FileInfo{
		JobID:       jobID,
		Name:        name,
		Size:        size,
		ContentType: contentType,
		Path:        stored,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.saveMetadata(info); err != nil {
		os.Remove(filePath)
		return nil, err
	}
	return info, nil
}

// Open returns a reader for a stored file.
func (s *LocalStorage) Open(ctx context.Context, jobID uuid.UUID, name string) (io.ReadCloser, *FileInfo, error) {
	info, err := s.info(ctx, jobID, sanitizeFilename(name))
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.jobDir(jobID), info.Path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s/%s", ErrNotFound, jobID, name)
		}
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, info, nil
}

// List returns the files stored under the job, sorted by name.
func (s *LocalStorage) List(ctx context.Context, jobID uuid.UUID) ([]*FileInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.jobDir(jobID), metaDir))
	if errors.Is(err, fs.ErrNotExist) {
		return []*FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}

	files := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		info, err := s.info(ctx, jobID, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	slices.SortFunc(files, func(a, b *FileInfo) int { return strings.Compare(a.Path, b.Path) })
	return files, nil
}

// Jobs returns the ids of every job with stored files.
func (s *LocalStorage) Jobs(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	var ids []uuid.UUID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if id, err := uuid.Parse(entry.Name()); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete removes the job and all of its files.
func (s *LocalStorage) Delete(ctx context.Context, jobID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.jobDir(jobID)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func (s *LocalStorage) jobDir(jobID uuid.UUID) string {
	return filepath.Join(s.basePath, jobID.String())
}

func (s *LocalStorage) info(ctx context.Context, jobID uuid.UUID, stored string) (*FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.jobDir(jobID), metaDir, stored+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, jobID, stored)
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &info, nil
}

func (s *LocalStorage) saveMetadata(info *FileInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metaPath := filepath.Join(s.jobDir(info.JobID), metaDir, info.Path+".json")
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

var unsafeFilename = strings.NewReplacer(
	"/", "_",
	"\\", "_",
	"..", "_",
	":", "_",
	"*", "_",
	"?", "_",
	"\"", "_",
	"<", "_",
	">", "_",
	"|", "_",
)

// sanitizeFilename removes unsafe characters from filenames.
func sanitizeFilename(name string) string {
	name = unsafeFilename.Replace(strings.TrimSpace(name))
	if name == "" || strings.HasPrefix(name, ".") {
		name = "_" + name
	}
	return name
}
