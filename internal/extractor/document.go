package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Source locates a statement document. Exactly one of Path or Bytes must be set.
type Source struct {
	Path  string
	Bytes []byte
	// Name labels an in-memory source in errors and logs. Defaults to "<memory>".
	Name string
}

// FromPath returns a Source reading the file at path.
func FromPath(path string) Source { return Source{Path: path} }

// FromBytes returns a Source over an in-memory document.
func FromBytes(name string, data []byte) Source { return Source{Bytes: data, Name: name} }

// Label names the source in errors and logs: the file name, Name, or "<memory>".
func (s Source) Label() string {
	switch {
	case s.Path != "":
		return filepath.Base(s.Path)
	case s.Name != "":
		return s.Name
	default:
		return "<memory>"
	}
}

func (s Source) load() ([]byte, error) {
	hasPath, hasBytes := s.Path != "", s.Bytes != nil
	switch {
	case hasPath && hasBytes:
		return nil, fmt.Errorf("%w: both path and bytes supplied", models.ErrInvalidSource)
	case !hasPath && !hasBytes:
		return nil, fmt.Errorf("%w: neither path nor bytes supplied", models.ErrInvalidSource)
	case hasBytes:
		return s.Bytes, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Label(), err)
	}
	return data, nil
}

// Document is an opened statement PDF. It is owned by the caller of Open and
// must be closed when the caller is done with it. Encrypted documents are held
// decrypted, so no credential outlives Open.
type Document struct {
	name      string
	data      []byte
	reader    *pdf.Reader
	encrypted bool
	closed    bool
}

// Open loads a document and authenticates it against credentials, tried in order.
//
// Unencrypted documents open regardless of credentials, as do encrypted ones
// with an empty user password. Otherwise a nil or all-blank list fails with
// ErrMissingCredential, a list holding a zero Credential fails with
// ErrMalformedCredential, and a list with no working credential fails with
// ErrWrongCredential.
func Open(src Source, credentials []models.Credential) (*Document, error) {
	data, err := src.load()
	if err != nil {
		return nil, err
	}
	name := src.Label()

	if reader, err := newReader(data); err == nil && reader.Trailer().Key("Encrypt").IsNull() {
		return &Document{name: name, data: data, reader: reader}, nil
	}

	plain, err := decrypt(data, "")
	switch {
	case err == nil:
		return openDecrypted(name, plain)
	case !errors.Is(err, pdfcpu.ErrWrongPassword):
		return nil, fmt.Errorf("%w: open %s: %w", models.ErrInvalidSource, name, err)
	}

	if err := checkCredentials(credentials); err != nil {
		return nil, err
	}
	for _, c := range credentials {
		if c.Blank() {
			continue
		}
		plain, err = decrypt(data, c.Reveal())
		if errors.Is(err, pdfcpu.ErrWrongPassword) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %w", models.ErrInvalidSource, name, err)
		}
		slog.Debug("authenticated encrypted document", "document", name)
		return openDecrypted(name, plain)
	}
	return nil, fmt.Errorf("%w: could not open document %s", models.ErrWrongCredential, name)
}

func openDecrypted(name string, plain []byte) (*Document, error) {
	reader, err := newReader(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: open decrypted %s: %w", models.ErrInvalidSource, name, err)
	}
	return &Document{name: name, data: plain, reader: reader, encrypted: true}, nil
}

func checkCredentials(credentials []models.Credential) error {
	if credentials == nil {
		return fmt.Errorf("%w: no credential supplied for encrypted document", models.ErrMissingCredential)
	}
	for i, c := range credentials {
		if !c.Valid() {
			return fmt.Errorf("%w: item %d is not a credential", models.ErrMalformedCredential, i)
		}
	}
	for _, c := range credentials {
		if !c.Blank() {
			return nil
		}
	}
	return fmt.Errorf("%w: credential is empty", models.ErrMissingCredential)
}

// newReader wraps pdf.NewReader, converting library panics into errors.
func newReader(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("PDF library crashed: %v", p)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

// Name returns the source label used in errors and logs.
func (d *Document) Name() string { return d.name }

// Encrypted reports whether the document carried an encryption dictionary.
func (d *Document) Encrypted() bool { return d.encrypted }

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	if d.closed {
		return 0
	}
	return d.reader.NumPage()
}

// Close releases the document. It is safe to call more than once.
func (d *Document) Close() error {
	d.closed = true
	d.reader = nil
	d.data = nil
	return nil
}

var errClosed = errors.New("document is closed")
