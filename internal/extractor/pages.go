package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

type extractOptions struct {
	crop   *models.CropBox
	redact bool
}

// ExtractPages returns the text of the pages picked by sel, one ExtractedPage per
// page in document order.
//
// The document is rewritten at each level of the compaction ladder in turn and
// the first level that extracts cleanly wins. Vertical and rotated text is
// erased before the page is flattened to text.
func ExtractPages(doc *Document, sel models.PageSelection) ([]models.ExtractedPage, error) {
	if doc.closed {
		return nil, errClosed
	}
	count := doc.PageCount()
	start, stop, ok := sel.Range.Resolve(count)
	if !ok {
		return nil, fmt.Errorf("%w: %s selects no pages of %s (%d pages)", models.ErrInvalidPageRange, sel.Range, doc.name, count)
	}

	return extractWithLadder(doc, start, stop, extractOptions{crop: sel.Crop, redact: true})
}

// RawText returns the text of the whole document with pages joined by a single
// space. Nothing is cropped or erased.
func RawText(doc *Document) (string, error) {
	if doc.closed {
		return "", errClosed
	}
	pages, err := extractWithLadder(doc, 0, doc.PageCount(), extractOptions{})
	if err != nil {
		return "", err
	}
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text()
	}
	return strings.Join(texts, " "), nil
}

func extractWithLadder(doc *Document, start, stop int, opts extractOptions) ([]models.ExtractedPage, error) {
	var errs []error
	for _, level := range compactionLadder {
		pages, err := extractAtLevel(doc, level, start, stop, opts)
		if err == nil {
			return pages, nil
		}
		slog.Debug("compaction level failed", "document", doc.name, "level", level, "error", err)
		errs = append(errs, fmt.Errorf("level %d: %w", level, err))
	}
	return nil, fmt.Errorf("%w: %s: %w", models.ErrExtractionFailed, doc.name, errors.Join(errs...))
}

func extractAtLevel(doc *Document, level, start, stop int, opts extractOptions) (pages []models.ExtractedPage, err error) {
	data, err := compactFn(doc.data, level)
	if err != nil {
		return nil, err
	}
	reader, err := newReader(data)
	if err != nil {
		return nil, fmt.Errorf("reopen: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("PDF library crashed: %v", p)
		}
	}()

	if n := reader.NumPage(); n != doc.PageCount() {
		return nil, fmt.Errorf("rewritten document has %d pages, want %d", n, doc.PageCount())
	}

	pages = make([]models.ExtractedPage, 0, stop-start)
	for i := start; i < stop; i++ {
		page := reader.Page(i + 1)
		if page.V.IsNull() {
			return nil, fmt.Errorf("page %d not found", i)
		}
		glyphs := glyphsFromContent(page.Content().Text)
		glyphs = cropGlyphs(glyphs, opts.crop, pageHeight(page))
		if opts.redact {
			glyphs = removeVerticalText(glyphs)
		}
		pages = append(pages, models.NewExtractedPage(i, renderLayout(glyphs)))
	}
	return pages, nil
}
