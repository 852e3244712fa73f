package models

import (
	"fmt"
	"slices"
	"strings"
)

// PageRange is a half-open page index range [Start, Stop).
//
// Negative values count from the end of the document, so {Start: 0, Stop: -1}
// selects every page but the last. A Stop of zero selects through the last page,
// which makes the zero value the full document.
type PageRange struct {
	Start int `json:"start" toml:"start"`
	Stop  int `json:"stop" toml:"stop"`
}

// Resolve clamps r against a document of pageCount pages and returns the
// absolute [start, stop) bounds. ok is false when nothing is selected.
func (r PageRange) Resolve(pageCount int) (start, stop int, ok bool) {
	start = clampIndex(r.Start, pageCount)
	if r.Stop == 0 {
		stop = pageCount
	} else {
		stop = clampIndex(r.Stop, pageCount)
	}
	return start, stop, start < stop
}

func (r PageRange) String() string {
	if r.Stop == 0 {
		return fmt.Sprintf("[%d:]", r.Start)
	}
	return fmt.Sprintf("[%d:%d]", r.Start, r.Stop)
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}

// CropBox is a rectangle in page space with the origin at the top-left corner,
// measured in points.
type CropBox struct {
	Left   float64 `json:"left" toml:"left"`
	Top    float64 `json:"top" toml:"top"`
	Right  float64 `json:"right" toml:"right"`
	Bottom float64 `json:"bottom" toml:"bottom"`
}

// Contains reports whether the point (x, y) lies inside the box.
func (b CropBox) Contains(x, y float64) bool {
	return x >= b.Left && x <= b.Right && y >= b.Top && y <= b.Bottom
}

// PageSelection picks the pages to extract and an optional crop.
// The zero value means all pages, uncropped.
type PageSelection struct {
	Range PageRange `json:"range" toml:"range"`
	Crop  *CropBox  `json:"crop,omitempty" toml:"crop"`
}

// ExtractedPage is the plain text of one page.
type ExtractedPage struct {
	number int
	text   string
	lines  []string
}

// NewExtractedPage builds a page from its text. number is the page index in the
// source document.
func NewExtractedPage(number int, text string) ExtractedPage {
	return ExtractedPage{
		number: number,
		text:   text,
		lines:  strings.Split(text, "\n"),
	}
}

// Number returns the page index in the source document.
func (p ExtractedPage) Number() int { return p.number }

// Text returns the raw page text.
func (p ExtractedPage) Text() string { return p.text }

// Lines returns the page text split on newlines.
func (p ExtractedPage) Lines() []string { return slices.Clone(p.lines) }
