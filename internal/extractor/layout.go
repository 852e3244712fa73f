package extractor

import (
	"math"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Glyph is one character drawn on a page. X and Y are the baseline origin in PDF
// user space, so Y grows towards the top of the page. Size is the horizontal
// component of the rendered font size and drops to zero for text rotated a
// quarter turn.
type Glyph struct {
	S    string
	X, Y float64
	W    float64
	Size float64
	Font string
}

func glyphsFromContent(texts []pdf.Text) []Glyph {
	glyphs := make([]Glyph, 0, len(texts))
	for _, t := range texts {
		if strings.TrimFunc(t.S, unicode.IsSpace) == "" {
			continue
		}
		glyphs = append(glyphs, Glyph{S: t.S, X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, Font: t.Font})
	}
	return glyphs
}

// pageHeight returns the MediaBox height, following the page tree for inherited
// boxes. US Letter is assumed when no box is declared.
func pageHeight(p pdf.Page) float64 {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Len() == 4 {
			return math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
		}
	}
	return 792
}

// cropGlyphs keeps the glyphs whose origin falls inside box. The box uses a
// top-left origin, so Y is flipped against the page height first.
func cropGlyphs(glyphs []Glyph, box *models.CropBox, height float64) []Glyph {
	if box == nil {
		return glyphs
	}
	return slices.DeleteFunc(slices.Clone(glyphs), func(g Glyph) bool {
		return !box.Contains(g.X, height-g.Y)
	})
}

const (
	// Glyphs whose baselines differ by no more than this share a row.
	rowTolerance = 2.0
	// Used when no glyph on the page reports a width.
	defaultCharWidth = 5.0
)

type row struct {
	y      float64
	glyphs []Glyph
}

// renderLayout flattens glyphs into text that keeps the physical layout of the
// page: one line per baseline, top to bottom, with glyphs placed in columns
// derived from their X position so that table columns stay aligned.
func renderLayout(glyphs []Glyph) string {
	if len(glyphs) == 0 {
		return ""
	}

	sorted := slices.Clone(glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows []row
	for _, g := range sorted {
		if n := len(rows); n > 0 && math.Abs(rows[n-1].y-g.Y) <= rowTolerance {
			rows[n-1].glyphs = append(rows[n-1].glyphs, g)
			continue
		}
		rows = append(rows, row{y: g.Y, glyphs: []Glyph{g}})
	}

	cw := charWidth(glyphs)
	minX := glyphs[0].X
	for _, g := range glyphs {
		minX = min(minX, g.X)
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		sort.SliceStable(r.glyphs, func(i, j int) bool { return r.glyphs[i].X < r.glyphs[j].X })

		var b strings.Builder
		col := 0
		var prevEnd float64
		for i, g := range r.glyphs {
			target := int(math.Round((g.X - minX) / cw))
			switch {
			case target > col:
				b.WriteString(strings.Repeat(" ", target-col))
				col = target
			case i > 0 && g.X-prevEnd > 0.3*cw:
				// Column collapsed onto the previous glyph; keep the word gap.
				b.WriteByte(' ')
				col++
			}
			b.WriteString(g.S)
			col += len([]rune(g.S))
			prevEnd = g.X + g.W
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return strings.Join(lines, "\n")
}

// charWidth returns the median glyph width, the size of one text column.
func charWidth(glyphs []Glyph) float64 {
	widths := make([]float64, 0, len(glyphs))
	for _, g := range glyphs {
		if g.W > 0 {
			widths = append(widths, g.W/float64(max(1, len([]rune(g.S)))))
		}
	}
	if len(widths) == 0 {
		return defaultCharWidth
	}
	slices.Sort(widths)
	return widths[len(widths)/2]
}
