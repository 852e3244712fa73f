package extractor

import "math"

const (
	// A glyph whose horizontal font scale is within this of zero is drawn
	// rotated by a quarter turn.
	rotatedScale = 0.01
	// Largest distance between consecutive rotated glyphs of one run, in points.
	rotatedStep = 24.0
)

// direction is the unit writing-direction vector of a run of glyphs.
type direction struct{ cos, sin float64 }

var horizontal = direction{cos: 1, sin: 0}

// removeVerticalText erases every glyph that belongs to a run whose writing
// direction is not horizontal. Stamps and sideways margin notes would otherwise
// be interleaved with the rows they cross.
func removeVerticalText(glyphs []Glyph) []Glyph {
	kept := make([]Glyph, 0, len(glyphs))
	for _, run := range glyphRuns(glyphs) {
		if runDirection(run) == horizontal {
			kept = append(kept, run...)
		}
	}
	return kept
}

// glyphRuns splits glyphs, in content stream order, into runs that were written
// as one line of text.
func glyphRuns(glyphs []Glyph) [][]Glyph {
	var runs [][]Glyph
	for i, g := range glyphs {
		if i > 0 && continuesRun(runs[len(runs)-1], g) {
			runs[len(runs)-1] = append(runs[len(runs)-1], g)
			continue
		}
		runs = append(runs, []Glyph{g})
	}
	return runs
}

func continuesRun(run []Glyph, g Glyph) bool {
	prev := run[len(run)-1]
	if prev.Font != g.Font || scaleClass(prev) != scaleClass(g) {
		return false
	}
	dx, dy := g.X-prev.X, g.Y-prev.Y
	if scaleClass(g) != 1 {
		return math.Hypot(dx, dy) <= rotatedStep
	}
	// Upright-class glyphs always move right. A tilted glyph reports its width
	// projected on the x axis, so the x step of a tilted run stays within a
	// glyph width or two while the y step grows with the angle.
	w := math.Abs(prev.W)
	if dx <= 0 || dx > max(w, prev.Size)*3 {
		return false
	}
	if math.Abs(dy) <= baselineTolerance(prev) {
		return true
	}
	if dx > 2.5*w {
		return false
	}
	if len(run) < 2 {
		return true
	}
	before := run[len(run)-2]
	return collinear(prev.X-before.X, prev.Y-before.Y, dx, dy)
}

// collinear reports whether two steps point the same way, within about 10 degrees.
func collinear(ax, ay, bx, by float64) bool {
	la, lb := math.Hypot(ax, ay), math.Hypot(bx, by)
	if la == 0 || lb == 0 {
		return false
	}
	return ax*bx+ay*by > 0 && math.Abs(ax*by-ay*bx) <= 0.18*la*lb
}

// scaleClass is 1 for upright text, 0 for text turned a quarter and -1 for text
// drawn upside down.
func scaleClass(g Glyph) int {
	switch {
	case g.Size > rotatedScale:
		return 1
	case g.Size < -rotatedScale:
		return -1
	default:
		return 0
	}
}

func baselineTolerance(g Glyph) float64 {
	return max(2, 0.5*math.Abs(g.Size))
}

// runDirection computes the writing direction from the first to the last glyph
// of a run, snapping baseline jitter to zero.
func runDirection(run []Glyph) direction {
	first, last := run[0], run[len(run)-1]
	tol := baselineTolerance(first)
	dx, dy := last.X-first.X, last.Y-first.Y
	if math.Abs(dy) <= tol {
		dy = 0
	}
	if math.Abs(dx) <= tol {
		dx = 0
	}
	length := math.Hypot(dx, dy)
	if length == 0 {
		return glyphDirection(first)
	}
	return direction{cos: dx / length, sin: dy / length}
}

// glyphDirection guesses the direction of a lone glyph from its font scale.
func glyphDirection(g Glyph) direction {
	switch scaleClass(g) {
	case 1:
		return horizontal
	case -1:
		return direction{cos: -1}
	default:
		return direction{sin: 1}
	}
}
