// Package model implements the linear-model math used to map keys to page
// indexes within a segment: a segment's model is a single affine line fit
// over its records, and every page boundary the segment builder or the
// rewriter computes is derived from that line.
package model

import "math"

// Line is an affine mapping key -> position, position = Slope*key + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
}

// Evaluate returns Slope*x + Intercept.
func (l Line) Evaluate(x float64) float64 {
	return l.Slope*x + l.Intercept
}

// Invert returns the line mapping position -> key, i.e. the functional
// inverse of l. It is used only to compute a *candidate* boundary key; the
// actual boundary is always confirmed by integer-exact binary search
// (PageForKey), never trusted directly, since floating point inversion can
// be off by a key or two.
func (l Line) Invert() Line {
	if l.Slope == 0 {
		// A degenerate (flat) model maps every key to the same position;
		// its inverse is undefined. Returning the zero line (every position
		// maps to offset 0) keeps callers
		// that only use Invert() to seed a binary-search bound safe: any
		// candidate it produces is immediately verified by PageForKey.
		return Line{Slope: 0, Intercept: 0}
	}
	return Line{
		Slope:     1 / l.Slope,
		Intercept: -l.Intercept / l.Slope,
	}
}

// PageForKey maps key to a page index in [0, pageCount), given that the
// segment spans keys starting at baseKey and was fit with line. The result
// is clamped to the valid page range.
func PageForKey(baseKey uint64, line Line, pageCount int, key uint64) int {
	if pageCount <= 1 {
		return 0
	}
	offset := float64(key) - float64(baseKey)
	pos := line.Evaluate(offset)
	page := int(math.Floor(pos))
	if page < 0 {
		return 0
	}
	if page >= pageCount {
		return pageCount - 1
	}
	return page
}

// Fit computes the least-squares line mapping each key's offset from the
// first key to its ordinal position among keys, i.e. the usual
// piecewise-linear-regression model-building step. keys must be sorted
// ascending and deduplicated.
func Fit(keys []uint64) Line {
	n := len(keys)
	if n == 0 {
		return Line{}
	}
	if n == 1 {
		return Line{Slope: 0, Intercept: 0}
	}

	base := keys[0]
	var sumX, sumY, sumXY, sumXX float64
	for i, k := range keys {
		x := float64(k - base)
		y := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		// All keys identical after base-subtraction (shouldn't happen for
		// deduplicated keys beyond the first), fall back to a flat line.
		return Line{Slope: 0, Intercept: sumY / fn}
	}

	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn
	return Line{Slope: slope, Intercept: intercept}
}

// FitPageModel fits a line mapping key offset directly to page index in
// [0, pageCount), rather than to ordinal rank among keys. It reuses Fit's
// ordinal-rank line and rescales it by pageCount/len(keys), since a page
// index is just an ordinal rank compressed into a smaller range.
func FitPageModel(keys []uint64, pageCount int) Line {
	l := Fit(keys)
	n := float64(len(keys))
	if n == 0 {
		return l
	}
	scale := float64(pageCount) / n
	return Line{Slope: l.Slope * scale, Intercept: l.Intercept * scale}
}
