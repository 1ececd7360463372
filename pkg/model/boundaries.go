package model

// ComputePageLowerBoundaries computes the smallest key assigned to each page
// of a segment, given the segment's base key, its fitted line, and its page
// count. Rather than trusting Line.Invert() to produce exact boundaries
// (floating point arithmetic can be off by a key or two near page edges), it
// uses the inverted line only to bracket a small search window, then finds
// the true boundary with an integer binary search over PageForKey.
func ComputePageLowerBoundaries(baseKey uint64, line Line, pageCount int) []uint64 {
	lowerBoundaries := make([]uint64, 0, pageCount)
	lowerBoundaries = append(lowerBoundaries, baseKey)
	if pageCount <= 1 {
		return lowerBoundaries
	}

	pageToKey := line.Invert()

	for pageIdx := 1; pageIdx < pageCount; pageIdx++ {
		candidateOffset := int64(pageToKey.Evaluate(float64(pageIdx)))
		candidateBoundary := addOffset(baseKey, candidateOffset)
		pageForCandidate := PageForKey(baseKey, line, pageCount, candidateBoundary)

		var lower, upper uint64
		if pageForCandidate >= pageIdx {
			prevOffset := int64(pageToKey.Evaluate(float64(pageIdx - 1)))
			lower = addOffset(baseKey, prevOffset)
			upper = candidateBoundary
		} else {
			nextOffset := int64(pageToKey.Evaluate(float64(pageIdx + 1)))
			lower = candidateBoundary
			upper = addOffset(baseKey, nextOffset)
		}
		if lower >= upper {
			// The bracket collapsed (can happen for a near-flat model);
			// widen it defensively rather than search an empty range.
			if lower > 0 {
				lower--
			}
			upper = lower + 2
		}

		bound := lowerBoundSearch(lower, upper, pageIdx, func(candidate uint64) int {
			return PageForKey(baseKey, line, pageCount, candidate)
		})
		lowerBoundaries = append(lowerBoundaries, bound)
	}

	return lowerBoundaries
}

// lowerBoundSearch finds the smallest key in [lo, hi) for which f(key) >= target,
// mirroring std::lower_bound over the (conceptually infinite) key domain.
func lowerBoundSearch(lo, hi uint64, target int, f func(uint64) int) uint64 {
	for lo < hi {
		mid := lo + (hi-lo)/2
		if f(mid) < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func addOffset(base uint64, offset int64) uint64 {
	if offset < 0 {
		d := uint64(-offset)
		if d > base {
			return 0
		}
		return base - d
	}
	return base + uint64(offset)
}
