// internal/window/window.go
package window

import (
	"readcorr/internal/align"
)

// OverlapWindow is the slice of one overlap that falls inside one window.
// Cigar bounds are half-open over the overlap's op list; the offsets cut
// into the first and last op for runs that straddle a window boundary.
type OverlapWindow struct {
	OverlapIdx int

	TStart, TEnd int // window-clamped target span
	QStart, QEnd int // query span consumed inside the window

	CigarStartIdx, CigarStartOffset int
	CigarEndIdx, CigarEndOffset     int
}

// Count returns the number of windows a target of length tlen splits into.
func Count(tlen, windowSize int) int {
	return (tlen + windowSize - 1) / windowSize
}

// Extract assigns each overlap's CIGAR-walked segments to the fixed-width
// windows they intersect. An overlap segment is kept only when it covers at
// least minFraction of its window (0 accepts any nonzero overlap).
//
// Insertions that land exactly on a window boundary stay with the window of
// the base they anchor to (the one before the boundary).
func Extract(a *align.CorrectionAlignments, windowSize int, minFraction float64) [][]OverlapWindow {
	tlen := len(a.ReadSeq)
	nw := Count(tlen, windowSize)
	windows := make([][]OverlapWindow, nw)

	for i, o := range a.Overlaps {
		cigar := a.Cigars[i]
		t, q := o.TStart, o.QStart
		win := t / windowSize

		cur := OverlapWindow{
			OverlapIdx: i,
			TStart:     t,
			QStart:     q,
		}

		flush := func(endIdx, endOffset int) {
			cur.TEnd = t
			cur.QEnd = q
			cur.CigarEndIdx = endIdx
			cur.CigarEndOffset = endOffset
			span := cur.TEnd - cur.TStart
			winLen := windowSize
			if (win+1)*windowSize > tlen {
				winLen = tlen - win*windowSize
			}
			if span > 0 && float64(span) >= minFraction*float64(winLen) {
				windows[win] = append(windows[win], cur)
			}
		}

		for ci := 0; ci < len(cigar); ci++ {
			op := cigar[ci]
			consumesT, consumesQ := op.Kind.Consumes()
			if !consumesT {
				// Insertion: anchored to the base before the cursor, so it
				// always belongs to the window that is currently open.
				q += op.Len
				continue
			}
			rem := op.Len
			off := 0
			for rem > 0 {
				boundary := (win + 1) * windowSize
				if t == boundary {
					flush(ci, off)
					win++
					cur = OverlapWindow{
						OverlapIdx:       i,
						TStart:           t,
						QStart:           q,
						CigarStartIdx:    ci,
						CigarStartOffset: off,
					}
					continue
				}
				step := rem
				if t+step > boundary {
					step = boundary - t
				}
				t += step
				if consumesQ {
					q += step
				}
				off += step
				rem -= step
			}
		}
		flush(len(cigar), 0)
	}
	return windows
}
