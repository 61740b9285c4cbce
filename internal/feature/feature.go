// internal/feature/feature.go
package feature

import (
	"fmt"

	"readcorr/internal/align"
	"readcorr/internal/dna"
	"readcorr/internal/tensor"
	"readcorr/internal/window"
)

// Config carries the model-driven thresholds for marking MSA columns
// eligible for inference. Values come from the model's config.toml.
type Config struct {
	// MinCoverage is the minimum number of aligned (non-target) rows a
	// column needs before it can be corrected.
	MinCoverage int
	// MinDisagreement is the minimum number of aligned rows that must
	// differ from the target base.
	MinDisagreement int
}

// WindowFeatures is the unit of work that flows feature -> infer -> decode.
// Bases and Quals are [Length x NAlns] blocks: one MSA column per row of the
// matrix, one read per matrix column, read 0 being the target itself.
type WindowFeatures struct {
	ReadName  string
	WindowIdx int

	NAlns  int
	Length int // MSA column count, insertions included

	Bases   *tensor.Matrix[int8]
	Quals   *tensor.Matrix[float32]
	Indices []int32 // MSA column -> target position (insertion anchor)

	// Supported lists the MSA columns (sorted) the model is asked to
	// refine; InferredBases is filled by the inference stage with exactly
	// one base call per supported column.
	Supported     []int32
	InferredBases []byte
}

// Trivial reports whether the window bypasses inference: nothing aligned
// against it, or no column meets the correction criteria.
func (wf *WindowFeatures) Trivial() bool {
	return wf.NAlns <= 1 || len(wf.Supported) == 0
}

// Extract builds one WindowFeatures per window from the partitioned
// overlaps. It fails (dropping the whole message) when an overlap's CIGAR
// does not consume exactly its recorded target and query spans, or when a
// window slice's CIGAR walk does not land on its window-clipped interval.
func Extract(wins [][]window.OverlapWindow, a *align.CorrectionAlignments, windowSize int, cfg Config) ([]WindowFeatures, error) {
	if err := a.CheckConsistentOverlaps(); err != nil {
		return nil, err
	}
	tlen := len(a.ReadSeq)
	out := make([]WindowFeatures, len(wins))

	for w := range wins {
		wstart := w * windowSize
		wend := wstart + windowSize
		if wend > tlen {
			wend = tlen
		}
		wf, err := extractOne(wins[w], a, wstart, wend, cfg)
		if err != nil {
			return nil, fmt.Errorf("read %s window %d: %w", a.ReadName, w, err)
		}
		wf.ReadName = a.ReadName
		wf.WindowIdx = w
		out[w] = wf
	}
	return out, nil
}

func extractOne(entries []window.OverlapWindow, a *align.CorrectionAlignments, wstart, wend int, cfg Config) (WindowFeatures, error) {
	tspan := wend - wstart
	nAlns := 1 + len(entries)

	// Pass 1: per-anchor maximum insertion length decides how many extra
	// MSA columns each target position grows.
	maxIns := make([]int, tspan)
	for _, e := range entries {
		walkCigar(a, e, func(kind align.CigarOpKind, length, t, q int) {
			if kind == align.CigarIns {
				r := t - wstart - 1
				if r >= 0 && r < tspan && length > maxIns[r] {
					maxIns[r] = length
				}
			}
		})
	}

	length := tspan
	for _, n := range maxIns {
		length += n
	}

	// Column layout: the main column of target position r, followed by its
	// insertion columns, all sharing r as their index anchor.
	colOf := make([]int, tspan)
	indices := make([]int32, length)
	col := 0
	for r := 0; r < tspan; r++ {
		colOf[r] = col
		for k := 0; k <= maxIns[r]; k++ {
			indices[col] = int32(wstart + r)
			col++
		}
	}

	bases := tensor.NewMatrix(length, nAlns, dna.NoCoverage)
	quals := tensor.NewMatrix[float32](length, nAlns, 0)

	// Row 0: the target slice, with gaps at insertion columns.
	for r := 0; r < tspan; r++ {
		c := colOf[r]
		bases.Set(c, 0, dna.Code(a.ReadSeq[wstart+r], true))
		if wstart+r < len(a.ReadQual) {
			quals.Set(c, 0, dna.NormalizeQual(a.ReadQual[wstart+r]))
		}
		for k := 0; k < maxIns[r]; k++ {
			bases.Set(c+1+k, 0, dna.GapFwd)
		}
	}

	// Pass 2: fill one row per overlap slice.
	for j, e := range entries {
		row := j + 1
		o := a.Overlaps[e.OverlapIdx]
		qseq := a.Seqs[e.OverlapIdx]
		qqual := a.Quals[e.OverlapIdx]
		gap := dna.GapFwd
		if !o.Fwd {
			gap = dna.GapRev
		}

		// A row spans its covered columns even where it has no base: mark
		// the interior with strand gaps before the walk overwrites them.
		r0 := e.TStart - wstart
		rl := e.TEnd - 1 - wstart
		for c := colOf[r0]; c <= colOf[rl]; c++ {
			bases.Set(c, row, gap)
		}

		t, q := e.TStart, e.QStart
		walkCigar(a, e, func(kind align.CigarOpKind, length, wt, wq int) {
			switch kind {
			case align.CigarMatch:
				for k := 0; k < length; k++ {
					c := colOf[t-wstart]
					bases.Set(c, row, dna.Code(qseq[q], o.Fwd))
					if q < len(qqual) {
						quals.Set(c, row, dna.NormalizeQual(qqual[q]))
					}
					t++
					q++
				}
			case align.CigarDel:
				t += length
			case align.CigarIns:
				r := t - wstart - 1
				if r >= 0 {
					c := colOf[r]
					n := length
					if n > maxIns[r] {
						n = maxIns[r]
					}
					for k := 0; k < n; k++ {
						bases.Set(c+1+k, row, dna.Code(qseq[q+k], o.Fwd))
						if q+k < len(qqual) {
							quals.Set(c+1+k, row, dna.NormalizeQual(qqual[q+k]))
						}
					}
				}
				q += length
			}
		})
		if t != e.TEnd || q != e.QEnd {
			return WindowFeatures{}, fmt.Errorf("overlap %d cigar walk ended at (%d,%d), recorded (%d,%d)",
				e.OverlapIdx, t, q, e.TEnd, e.QEnd)
		}
	}

	wf := WindowFeatures{
		NAlns:   nAlns,
		Length:  length,
		Bases:   bases,
		Quals:   quals,
		Indices: indices,
	}
	wf.Supported = supportedColumns(bases, cfg)
	return wf, nil
}

// supportedColumns selects columns with at least cfg.MinCoverage aligned
// rows and at least cfg.MinDisagreement of them disagreeing with the target
// base.
func supportedColumns(bases *tensor.Matrix[int8], cfg Config) []int32 {
	var supported []int32
	for col := 0; col < bases.Rows; col++ {
		tgt := bases.At(col, 0)
		cov, disagree := 0, 0
		for row := 1; row < bases.Cols; row++ {
			f := dna.FoldStrand(bases.At(col, row))
			if f < 0 {
				continue
			}
			cov++
			if f != tgt {
				disagree++
			}
		}
		if cov >= cfg.MinCoverage && disagree >= cfg.MinDisagreement {
			supported = append(supported, int32(col))
		}
	}
	return supported
}

// walkCigar replays the op segments of one overlap-window slice, invoking
// visit with the op kind, its effective length, and the cursor positions
// before the op. Partial first/last runs are clipped by the slice offsets.
func walkCigar(a *align.CorrectionAlignments, e window.OverlapWindow, visit func(kind align.CigarOpKind, length, t, q int)) {
	cigar := a.Cigars[e.OverlapIdx]
	t, q := e.TStart, e.QStart
	for ci := e.CigarStartIdx; ci < len(cigar); ci++ {
		if ci > e.CigarEndIdx || (ci == e.CigarEndIdx && e.CigarEndOffset == 0) {
			break
		}
		op := cigar[ci]
		start := 0
		if ci == e.CigarStartIdx {
			start = e.CigarStartOffset
		}
		end := op.Len
		if ci == e.CigarEndIdx && e.CigarEndOffset < end {
			end = e.CigarEndOffset
		}
		seg := end - start
		if seg <= 0 {
			continue
		}
		visit(op.Kind, seg, t, q)
		consumesT, consumesQ := op.Kind.Consumes()
		if consumesT {
			t += seg
		}
		if consumesQ {
			q += seg
		}
	}
}
