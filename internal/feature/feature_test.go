// internal/feature/feature_test.go
package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readcorr/internal/align"
	"readcorr/internal/dna"
	"readcorr/internal/window"
)

var testCfg = Config{MinCoverage: 1, MinDisagreement: 1}

func quals(n int) []byte {
	q := make([]byte, n)
	for i := range q {
		q[i] = 'I'
	}
	return q
}

func buildAlignments(target string, queries []string, overlaps []align.Overlap, cigars [][]align.CigarOp) *align.CorrectionAlignments {
	a := &align.CorrectionAlignments{
		ReadName: "read",
		ReadSeq:  []byte(target),
		ReadQual: quals(len(target)),
		Overlaps: overlaps,
		Cigars:   cigars,
	}
	for _, q := range queries {
		a.QNames = append(a.QNames, "q")
		a.Seqs = append(a.Seqs, []byte(q))
		a.Quals = append(a.Quals, quals(len(q)))
	}
	return a
}

func extract(t *testing.T, a *align.CorrectionAlignments, ws int) []WindowFeatures {
	t.Helper()
	require.NoError(t, a.CheckConsistentOverlaps())
	wins := window.Extract(a, ws, 0)
	wfs, err := Extract(wins, a, ws, testCfg)
	require.NoError(t, err)
	return wfs
}

// Zero overlaps: every window is trivial and decodes to the target slice.
func TestExtractNoCoverage(t *testing.T) {
	a := buildAlignments("ACGTACGTAC", nil, nil, nil)
	wfs := extract(t, a, 5)
	require.Len(t, wfs, 2)
	for _, wf := range wfs {
		assert.Equal(t, 1, wf.NAlns)
		assert.True(t, wf.Trivial())
	}
	assert.Equal(t, "ACGTA", DecodeWindow(&wfs[0]))
	assert.Equal(t, "CGTAC", DecodeWindow(&wfs[1]))
}

// A perfect full-length overlap raises row count but produces no
// disagreement, so both windows stay trivial.
func TestExtractPerfectOverlapIsTrivial(t *testing.T) {
	a := buildAlignments("ACGTACGT",
		[]string{"ACGTACGT"},
		[]align.Overlap{{TStart: 0, TEnd: 8, QStart: 0, QEnd: 8, QLen: 8, TLen: 8, Fwd: true}},
		[][]align.CigarOp{{{Kind: align.CigarMatch, Len: 8}}},
	)
	wfs := extract(t, a, 4)
	require.Len(t, wfs, 2)
	for _, wf := range wfs {
		assert.Equal(t, 2, wf.NAlns)
		assert.Empty(t, wf.Supported)
		assert.True(t, wf.Trivial())
	}
}

// One disagreeing base marks exactly that column supported.
func TestExtractDisagreementSupported(t *testing.T) {
	a := buildAlignments("AAAACCCC",
		[]string{"AAGA"},
		[]align.Overlap{{TStart: 0, TEnd: 4, QStart: 0, QEnd: 4, QLen: 4, TLen: 8, Fwd: true}},
		[][]align.CigarOp{{{Kind: align.CigarMatch, Len: 4}}},
	)
	wfs := extract(t, a, 4)
	require.Len(t, wfs, 2)

	require.Len(t, wfs[0].Supported, 1)
	assert.Equal(t, int32(2), wfs[0].Supported[0])
	assert.False(t, wfs[0].Trivial())

	assert.True(t, wfs[1].Trivial(), "uncovered window must stay trivial")
	assert.Equal(t, 1, wfs[1].NAlns)
}

// Insertions add MSA columns: the target row carries gaps there and the
// indices keep pointing at the anchor position.
func TestExtractInsertionColumns(t *testing.T) {
	a := buildAlignments("ACGT",
		[]string{"ACTTGT"},
		[]align.Overlap{{TStart: 0, TEnd: 4, QStart: 0, QEnd: 6, QLen: 6, TLen: 4, Fwd: true}},
		[][]align.CigarOp{{
			{Kind: align.CigarMatch, Len: 2},
			{Kind: align.CigarIns, Len: 2},
			{Kind: align.CigarMatch, Len: 2},
		}},
	)
	wfs := extract(t, a, 4)
	require.Len(t, wfs, 1)
	wf := wfs[0]

	assert.Equal(t, 6, wf.Length)
	assert.Equal(t, []int32{0, 1, 1, 1, 2, 3}, wf.Indices)

	// Target row: A C * * G T
	want := []byte{'A', 'C', '*', '*', 'G', 'T'}
	for col, sym := range want {
		assert.Equal(t, sym, dna.Symbol(wf.Bases.At(col, 0)), "target col %d", col)
	}
	// Query row: A C T T G T
	for col, sym := range []byte("ACTTGT") {
		assert.Equal(t, sym, dna.Symbol(wf.Bases.At(col, 1)), "query col %d", col)
	}
}

// Reverse-strand rows are encoded with the lower-case classes but fold
// onto the same votes.
func TestExtractReverseStrandEncoding(t *testing.T) {
	a := buildAlignments("ACGT",
		[]string{"ACGT"}, // stored orientation, already reverse-complemented upstream
		[]align.Overlap{{TStart: 0, TEnd: 4, QStart: 0, QEnd: 4, QLen: 4, TLen: 4, Fwd: false}},
		[][]align.CigarOp{{{Kind: align.CigarMatch, Len: 4}}},
	)
	wfs := extract(t, a, 4)
	wf := wfs[0]
	for col := 0; col < 4; col++ {
		code := wf.Bases.At(col, 1)
		assert.GreaterOrEqual(t, code, int8(5), "reverse rows use classes 5..9")
		assert.Equal(t, wf.Bases.At(col, 0), dna.FoldStrand(code))
	}
	assert.Empty(t, wf.Supported)
}

// A row covering only part of the window leaves no-coverage cells outside
// its span.
func TestExtractPartialCoverage(t *testing.T) {
	a := buildAlignments("ACGTACGT",
		[]string{"GTAC"},
		[]align.Overlap{{TStart: 2, TEnd: 6, QStart: 0, QEnd: 4, QLen: 4, TLen: 8, Fwd: true}},
		[][]align.CigarOp{{{Kind: align.CigarMatch, Len: 4}}},
	)
	wfs := extract(t, a, 8)
	wf := wfs[0]
	assert.Equal(t, dna.NoCoverage, wf.Bases.At(0, 1))
	assert.Equal(t, dna.NoCoverage, wf.Bases.At(7, 1))
	for col := 2; col < 6; col++ {
		assert.NotEqual(t, dna.NoCoverage, wf.Bases.At(col, 1), "col %d", col)
	}
}

// Quality values land normalized in [0,1]; uncovered cells stay 0.
func TestExtractQuals(t *testing.T) {
	a := buildAlignments("ACGT",
		[]string{"ACGT"},
		[]align.Overlap{{TStart: 0, TEnd: 4, QStart: 0, QEnd: 4, QLen: 4, TLen: 4, Fwd: true}},
		[][]align.CigarOp{{{Kind: align.CigarMatch, Len: 4}}},
	)
	wfs := extract(t, a, 8)
	wf := wfs[0]
	want := dna.NormalizeQual('I')
	for col := 0; col < 4; col++ {
		assert.InDelta(t, want, wf.Quals.At(col, 0), 1e-6)
		assert.InDelta(t, want, wf.Quals.At(col, 1), 1e-6)
	}
}

// A cigar that does not land on the recorded query interval fails the
// whole extraction.
func TestExtractInconsistentCigarFails(t *testing.T) {
	a := buildAlignments("ACGT",
		[]string{"ACGTA"},
		[]align.Overlap{{TStart: 0, TEnd: 4, QStart: 0, QEnd: 5, QLen: 5, TLen: 4, Fwd: true}},
		[][]align.CigarOp{{{Kind: align.CigarMatch, Len: 4}}},
	)
	wins := window.Extract(a, 4, 0)
	_, err := Extract(wins, a, 4, testCfg)
	assert.Error(t, err)
}
