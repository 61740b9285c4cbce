// internal/tensor/tensor.go

// Package tensor holds the small dense containers the corrector moves
// between stages: per-window matrices, their batched (collated) form, and
// the argmax/split helpers applied to backend logits.
package tensor

// Matrix is a dense row-major 2D block.
type Matrix[T any] struct {
	Rows, Cols int
	Data       []T
}

func NewMatrix[T any](rows, cols int, fill T) *Matrix[T] {
	m := &Matrix[T]{Rows: rows, Cols: cols, Data: make([]T, rows*cols)}
	for i := range m.Data {
		m.Data[i] = fill
	}
	return m
}

func (m *Matrix[T]) At(r, c int) T     { return m.Data[r*m.Cols+c] }
func (m *Matrix[T]) Set(r, c int, v T) { m.Data[r*m.Cols+c] = v }

// Row returns the backing slice for row r.
func (m *Matrix[T]) Row(r int) []T { return m.Data[r*m.Cols : (r+1)*m.Cols] }

// Cube is a batch of right-padded matrices sharing common dimensions.
type Cube[T any] struct {
	N, Rows, Cols int
	Data          []T
}

func (c *Cube[T]) At(n, r, col int) T { return c.Data[(n*c.Rows+r)*c.Cols+col] }

// Collate right-pads every matrix to the batch's max row and column counts.
// Pad cells hold pad; the unpadded prefix of each entry is copied verbatim.
func Collate[T any](ms []*Matrix[T], pad T) *Cube[T] {
	maxR, maxC := 0, 0
	for _, m := range ms {
		if m.Rows > maxR {
			maxR = m.Rows
		}
		if m.Cols > maxC {
			maxC = m.Cols
		}
	}
	out := &Cube[T]{N: len(ms), Rows: maxR, Cols: maxC, Data: make([]T, len(ms)*maxR*maxC)}
	for i := range out.Data {
		out.Data[i] = pad
	}
	for n, m := range ms {
		for r := 0; r < m.Rows; r++ {
			dst := out.Data[(n*maxR+r)*maxC : (n*maxR+r)*maxC+m.Cols]
			copy(dst, m.Row(r))
		}
	}
	return out
}

// Argmax reduces logits rows to class indices.
func Argmax(logits [][]float32) []int {
	out := make([]int, len(logits))
	for i, row := range logits {
		best := 0
		for c := 1; c < len(row); c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		out[i] = best
	}
	return out
}

// SplitSizes slices preds into consecutive chunks of the given sizes.
// The chunks alias preds.
func SplitSizes(preds []int, sizes []int) [][]int {
	out := make([][]int, len(sizes))
	off := 0
	for i, s := range sizes {
		out[i] = preds[off : off+s]
		off += s
	}
	return out
}
