// internal/infer/consensus.go
package infer

import (
	"context"
	"runtime"

	"readcorr/internal/dna"
)

func init() {
	RegisterFactory("cpu", func(device string, cfg ModelConfig) (Backend, error) {
		return &consensusBackend{}, nil
	})
}

// consensusBackend is the pure-Go reference backend used on device=cpu.
// For each supported column it emits quality-weighted vote counts over the
// five output classes, so argmax picks the weighted-majority base. Real
// accelerator backends register over the "cuda" prefix and replace it.
type consensusBackend struct{}

func (c *consensusBackend) Predict(_ context.Context, b *Batch) (*Result, error) {
	total := 0
	for _, s := range b.Supported {
		total += len(s)
	}
	logits := make([][]float32, 0, total)

	for n, supported := range b.Supported {
		for _, col := range supported {
			row := make([]float32, len(dna.PredBases))
			// Tally aligned reads (matrix columns 1..), skipping padding
			// and uncovered cells.
			for rd := 1; rd < b.Bases.Cols; rd++ {
				f := dna.FoldStrand(b.Bases.At(n, int(col), rd))
				if f < 0 {
					continue
				}
				w := b.Quals.At(n, int(col), rd)
				if w <= 0 {
					w = 1.0 / float32(dna.MaxQScore-dna.MinQScore)
				}
				row[f] += w
			}
			// The target base breaks ties but never outvotes coverage.
			if t := dna.FoldStrand(b.Bases.At(n, int(col), 0)); t >= 0 {
				row[t] += 0.5 / float32(dna.MaxQScore-dna.MinQScore)
			}
			logits = append(logits, row)
		}
	}
	return &Result{Logits: logits}, nil
}

func (c *consensusBackend) ClearCache() {
	// No device allocator to flush; nudge the Go runtime instead so the
	// retry path behaves the same on every backend.
	runtime.GC()
}

func (c *consensusBackend) Close() error { return nil }

// AutoBatchSize reports a fixed host-memory-friendly batch for the CPU
// reference backend.
func (c *consensusBackend) AutoBatchSize(float64) int { return 32 }
