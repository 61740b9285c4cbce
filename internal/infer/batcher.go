// internal/infer/batcher.go
package infer

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"readcorr/internal/asyncq"
	"readcorr/internal/dna"
	"readcorr/internal/feature"
	"readcorr/internal/tensor"
)

const (
	// SlotUnit is the MSA width that costs one extra batch slot; a window
	// claims floor(W/SlotUnit)+1 slots. Empirical cap tied to model memory.
	SlotUnit = 5120

	// FlushTimeout forces a partial batch out when input runs dry.
	FlushTimeout = 10 * time.Second
)

// Batcher packs variable-length windows into slot-budgeted batches, runs
// the backend, and fans decoded predictions out to the inferred queue.
// One Batcher runs per inference worker.
type Batcher struct {
	backend   Backend
	devMutex  *sync.Mutex // serializes backend calls on one device
	batchSize int

	in  *asyncq.Queue[*feature.WindowFeatures]
	out *asyncq.Queue[*feature.WindowFeatures]

	basesBatch   []*tensor.Matrix[int8]
	qualsBatch   []*tensor.Matrix[float32]
	lengths      []int32
	sizes        []int
	indicesBatch [][]int32
	wfs          []*feature.WindowFeatures

	remainingSlots int
}

func NewBatcher(backend Backend, devMutex *sync.Mutex, batchSize int,
	in, out *asyncq.Queue[*feature.WindowFeatures]) *Batcher {
	return &Batcher{
		backend:        backend,
		devMutex:       devMutex,
		batchSize:      batchSize,
		in:             in,
		out:            out,
		remainingSlots: batchSize,
	}
}

// RequiredSlots is the batch budget one window consumes.
func RequiredSlots(msaColumns int) int { return msaColumns/SlotUnit + 1 }

// Run consumes the features queue until it terminates, flushing on slot
// exhaustion, on the pop timeout, and once more on exit. A backend failure
// that survives the retry is returned and is fatal to the pipeline.
func (b *Batcher) Run(ctx context.Context) error {
	deadline := time.Now().Add(FlushTimeout)
	for {
		wf, status := b.in.PopUntil(deadline)
		switch status {
		case asyncq.StatusTerminate:
			if len(b.wfs) > 0 {
				if err := b.flush(ctx); err != nil {
					return err
				}
			}
			return nil

		case asyncq.StatusTimeout:
			if len(b.wfs) > 0 {
				if err := b.flush(ctx); err != nil {
					return err
				}
			}
			deadline = time.Now().Add(FlushTimeout)
			continue
		}

		if required := RequiredSlots(wf.Length); required > b.remainingSlots {
			if err := b.flush(ctx); err != nil {
				return err
			}
		}
		b.accept(wf)
		deadline = time.Now().Add(FlushTimeout)
	}
}

func (b *Batcher) accept(wf *feature.WindowFeatures) {
	b.wfs = append(b.wfs, wf)
	b.basesBatch = append(b.basesBatch, wf.Bases)
	b.qualsBatch = append(b.qualsBatch, wf.Quals)
	b.lengths = append(b.lengths, int32(wf.Length))
	b.sizes = append(b.sizes, len(wf.Supported))
	b.indicesBatch = append(b.indicesBatch, wf.Indices)
	b.remainingSlots -= RequiredSlots(wf.Length)
}

// flush collates the accumulated windows, invokes the backend (retrying
// once after a cache clear), splits the argmaxed predictions back per
// window, and forwards every window downstream.
func (b *Batcher) flush(ctx context.Context) error {
	batch := &Batch{
		Bases:   tensor.Collate(b.basesBatch, dna.Pad),
		Quals:   tensor.Collate(b.qualsBatch, float32(0)),
		Lengths: b.lengths,
		Indices: b.indicesBatch,
	}
	batch.Supported = make([][]int32, len(b.wfs))
	for i, wf := range b.wfs {
		batch.Supported[i] = wf.Supported
	}

	b.devMutex.Lock()
	res, err := b.backend.Predict(ctx, batch)
	if err != nil {
		log.WithError(err).Warn("backend error, clearing cache and retrying batch")
		b.backend.ClearCache()
		res, err = b.backend.Predict(ctx, batch)
	}
	b.devMutex.Unlock()
	if err != nil {
		return fmt.Errorf("batch of %d windows failed after retry: %w", len(b.wfs), err)
	}

	total := 0
	for _, s := range b.sizes {
		total += s
	}
	if len(res.Logits) != total {
		return fmt.Errorf("backend returned %d logit rows, want %d", len(res.Logits), total)
	}

	preds := tensor.Argmax(res.Logits)
	for w, split := range tensor.SplitSizes(preds, b.sizes) {
		wf := b.wfs[w]
		wf.InferredBases = make([]byte, len(split))
		for i, class := range split {
			wf.InferredBases[i] = dna.PredBases[class]
		}
		b.out.Push(wf)
	}

	b.basesBatch = b.basesBatch[:0]
	b.qualsBatch = b.qualsBatch[:0]
	b.lengths = b.lengths[:0]
	b.sizes = b.sizes[:0]
	b.indicesBatch = b.indicesBatch[:0]
	b.wfs = b.wfs[:0]
	b.remainingSlots = b.batchSize
	return nil
}
