// internal/infer/backend.go
package infer

import (
	"context"
	"fmt"
	"strings"

	"readcorr/internal/tensor"
)

// Batch is a collated set of windows handed to the backend in one call.
// Bases/Quals are padded cubes; Lengths holds each window's true MSA column
// count, Indices its column->target-position map, and Supported the columns
// the model must emit logits for (the logits row layout is the
// concatenation of the Supported lists in batch order).
type Batch struct {
	Bases     *tensor.Cube[int8]
	Quals     *tensor.Cube[float32]
	Lengths   []int32
	Indices   [][]int32
	Supported [][]int32
}

// Result carries the logits block of the backend's output tuple: one row
// per supported column across the batch, one column per output class.
type Result struct {
	Logits [][]float32
}

// Backend is the opaque inference functor. Predict must be called with the
// owning device mutex held; ClearCache releases device-side allocator state
// between a failed call and its retry.
type Backend interface {
	Predict(ctx context.Context, b *Batch) (*Result, error)
	ClearCache()
	Close() error
}

// BatchSizer is implemented by backends that can size their own batches
// from device memory. target is the fraction of memory to aim for.
type BatchSizer interface {
	AutoBatchSize(target float64) int
}

// Devices expands a device request into per-device entries. "cpu" maps to
// itself; "cuda:0,1" style strings split per id. An empty expansion for a
// requested device is fatal at startup.
func Devices(device string) ([]string, error) {
	if device == "cpu" {
		return []string{"cpu"}, nil
	}
	if rest, ok := strings.CutPrefix(device, "cuda:"); ok {
		var out []string
		for _, id := range strings.Split(rest, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			out = append(out, "cuda:"+id)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("device %q requested but no devices found", device)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported device %q", device)
}

// Factory opens a backend for one device from a loaded model directory.
type Factory func(device string, cfg ModelConfig) (Backend, error)

var factories = map[string]Factory{}

// RegisterFactory binds a device prefix ("cpu", "cuda") to a backend
// constructor. Last registration wins.
func RegisterFactory(prefix string, f Factory) { factories[prefix] = f }

// Open constructs the backend for a single expanded device string.
func Open(device string, cfg ModelConfig) (Backend, error) {
	prefix := device
	if i := strings.IndexByte(device, ':'); i >= 0 {
		prefix = device[:i]
	}
	f, ok := factories[prefix]
	if !ok {
		return nil, fmt.Errorf("no backend registered for device %q", device)
	}
	return f(device, cfg)
}
