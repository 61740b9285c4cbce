// internal/assemble/assemble.go

// Package assemble tracks per-read window completion and stitches decoded
// windows back into corrected sequences.
package assemble

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Corrected is one output record. A read split by empty windows yields
// several records named "<read>:0", "<read>:1", ...; an unsplit read keeps
// its bare name.
type Corrected struct {
	Name string
	Seq  string
}

// Tracker holds the in-flight state for reads with windows awaiting
// inference. All map access happens under one mutex; the mutex is never
// held across a queue operation.
type Tracker struct {
	mu           sync.Mutex
	featuresByID map[string][]string
	pendingByID  map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{
		featuresByID: make(map[string][]string),
		pendingByID:  make(map[string]int),
	}
}

// Admit registers a read whose slot vector is pre-filled with trivially
// decoded windows and whose pending counter covers the windows sent to
// inference. Duplicate in-flight names are illegal: the second occurrence
// is dropped with a logged error and Admit reports false.
func (t *Tracker) Admit(name string, slots []string, pending int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.featuresByID[name]; exists {
		log.WithField("read", name).Error("features for read already exist, skipping duplicate")
		return false
	}
	t.featuresByID[name] = slots
	t.pendingByID[name] = pending
	return true
}

// Complete writes one decoded window into its slot and decrements the
// read's pending count. When the count hits zero the full slot vector is
// returned and the read's state is erased; otherwise the returned slice is
// nil. A completion for an unknown read is logged and ignored.
func (t *Tracker) Complete(name string, windowIdx int, consensus string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	slots, ok := t.featuresByID[name]
	if !ok {
		log.WithField("read", name).Error("decoded feature list not found")
		return nil
	}
	slots[windowIdx] = consensus
	t.pendingByID[name]--
	if t.pendingByID[name] != 0 {
		return nil
	}
	delete(t.featuresByID, name)
	delete(t.pendingByID, name)
	return slots
}

// InFlight is the number of reads currently awaiting windows.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pendingByID)
}

// Concatenate joins window strings into output records: maximal runs of
// non-empty strings merge in order, and each empty string closes the
// current run. Sub-sequence names get a ":<k>" suffix only when more than
// one record results.
func Concatenate(name string, windows []string) []Corrected {
	var seqs []string
	var cur string
	for _, s := range windows {
		if s == "" {
			if cur != "" {
				seqs = append(seqs, cur)
				cur = ""
			}
			continue
		}
		cur += s
	}
	if cur != "" {
		seqs = append(seqs, cur)
	}

	if len(seqs) == 1 {
		return []Corrected{{Name: name, Seq: seqs[0]}}
	}
	out := make([]Corrected, 0, len(seqs))
	for k, s := range seqs {
		out = append(out, Corrected{Name: fmt.Sprintf("%s:%d", name, k), Seq: s})
	}
	return out
}
