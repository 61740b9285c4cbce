// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"readcorr/internal/align"
	"readcorr/internal/assemble"
	"readcorr/internal/asyncq"
	"readcorr/internal/dna"
	"readcorr/internal/fastq"
	"readcorr/internal/feature"
	"readcorr/internal/infer"
	"readcorr/internal/window"
)

const (
	inputQueueCap    = 1000
	featuresQueueCap = 1000
	inferredQueueCap = 500
	decodeWorkers    = 4
)

// ErrTerminated is returned by Submit after the pipeline has shut down.
var ErrTerminated = errors.New("pipeline terminated")

// Config controls the correction pipeline.
type Config struct {
	Threads      int     // input workers (>=1)
	InferThreads int     // inference workers per device; forced to 1 on cpu
	BatchSize    int     // batch slot budget; 0 = auto-size from the backend
	Device       string  // "cpu" or a device-enumeration string
	MinFraction  float64 // minimum window coverage for an overlap slice
}

// Sink receives corrected records. Calls are serialized by the pipeline.
type Sink func(assemble.Corrected) error

type inferWorker struct {
	backend   infer.Backend
	mtxIdx    int
	batchSize int
	device    string
}

// Pipeline is the three-stage corrector: input workers window and
// featurize each message, inference workers batch the hard windows, and
// decode workers stitch predictions back into reads.
type Pipeline struct {
	cfg   Config
	model infer.ModelConfig

	source fastq.Source
	sink   Sink
	sinkMu sync.Mutex

	in        *asyncq.Queue[*align.CorrectionAlignments]
	featuresQ *asyncq.Queue[*feature.WindowFeatures]
	inferredQ *asyncq.Queue[*feature.WindowFeatures]

	tracker *assemble.Tracker

	gpuMutexes []sync.Mutex
	workers    []inferWorker

	activeFeatureThreads atomic.Int32
	activeInferThreads   atomic.Int32
	numReads             atomic.Int64
	numEarlyReads        atomic.Int64
	totalReadsInInput    atomic.Int64

	inputWG  sync.WaitGroup
	inferWG  sync.WaitGroup
	decodeWG sync.WaitGroup

	fatalOnce sync.Once
	fatal     atomic.Value // error
}

// New validates the configuration, loads one backend per inference worker,
// and prepares (but does not start) the pipeline. Model load problems and
// empty device expansions fail here.
func New(cfg Config, model infer.ModelConfig, source fastq.Source, sink Sink) (*Pipeline, error) {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.InferThreads < 1 {
		cfg.InferThreads = 1
	}

	devices, err := infer.Devices(cfg.Device)
	if err != nil {
		return nil, err
	}
	if cfg.Device == "cpu" {
		cfg.InferThreads = 1
	}

	p := &Pipeline{
		cfg:        cfg,
		model:      model,
		source:     source,
		sink:       sink,
		in:         asyncq.New[*align.CorrectionAlignments](inputQueueCap),
		featuresQ:  asyncq.New[*feature.WindowFeatures](featuresQueueCap),
		inferredQ:  asyncq.New[*feature.WindowFeatures](inferredQueueCap),
		tracker:    assemble.NewTracker(),
		gpuMutexes: make([]sync.Mutex, len(devices)),
	}

	for d, dev := range devices {
		for i := 0; i < cfg.InferThreads; i++ {
			backend, err := infer.Open(dev, model)
			if err != nil {
				return nil, fmt.Errorf("load model on %s: %w", dev, err)
			}
			batchSize := cfg.BatchSize
			if batchSize == 0 {
				sizer, ok := backend.(infer.BatchSizer)
				if !ok {
					return nil, fmt.Errorf("backend for %s cannot auto-size batches", dev)
				}
				batchSize = sizer.AutoBatchSize(0.8)
				if batchSize == 0 {
					return nil, fmt.Errorf("insufficient memory to run inference on %s", dev)
				}
			}
			log.WithFields(log.Fields{"device": dev, "batch_size": batchSize}).Debug("using batch size")
			p.workers = append(p.workers, inferWorker{backend: backend, mtxIdx: d, batchSize: batchSize, device: dev})
		}
	}
	return p, nil
}

// Start spawns all three worker pools.
func (p *Pipeline) Start() {
	p.totalReadsInInput.Store(int64(p.source.NumEntries()))

	p.activeFeatureThreads.Store(int32(p.cfg.Threads))
	p.inputWG.Add(p.cfg.Threads)
	for i := 0; i < p.cfg.Threads; i++ {
		go p.inputWorker()
	}

	p.activeInferThreads.Store(int32(len(p.workers)))
	p.inferWG.Add(len(p.workers))
	for _, w := range p.workers {
		go p.inferWorker(w)
	}

	p.decodeWG.Add(decodeWorkers)
	for i := 0; i < decodeWorkers; i++ {
		go p.decodeWorker()
	}
}

// Submit enqueues one resolved message for correction.
func (p *Pipeline) Submit(msg *align.CorrectionAlignments) error {
	if p.in.Push(msg) == asyncq.StatusTerminate {
		return ErrTerminated
	}
	return nil
}

// Terminate closes the input and joins the pools in stage order. Queued
// work drains first: each stage's last worker terminates the next queue.
// The first fatal error, if any, is returned.
func (p *Pipeline) Terminate() error {
	p.in.Terminate()
	p.inputWG.Wait()
	p.inferWG.Wait()
	p.decodeWG.Wait()
	return p.Err()
}

// Err reports the pipeline's fatal error, if one occurred.
func (p *Pipeline) Err() error {
	if err, ok := p.fatal.Load().(error); ok {
		return err
	}
	return nil
}

func (p *Pipeline) setFatal(err error) {
	p.fatalOnce.Do(func() {
		p.fatal.Store(err)
		log.WithError(err).Error("pipeline fatal error, shutting down")
		p.in.Terminate()
		p.featuresQ.Terminate()
		p.inferredQ.Terminate()
	})
}

// SampleStats exposes the counters and queue depths the progress tracker
// reads.
func (p *Pipeline) SampleStats() map[string]float64 {
	return map[string]float64{
		"num_reads_corrected":          float64(p.numReads.Load()),
		"num_early_reads":              float64(p.numEarlyReads.Load()),
		"total_reads_in_input":         float64(p.totalReadsInInput.Load()),
		"input_queue_size":             float64(p.in.Len()),
		"features_queue_size":          float64(p.featuresQ.Len()),
		"inferred_features_queue_size": float64(p.inferredQ.Len()),
	}
}

// NumReads is the number of messages fully ingested so far.
func (p *Pipeline) NumReads() int64 { return p.numReads.Load() }

func (p *Pipeline) inputWorker() {
	defer p.inputWG.Done()
	for {
		msg, status := p.in.Pop()
		if status == asyncq.StatusTerminate {
			break
		}
		p.process(msg)
	}
	if p.activeFeatureThreads.Add(-1) == 0 {
		p.featuresQ.Terminate()
	}
}

// process runs one message through windowing and feature extraction, routes
// trivial windows straight to reassembly, and queues the rest for
// inference. Every per-message failure logs and drops the message.
func (p *Pipeline) process(msg *align.CorrectionAlignments) {
	if !p.populate(msg) {
		messagesDropped.Inc()
		return
	}

	wins := window.Extract(msg, p.model.WindowSize, p.cfg.MinFraction)
	wfs, err := feature.Extract(wins, msg, p.model.WindowSize, feature.Config{
		MinCoverage:     p.model.MinCoverage,
		MinDisagreement: p.model.MinDisagreement,
	})
	if err != nil {
		log.WithField("read", msg.ReadName).WithError(err).Error("feature extraction failed, dropping message")
		messagesDropped.Inc()
		return
	}

	correctedSeqs := make([]string, len(wfs))
	var toInfer []*feature.WindowFeatures
	for w := range wfs {
		if wfs[w].Trivial() {
			correctedSeqs[w] = feature.DecodeWindow(&wfs[w])
		} else {
			toInfer = append(toInfer, &wfs[w])
		}
	}

	if len(toInfer) == 0 {
		p.numEarlyReads.Add(1)
		earlyReads.Inc()
		p.emit(msg.ReadName, correctedSeqs)
	} else {
		if !p.tracker.Admit(msg.ReadName, correctedSeqs, len(toInfer)) {
			messagesDropped.Inc()
			return
		}
		for _, wf := range toInfer {
			p.featuresQ.Push(wf)
		}
	}

	n := p.numReads.Add(1)
	readsCorrected.Inc()
	if n%10000 == 0 {
		log.WithFields(log.Fields{
			"corrected": n,
			"early":     p.numEarlyReads.Load(),
		}).Debug("correction progress")
	}
}

// populate fetches target and query sequences, normalizes reverse-strand
// overlaps onto their stored orientation, and checks every ingestion
// invariant. It reports false (drop the message) on any inconsistency.
func (p *Pipeline) populate(msg *align.CorrectionAlignments) bool {
	tseq, tqual, err := p.source.Fetch(msg.ReadName)
	if err != nil {
		log.WithField("read", msg.ReadName).WithError(err).Error("target not found, dropping message")
		return false
	}
	msg.ReadSeq = tseq
	msg.ReadQual = tqual

	msg.Seqs = make([][]byte, len(msg.QNames))
	msg.Quals = make([][]byte, len(msg.QNames))
	for i, qname := range msg.QNames {
		qseq, qqual, err := p.source.Fetch(qname)
		if err != nil {
			log.WithField("read", qname).WithError(err).Error("query not found, dropping message")
			return false
		}
		o := &msg.Overlaps[i]
		if o.QLen != len(qseq) {
			log.WithFields(log.Fields{"read": qname, "qlen": o.QLen, "actual": len(qseq)}).
				Error("qlen mismatch, dropping message")
			return false
		}
		if o.TLen != len(msg.ReadSeq) {
			log.WithFields(log.Fields{"read": msg.ReadName, "tlen": o.TLen, "actual": len(msg.ReadSeq)}).
				Error("tlen mismatch, dropping message")
			return false
		}
		if o.Fwd {
			msg.Seqs[i] = qseq
			msg.Quals[i] = qqual
		} else {
			// The CIGAR walks the reverse complement, so store the query in
			// that orientation and flip its coordinates to match.
			msg.Seqs[i] = dna.RevComp(qseq)
			msg.Quals[i] = dna.Reverse(qqual)
			o.QStart, o.QEnd = o.QLen-o.QEnd, o.QLen-o.QStart
		}
	}

	if err := msg.CheckConsistentOverlaps(); err != nil {
		log.WithError(err).Error("inconsistent overlaps, dropping message")
		return false
	}
	return true
}

func (p *Pipeline) inferWorker(w inferWorker) {
	defer p.inferWG.Done()
	log.WithField("device", w.device).Debug("starting inference worker")

	b := infer.NewBatcher(w.backend, &p.gpuMutexes[w.mtxIdx], w.batchSize, p.featuresQ, p.inferredQ)
	if err := b.Run(context.Background()); err != nil {
		p.setFatal(err)
	}
	if err := w.backend.Close(); err != nil {
		log.WithError(err).Warn("backend close failed")
	}

	if p.activeInferThreads.Add(-1) == 0 {
		p.inferredQ.Terminate()
	}
}

func (p *Pipeline) decodeWorker() {
	defer p.decodeWG.Done()
	for {
		wf, status := p.inferredQ.Pop()
		if status == asyncq.StatusTerminate {
			break
		}
		windowsDecoded.Inc()
		consensus := feature.DecodeWindow(wf)
		slots := p.tracker.Complete(wf.ReadName, wf.WindowIdx, consensus)
		if slots != nil {
			p.emit(wf.ReadName, slots)
		}
	}
}

func (p *Pipeline) emit(name string, windows []string) {
	records := assemble.Concatenate(name, windows)
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()
	for _, rec := range records {
		if err := p.sink(rec); err != nil {
			p.setFatal(fmt.Errorf("write %s: %w", rec.Name, err))
			return
		}
	}
}
