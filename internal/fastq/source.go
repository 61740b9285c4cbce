// internal/fastq/source.go

// Package fastq adapts sequence files to the corrector's lookup interface.
package fastq

import (
	"fmt"
	"io"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// Source resolves read names to their sequence and quality string.
type Source interface {
	Fetch(name string) (seq, qual []byte, err error)
	NumEntries() int
}

type record struct {
	seq  []byte
	qual []byte
}

// IndexedSource keeps all records of a FASTQ/FASTA file in memory, keyed by
// read name. Plain and gzipped files both work.
type IndexedSource struct {
	records map[string]record
}

// Open reads every record of path up front. Duplicate names keep the first
// occurrence.
func Open(path string) (*IndexedSource, error) {
	reader, err := fastx.NewReader(seq.DNAredundant, path, fastx.DefaultIDRegexp)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer reader.Close()

	src := &IndexedSource{records: make(map[string]record)}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		name := string(rec.ID)
		if _, dup := src.records[name]; dup {
			continue
		}
		qual := rec.Seq.Qual
		if !reader.IsFastq {
			qual = nil
		}
		src.records[name] = record{
			seq:  append([]byte(nil), rec.Seq.Seq...),
			qual: append([]byte(nil), qual...),
		}
	}
	return src, nil
}

func (s *IndexedSource) Fetch(name string) ([]byte, []byte, error) {
	r, ok := s.records[name]
	if !ok {
		return nil, nil, fmt.Errorf("read %s not found in input", name)
	}
	return r.seq, r.qual, nil
}

func (s *IndexedSource) NumEntries() int { return len(s.records) }
