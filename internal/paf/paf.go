// internal/paf/paf.go

// Package paf turns minimap2 PAF rows (with cg:Z CIGAR tags) into
// per-target CorrectionAlignments messages. Rows for one target must be
// consecutive, which "minimap2 ... | sort -k6,6" and all-vs-all runs
// already guarantee.
package paf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/shenwei356/xopen"

	"readcorr/internal/align"
)

// Reader streams grouped alignments from one PAF file.
type Reader struct {
	rc  *xopen.Reader
	sc  *bufio.Scanner
	cur *align.CorrectionAlignments
	err error
}

func Open(path string) (*Reader, error) {
	rc, err := xopen.Ropen(path)
	if errors.Is(err, xopen.ErrNoContent) {
		// A zero-byte file holds no overlaps.
		return &Reader{err: io.EOF}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), 64<<20)
	return &Reader{rc: rc, sc: sc}, nil
}

func (r *Reader) Close() error {
	if r.rc == nil {
		return nil
	}
	return r.rc.Close()
}

// Next returns the alignments for the next target read, or io.EOF.
// Malformed rows are logged and skipped; they never fail the stream.
func (r *Reader) Next() (*align.CorrectionAlignments, error) {
	if r.err != nil {
		return nil, r.err
	}
	for r.sc.Scan() {
		line := strings.TrimRight(r.sc.Text(), "\r\n")
		if line == "" {
			continue
		}
		row, err := parseRow(line)
		if err != nil {
			log.WithError(err).Warn("skipping malformed PAF row")
			continue
		}
		if r.cur != nil && r.cur.ReadName != row.tname {
			done := r.cur
			r.cur = newGroup(row)
			appendRow(r.cur, row)
			return done, nil
		}
		if r.cur == nil {
			r.cur = newGroup(row)
		}
		appendRow(r.cur, row)
	}
	if err := r.sc.Err(); err != nil {
		r.err = err
		return nil, err
	}
	r.err = io.EOF
	if r.cur != nil {
		done := r.cur
		r.cur = nil
		return done, nil
	}
	return nil, io.EOF
}

type pafRow struct {
	qname              string
	qlen, qstart, qend int
	fwd                bool
	tname              string
	tlen, tstart, tend int
	cigar              []align.CigarOp
}

func newGroup(row pafRow) *align.CorrectionAlignments {
	return &align.CorrectionAlignments{ReadName: row.tname}
}

func appendRow(a *align.CorrectionAlignments, row pafRow) {
	a.QNames = append(a.QNames, row.qname)
	a.Overlaps = append(a.Overlaps, align.Overlap{
		TStart: row.tstart, TEnd: row.tend,
		QStart: row.qstart, QEnd: row.qend,
		QLen: row.qlen, TLen: row.tlen,
		Fwd: row.fwd,
	})
	a.Cigars = append(a.Cigars, row.cigar)
}

func parseRow(line string) (pafRow, error) {
	f := strings.Split(line, "\t")
	if len(f) < 12 {
		return pafRow{}, fmt.Errorf("paf row has %d fields, want >= 12", len(f))
	}
	var row pafRow
	var err error
	row.qname = f[0]
	if row.qlen, err = strconv.Atoi(f[1]); err != nil {
		return pafRow{}, fmt.Errorf("qlen: %w", err)
	}
	if row.qstart, err = strconv.Atoi(f[2]); err != nil {
		return pafRow{}, fmt.Errorf("qstart: %w", err)
	}
	if row.qend, err = strconv.Atoi(f[3]); err != nil {
		return pafRow{}, fmt.Errorf("qend: %w", err)
	}
	switch f[4] {
	case "+":
		row.fwd = true
	case "-":
		row.fwd = false
	default:
		return pafRow{}, fmt.Errorf("strand %q", f[4])
	}
	row.tname = f[5]
	if row.tlen, err = strconv.Atoi(f[6]); err != nil {
		return pafRow{}, fmt.Errorf("tlen: %w", err)
	}
	if row.tstart, err = strconv.Atoi(f[7]); err != nil {
		return pafRow{}, fmt.Errorf("tstart: %w", err)
	}
	if row.tend, err = strconv.Atoi(f[8]); err != nil {
		return pafRow{}, fmt.Errorf("tend: %w", err)
	}
	for _, tag := range f[12:] {
		if cg, ok := strings.CutPrefix(tag, "cg:Z:"); ok {
			if row.cigar, err = align.ParseCigar(cg); err != nil {
				return pafRow{}, err
			}
			break
		}
	}
	if row.cigar == nil {
		return pafRow{}, fmt.Errorf("row for %s vs %s has no cg:Z tag", row.qname, row.tname)
	}
	return row, nil
}
