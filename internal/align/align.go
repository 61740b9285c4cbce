// internal/align/align.go
package align

import (
	"fmt"
)

// CigarOpKind distinguishes the three alignment operations the corrector
// understands. MATCH consumes target and query, INS consumes query only,
// DEL consumes target only.
type CigarOpKind uint8

const (
	CigarMatch CigarOpKind = iota
	CigarIns
	CigarDel
)

func (k CigarOpKind) String() string {
	switch k {
	case CigarMatch:
		return "M"
	case CigarIns:
		return "I"
	case CigarDel:
		return "D"
	}
	return "?"
}

// Consumes reports which side of the alignment the op advances.
func (k CigarOpKind) Consumes() (target, query bool) {
	switch k {
	case CigarMatch:
		return true, true
	case CigarIns:
		return false, true
	default:
		return true, false
	}
}

// CigarOp is one run-length encoded alignment operation.
type CigarOp struct {
	Kind CigarOpKind
	Len  int
}

// ParseCigar parses a CIGAR string (e.g. minimap2's cg:Z tag). The extended
// forms '=' and 'X' fold into MATCH. Any other op is an error. The PAF
// reader logs and skips only the row that carries such a CIGAR; the other
// rows for the same target still form a message.
func ParseCigar(s string) ([]CigarOp, error) {
	var ops []CigarOp
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			continue
		}
		if n == 0 {
			return nil, fmt.Errorf("cigar %q: zero-length op %q", s, c)
		}
		var k CigarOpKind
		switch c {
		case 'M', '=', 'X':
			k = CigarMatch
		case 'I':
			k = CigarIns
		case 'D':
			k = CigarDel
		default:
			return nil, fmt.Errorf("cigar %q: unknown op %q", s, c)
		}
		ops = append(ops, CigarOp{Kind: k, Len: n})
		n = 0
	}
	if n != 0 {
		return nil, fmt.Errorf("cigar %q: trailing length %d", s, n)
	}
	return ops, nil
}

// Overlap is one query-vs-target alignment span in the coordinates of the
// stored (strand-normalized) sequences.
type Overlap struct {
	TStart, TEnd int
	QStart, QEnd int
	QLen, TLen   int
	Fwd          bool
}

// CorrectionAlignments bundles a target read with every query aligned
// against it. Parallel slices: Seqs[i], Quals[i], Overlaps[i] and Cigars[i]
// all describe the query named QNames[i].
type CorrectionAlignments struct {
	ReadName string
	ReadSeq  []byte
	ReadQual []byte

	QNames   []string
	Seqs     [][]byte
	Quals    [][]byte
	Overlaps []Overlap
	Cigars   [][]CigarOp
}

// CheckConsistentOverlaps verifies every ingestion invariant: coordinate
// sanity against the recorded lengths, and that each CIGAR consumes exactly
// tend-tstart of target and qend-qstart of query. A failure aborts the
// whole message.
func (a *CorrectionAlignments) CheckConsistentOverlaps() error {
	if len(a.Overlaps) != len(a.Cigars) || len(a.Overlaps) != len(a.Seqs) {
		return fmt.Errorf("read %s: %d overlaps, %d cigars, %d seqs", a.ReadName, len(a.Overlaps), len(a.Cigars), len(a.Seqs))
	}
	for i, o := range a.Overlaps {
		if o.TLen != len(a.ReadSeq) {
			return fmt.Errorf("read %s overlap %d: tlen %d != target length %d", a.ReadName, i, o.TLen, len(a.ReadSeq))
		}
		if o.QLen != len(a.Seqs[i]) {
			return fmt.Errorf("read %s overlap %d (%s): qlen %d != query length %d", a.ReadName, i, a.QNames[i], o.QLen, len(a.Seqs[i]))
		}
		if o.TStart < 0 || o.TStart >= o.TEnd || o.TEnd > o.TLen {
			return fmt.Errorf("read %s overlap %d: bad target span [%d,%d) len %d", a.ReadName, i, o.TStart, o.TEnd, o.TLen)
		}
		if o.QStart < 0 || o.QStart >= o.QEnd || o.QEnd > o.QLen {
			return fmt.Errorf("read %s overlap %d: bad query span [%d,%d) len %d", a.ReadName, i, o.QStart, o.QEnd, o.QLen)
		}
		var tAdv, qAdv int
		for _, op := range a.Cigars[i] {
			t, q := op.Kind.Consumes()
			if t {
				tAdv += op.Len
			}
			if q {
				qAdv += op.Len
			}
		}
		if tAdv != o.TEnd-o.TStart {
			return fmt.Errorf("read %s overlap %d: cigar consumes %d of target, span is %d", a.ReadName, i, tAdv, o.TEnd-o.TStart)
		}
		if qAdv != o.QEnd-o.QStart {
			return fmt.Errorf("read %s overlap %d: cigar consumes %d of query, span is %d", a.ReadName, i, qAdv, o.QEnd-o.QStart)
		}
	}
	return nil
}
