// internal/feature/decode.go
package feature

import (
	"readcorr/internal/dna"
)

// DecodeWindow renders one window's consensus string. Supported columns
// take the inferred base when present; every other column keeps the target
// base. Gap symbols are stripped, so a trivial window (no inferred bases)
// decodes back to the target slice, with target bases outside ACGT rendered
// as 'N'. An empty result is valid and means no confident consensus for the
// window.
func DecodeWindow(wf *WindowFeatures) string {
	out := make([]byte, 0, wf.Length)
	si := 0
	for col := 0; col < wf.Length; col++ {
		var b byte
		if si < len(wf.Supported) && int(wf.Supported[si]) == col && si < len(wf.InferredBases) {
			b = wf.InferredBases[si]
			si++
		} else {
			if si < len(wf.Supported) && int(wf.Supported[si]) == col {
				si++
			}
			b = dna.Symbol(wf.Bases.At(col, 0))
			if b == '.' {
				// Target bases outside ACGT are encoded as NoCoverage.
				b = 'N'
			}
		}
		if b == '*' || b == '.' {
			continue
		}
		out = append(out, b)
	}
	return string(out)
}
