// Package feature builds per-window MSA feature blocks from partitioned
// overlaps and decodes per-window predictions back into base strings.
//
// It never imports infer, assemble, or pipeline; keep it domain-only.
package feature
