// Package writers turns corrected records into serialized outputs.
//
// Design:
//   - Writers own all presentation knowledge (FASTA wrapping, JSONL).
//   - The pipeline stays orchestration-only and writes through a Sink.
//   - JSONL goes through pkg/api (v1) for a stable wire format.
package writers
