// internal/writers/jsonl.go
package writers

import (
	"bufio"
	"encoding/json"
	"io"

	"readcorr/internal/assemble"
	"readcorr/pkg/api"
)

func init() {
	Register("jsonl", func(out io.Writer) Writer {
		bw := bufio.NewWriterSize(out, 64<<10)
		return &jsonlWriter{bw: bw, enc: json.NewEncoder(bw)}
	})
}

type jsonlWriter struct {
	bw  *bufio.Writer
	enc *json.Encoder
}

func (w *jsonlWriter) Write(rec assemble.Corrected) error {
	return w.enc.Encode(api.CorrectedV1{
		Name:     rec.Name,
		Sequence: rec.Seq,
		Length:   len(rec.Seq),
	})
}

func (w *jsonlWriter) Flush() error { return w.bw.Flush() }
