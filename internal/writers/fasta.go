// internal/writers/fasta.go
package writers

import (
	"bufio"
	"io"

	"readcorr/internal/assemble"
)

const fastaWrap = 60

func init() {
	Register("fasta", func(out io.Writer) Writer {
		return &fastaWriter{bw: bufio.NewWriterSize(out, 64<<10)}
	})
}

type fastaWriter struct {
	bw *bufio.Writer
}

func (w *fastaWriter) Write(rec assemble.Corrected) error {
	if rec.Seq == "" {
		return nil
	}
	if _, err := w.bw.WriteString(">" + rec.Name + "\n"); err != nil {
		return err
	}
	for i := 0; i < len(rec.Seq); i += fastaWrap {
		end := i + fastaWrap
		if end > len(rec.Seq) {
			end = len(rec.Seq)
		}
		if _, err := w.bw.WriteString(rec.Seq[i:end]); err != nil {
			return err
		}
		if err := w.bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

func (w *fastaWriter) Flush() error { return w.bw.Flush() }
