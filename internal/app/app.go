// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"readcorr/internal/assemble"
	"readcorr/internal/cli"
	"readcorr/internal/fastq"
	"readcorr/internal/infer"
	"readcorr/internal/paf"
	"readcorr/internal/pipeline"
	"readcorr/internal/writers"
)

// RunContext wires the collaborators and drives the pipeline to
// completion: the overlap producer feeds Submit, the pipeline fans work
// through its stages, and corrected records stream to the selected writer.
func RunContext(ctx context.Context, opts cli.Options, stdout io.Writer) error {
	if err := configureLogging(opts.Verbosity); err != nil {
		return err
	}

	model, err := infer.LoadModelConfig(opts.ModelDir)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"window_size": model.WindowSize, "dir": opts.ModelDir}).Debug("model loaded")

	source, err := fastq.Open(opts.Fastq)
	if err != nil {
		return err
	}
	log.WithField("reads", source.NumEntries()).Info("indexed input reads")

	out := stdout
	if opts.OutFile != "" && opts.OutFile != "-" {
		f, err := os.Create(opts.OutFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	writer, err := writers.New(opts.Output, out)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Config{
		Threads:      opts.Threads,
		InferThreads: opts.InferThreads,
		BatchSize:    opts.BatchSize,
		Device:       opts.Device,
	}, model, source, func(rec assemble.Corrected) error {
		return writer.Write(rec)
	})
	if err != nil {
		return err
	}
	p.Start()

	var bar *pb.ProgressBar
	barDone := make(chan struct{})
	if opts.Progress {
		bar = pb.Full.Start(source.NumEntries())
		bar.SetWriter(os.Stderr)
		go func() {
			t := time.NewTicker(500 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-barDone:
					return
				case <-t.C:
					bar.SetCurrent(p.NumReads())
				}
			}
		}()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reader, err := paf.Open(opts.Paf)
		if err != nil {
			return err
		}
		defer reader.Close()
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg, err := reader.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", opts.Paf, err)
			}
			if err := p.Submit(msg); err != nil {
				return err
			}
		}
	})

	feedErr := g.Wait()
	pipeErr := p.Terminate()

	close(barDone)
	if bar != nil {
		bar.SetCurrent(p.NumReads())
		bar.Finish()
	}

	if err := writer.Flush(); err != nil && !writers.IsBrokenPipe(err) {
		return err
	}

	stats := p.SampleStats()
	log.WithFields(log.Fields{
		"corrected": int64(stats["num_reads_corrected"]),
		"early":     int64(stats["num_early_reads"]),
		"total":     int64(stats["total_reads_in_input"]),
	}).Info("correction finished")

	if pipeErr != nil {
		if writers.IsBrokenPipe(pipeErr) {
			return nil
		}
		return pipeErr
	}
	if feedErr != nil && !errors.Is(feedErr, pipeline.ErrTerminated) {
		return feedErr
	}
	return nil
}

// Run is the cobra entry point.
func Run(cmd *cobra.Command, opts cli.Options) error {
	return RunContext(cmd.Context(), opts, cmd.OutOrStdout())
}

func configureLogging(verbosity string) error {
	if verbosity == "" {
		verbosity = "info"
	}
	lvl, err := log.ParseLevel(verbosity)
	if err != nil {
		return fmt.Errorf("verbosity: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	return nil
}
