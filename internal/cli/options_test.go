// internal/cli/options_test.go
package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

func parse(t *testing.T, args ...string) (Options, error) {
	t.Helper()
	var got Options
	cmd := NewRootCommand(func(_ *cobra.Command, opts Options) error {
		got = opts
		return nil
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return got, err
}

func TestParseDefaults(t *testing.T) {
	opts, err := parse(t, "--fastq", "r.fq", "--paf", "o.paf", "--model-dir", "m")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if opts.Device != "cpu" || opts.Threads != 4 || opts.InferThreads != 1 {
		t.Errorf("unexpected defaults: %+v", opts)
	}
	if opts.Output != "fasta" || opts.OutFile != "-" || opts.BatchSize != 32 {
		t.Errorf("unexpected defaults: %+v", opts)
	}
}

func TestParseRequiredFlags(t *testing.T) {
	if _, err := parse(t, "--fastq", "r.fq"); err == nil {
		t.Fatal("missing required flags must fail")
	}
}

func TestParseRejectsNegativeBatch(t *testing.T) {
	_, err := parse(t,
		"--fastq", "r.fq", "--paf", "o.paf", "--model-dir", "m",
		"--batch-size", "-1")
	if err == nil {
		t.Fatal("negative batch size must fail")
	}
}

func TestParseOverrides(t *testing.T) {
	opts, err := parse(t,
		"--fastq", "r.fq", "--paf", "o.paf", "--model-dir", "m",
		"--device", "cuda:0,1", "--threads", "8", "--infer-threads", "2",
		"--output", "jsonl", "--progress")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if opts.Device != "cuda:0,1" || opts.Threads != 8 || opts.InferThreads != 2 {
		t.Errorf("overrides lost: %+v", opts)
	}
	if opts.Output != "jsonl" || !opts.Progress {
		t.Errorf("overrides lost: %+v", opts)
	}
}
