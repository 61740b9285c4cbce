// internal/cli/options.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"readcorr/internal/version"
)

// Options holds all CLI flags.
type Options struct {
	Fastq    string
	Paf      string
	ModelDir string

	Device       string
	BatchSize    int
	Threads      int
	InferThreads int

	Output   string
	OutFile  string
	Progress bool

	Verbosity string
}

// NewRootCommand builds the readcorr command. run receives the parsed
// options once cobra has validated the required flags.
func NewRootCommand(run func(cmd *cobra.Command, opts Options) error) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:     "readcorr",
		Short:   "correct long reads from overlap alignments",
		Long:    "readcorr windows each target read, builds MSA features from its overlaps,\nand corrects windows with a neural consensus backend.",
		Version: version.Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.BatchSize < 0 {
				return fmt.Errorf("--batch-size must be >= 0, got %d", opts.BatchSize)
			}
			return run(cmd, opts)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&opts.Fastq, "fastq", "", "input reads (FASTQ/FASTA, optionally gzipped) [*]")
	f.StringVar(&opts.Paf, "paf", "", "all-vs-all overlaps in PAF with cg:Z tags [*]")
	f.StringVar(&opts.ModelDir, "model-dir", "", "model directory with config.toml and weights [*]")
	f.StringVar(&opts.Device, "device", "cpu", "inference device: cpu | cuda:<ids>")
	f.IntVar(&opts.BatchSize, "batch-size", 32, "inference batch slots (0 = auto-size for ~80% device memory)")
	f.IntVar(&opts.Threads, "threads", 4, "input worker threads")
	f.IntVar(&opts.InferThreads, "infer-threads", 1, "inference threads per device (forced to 1 on cpu)")
	f.StringVar(&opts.Output, "output", "fasta", "output format: fasta | jsonl")
	f.StringVar(&opts.OutFile, "out", "-", "output path ('-' = stdout)")
	f.BoolVar(&opts.Progress, "progress", false, "show a progress bar on stderr")
	f.StringVar(&opts.Verbosity, "verbosity", "info", "log level: debug | info | warn | error")

	for _, name := range []string{"fastq", "paf", "model-dir"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
