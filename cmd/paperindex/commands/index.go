package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"paperindex/internal/logging"
	"paperindex/internal/service"
)

var (
	indexReset     bool
	indexWorkers   int
	indexRecursive bool
	indexInclude   string
)

var indexCmd = &cobra.Command{
	Use:   "index <file-or-dir>...",
	Short: "Extract PDFs and add their artifacts to the collection",
	Long: `Extract every PDF named on the command line, or found in the given
directories, and store its text, captioned figures and tables in the vector
collection. A document that fails is reported and the rest carry on.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexReset, "reset", false, "drop the collection before indexing")
	indexCmd.Flags().IntVarP(&indexWorkers, "workers", "w", 0, "documents processed in parallel (default from config)")
	indexCmd.Flags().BoolVarP(&indexRecursive, "recursive", "r", false, "descend into subdirectories")
	indexCmd.Flags().StringVar(&indexInclude, "include", "", "file name pattern for directories (default from config)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	ex, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	svc, store, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	if indexReset {
		if err := svc.Reset(ctx); err != nil {
			return err
		}
		log.WithField("collection", svc.Collection()).Info("collection reset")
	}

	opts := service.BatchOptions{
		Workers:   cfg.Batch.Workers,
		Include:   cfg.Batch.Include,
		Recursive: cfg.Batch.Recursive || indexRecursive,
		Log:       logging.For("batch"),
	}
	if indexWorkers > 0 {
		opts.Workers = indexWorkers
	}
	if indexInclude != "" {
		opts.Include = indexInclude
	}
	batch, err := service.NewBatch(ex, svc, opts)
	if err != nil {
		return err
	}

	paths, err := collect(batch, args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no matching documents in %v", args)
	}

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowIts(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		progressbar.OptionSetRenderBlankState(true),
	)
	var failed []service.Outcome
	sum, err := batch.RunFiles(ctx, paths, func(o service.Outcome) {
		if o.Err != nil {
			failed = append(failed, o)
		}
		_ = bar.Add(1)
	})
	_ = bar.Finish()

	out := cmd.OutOrStdout()
	for _, o := range failed {
		fmt.Fprintf(out, "FAILED %s: %v\n", o.Path, o.Err)
	}
	fmt.Fprintf(out, "Indexed %d of %d documents into %s (%d failed)\n", sum.Indexed, sum.Total, svc.Collection(), sum.Failed)
	fmt.Fprintf(out, "Total run time: %.2f seconds\n", time.Since(start).Seconds())
	return err
}

// collect expands directories through the batch's include pattern and keeps
// explicit file arguments as given.
func collect(batch *service.Batch, args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		dir, err := service.IsDir(arg)
		if err != nil {
			return nil, err
		}
		if !dir {
			paths = append(paths, arg)
			continue
		}
		found, err := batch.Discover(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, found...)
	}
	return paths, nil
}
