package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"paperindex/internal/config"
	"paperindex/internal/logging"
)

var (
	cfgFile string
	verbose bool

	cfg *config.AppConfig
	log *logrus.Entry
)

var rootCmd = &cobra.Command{
	Use:   "paperindex",
	Short: "Extract and index scientific PDFs for semantic search",
	Long: `paperindex extracts body text, figures with captions and reference lists
from scientific PDFs and stores each artifact in a vector collection, so that
free-text queries can find relevant passages, figures and source papers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
		var (
			path string
			err  error
		)
		if cfgFile != "" {
			path = cfgFile
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, path, err = config.LoadDefault()
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Init(level, cfg.Log.Format); err != nil {
			return err
		}
		log = logging.For("cli")
		log.WithField("config", path).Debug("configuration loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./config.yaml or ~/.config/paperindex/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
