// Command assayspec converts layered assay protocol configuration into
// flat, validated assay specification artifacts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"assayspec/internal/pipeline"
)

var (
	// Global flags
	verbose bool
	srcDir  string
	destDir string
	workers int
	refresh bool

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "assayspec",
	Short: "assayspec - assay specification pipeline",
	Long: `assayspec resolves laboratory assay protocol configuration
(templates, attribute bundles, protocols) into a flat list of fully
resolved assay specification records, enriched with Gene-Ontology and
ChEBI terms per biological target.

Outputs two gzip-compressed JSON artifacts in the destination
directory: targets.json.gz (the reusable target-term cache) and
assays.json.gz (the resolved specification records).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Resolve all protocols and write the artifacts",
	Long: `Loads the protocols/, templates/ and attributes/ directories
under --src, enriches every referenced target (or loads the existing
target-term cache from --dest), merges the four-level hierarchy and
writes assays.json.gz to --dest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pl, err := buildPipeline()
		if err != nil {
			return err
		}
		return pl.ProcessAll(signalContext(), srcDir, destDir)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reprocess whenever a specification file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		pl, err := buildPipeline()
		if err != nil {
			return err
		}
		err = pl.Watch(signalContext(), srcDir, destDir)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func buildPipeline() (*pipeline.Pipeline, error) {
	cfg, err := pipeline.LoadConfig()
	if err != nil {
		return nil, err
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if refresh {
		cfg.RefreshTerms = true
	}
	return pipeline.New(cfg, logger), nil
}

func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
	return ctx
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&srcDir, "src", ".", "source directory holding protocols/, templates/ and attributes/")
	rootCmd.PersistentFlags().StringVar(&destDir, "dest", ".", "destination directory for output artifacts")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "enrichment worker count (overrides ASSAYSPEC_WORKERS)")
	processCmd.Flags().BoolVar(&refresh, "refresh-terms", false, "ignore the existing target-term cache and re-enrich")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
