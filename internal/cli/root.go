// Package cli implements the statement-ingest command line.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-ingest/internal/config"
	"github.com/insightdelivered/statement-ingest/internal/ingest"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/pipeline"
	"github.com/insightdelivered/statement-ingest/internal/storage"
)

var (
	cfgFile   string
	bankName  string
	passwords []string

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "statement-ingest",
	Short: "Convert bank and card statement PDFs into transactions",
	Long: `statement-ingest identifies the issuing institution of a statement PDF,
decrypts it when needed, and extracts the statement date, previous and closing
balances and every transaction.

Configuration is read from --config, $STATEMENTS_CONFIG or
~/.config/statement-ingest/config.toml, then overridden by STATEMENTS_*
environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		logger = cfg.Logger(cmd.ErrOrStderr())
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&bankName, "bank", "", "Institution name (identified from the document if omitted)")
	rootCmd.PersistentFlags().StringArrayVar(&passwords, "password", nil, "Password for encrypted statements (repeatable)")
}

// Execute runs the command line.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

// newPipeline builds the pipeline from the loaded configuration.
func newPipeline() (*pipeline.Pipeline, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}
	if bankName != "" {
		if _, ok := registry.Lookup(bankName); !ok {
			return nil, fmt.Errorf("%w: no institution named %q", models.ErrUnrecognizedInstitution, bankName)
		}
	}
	return pipeline.New(registry,
		pipeline.WithLogger(logger),
		pipeline.WithTimeout(cfg.Pipeline.Timeout),
		pipeline.WithWorkers(cfg.Pipeline.Workers),
	), nil
}

// archive returns the archive sink and its store, or nils when archiving is off.
func archive() (*ingest.ArchiveSink, storage.Storage, error) {
	if cfg.Archive.Dir == "" {
		return nil, nil, nil
	}
	store, err := storage.NewLocalStorage(cfg.Archive.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("archive: %w", err)
	}
	return &ingest.ArchiveSink{Store: store}, store, nil
}

func credentials() []models.Credential {
	if len(passwords) == 0 {
		return nil
	}
	return models.NewCredentials(passwords...)
}
