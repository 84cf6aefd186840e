// Package cli is the salonctl operator command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/logging"
	"salonbook/internal/schedule"
	"salonbook/internal/storage"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	version    string
}

func NewRoot(version string) *cobra.Command {
	opts := &options{version: version}
	cmd := &cobra.Command{
		Use:           "salonctl",
		Short:         "Salon booking operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfig, "path to config.yaml")

	cmd.AddCommand(
		newVersionCmd(opts),
		newSlotsCmd(opts),
		newSeedCmd(opts),
		newExportCmd(opts),
		newBackupCmd(opts),
		newFailedSyncsCmd(opts),
		newTokenCmd(opts),
		newJournalCmd(opts),
	)
	return cmd
}

// env is the configuration and store a command runs against.
type env struct {
	cfg    *config.Config
	logger *zerolog.Logger
	store  domain.Repository
	sqlite *database.DB
	closer io.Closer
}

func (o *options) open(ctx context.Context) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger = logging.Component(logger, "salonctl")

	store, sqliteDB, err := storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("open store: %w", err)
	}

	return &env{cfg: cfg, logger: logger, store: store, sqlite: sqliteDB, closer: closer}, nil
}

func (e *env) provider() *schedule.Provider {
	return schedule.NewProvider(e.store, e.cfg.Booking.Location(), e.logger)
}

func (e *env) Close() {
	_ = e.store.Close()
	if e.closer != nil {
		_ = e.closer.Close()
	}
}

func newVersionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "salonctl %s\n", opts.version)
		},
	}
}
