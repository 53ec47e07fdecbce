package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	_ "github.com/JonMunkholm/stockrecon/internal/core/profiles" // Register template profiles
	"github.com/JonMunkholm/stockrecon/internal/logging"
	"github.com/JonMunkholm/stockrecon/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	databaseURL string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "stockctl",
		Short:         "Stock report templates, previews and exports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Logs go to stderr so stdout stays machine readable.
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
		},
	}

	// .env is optional; explicit environment wins.
	_ = godotenv.Load()

	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"),
		"PostgreSQL connection string (default $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")

	cmd.AddCommand(
		newTemplateCmd(),
		newPreviewCmd(opts),
		newExportCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// connect opens a small pool for one command.
func (o *rootOptions) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if o.databaseURL == "" {
		return nil, errors.WithHint(errors.New("no database configured"),
			"Set DATABASE_URL or pass --database-url")
	}
	return postgres.Open(ctx, o.databaseURL, postgres.PoolOptions{MaxConns: 2})
}

// openOutput returns stdout for "" or "-", otherwise creates path.
func openOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
