package main

import (
	"time"

	"github.com/JonMunkholm/stockrecon/internal/core"
	"github.com/JonMunkholm/stockrecon/internal/lock"
	"github.com/JonMunkholm/stockrecon/internal/postgres"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var owner, format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an owner's current stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := core.ParseExportFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := root.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := core.NewService(postgres.NewStore(pool), lock.NewLocalLocker(),
				core.NewApplyLimiter(1, time.Second), core.Options{})

			w, err := openOutput(cmd, output)
			if err != nil {
				return err
			}
			if err := svc.ExportStock(ctx, owner, f, w); err != nil {
				_ = w.Close()
				return err
			}
			return errors.Wrap(w.Close(), "close output")
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner ID (required)")
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
