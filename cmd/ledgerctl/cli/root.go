package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/ledgerflow/internal/cashflow"
	"github.com/odyssey-erp/ledgerflow/internal/closing"
	"github.com/odyssey-erp/ledgerflow/internal/imports"
	"github.com/odyssey-erp/ledgerflow/internal/shared"
)

// Backend is everything the commands need from the running system.
type Backend interface {
	Migrate(ctx context.Context) error
	GenerateClosing(ctx context.Context, scope shared.Scope, in closing.GenerateInput) (closing.Closing, error)
	Project(ctx context.Context, scope shared.Scope, months int) (cashflow.Projection, error)
	RequeueImport(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (imports.Batch, error)
	ImportDetails(ctx context.Context, scope shared.Scope, batchID uuid.UUID) (imports.Details, error)
	QueueStats(ctx context.Context) (QueueStats, error)
	Close() error
}

// Opener builds a Backend on demand so that --help never dials anything.
type Opener func(ctx context.Context) (Backend, error)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(open Opener) *cobra.Command {
	var timeout time.Duration
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate ledgerflow: schema, closings, projections and import batches",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall command timeout")

	run := func(cmd *cobra.Command, fn func(ctx context.Context, b Backend) error) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		backend, err := open(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()
		return fn(ctx, backend)
	}

	rootCmd.AddCommand(
		newMigrateCommand(run),
		newClosingCommand(run),
		newCashflowCommand(run),
		newImportsCommand(run),
	)
	return rootCmd
}

type runner func(cmd *cobra.Command, fn func(ctx context.Context, b Backend) error) error

func newMigrateCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, b Backend) error {
				if err := b.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return err
			})
		},
	}
}

func newClosingCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "closing",
		Short: "Manage period closings",
	}
	var (
		periodType string
		reference  string
	)
	generate := &cobra.Command{
		Use:   "generate <client-id>",
		Short: "Generate (or regenerate) the closing of a period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := clientScope(args[0])
			if err != nil {
				return err
			}
			pt, err := closing.ParsePeriodType(periodType)
			if err != nil {
				return err
			}
			in := closing.GenerateInput{PeriodType: pt}
			if reference != "" {
				day, err := shared.ParseDay(reference)
				if err != nil {
					return err
				}
				in.ReferenceDate = &day
			}
			return run(cmd, func(ctx context.Context, b Backend) error {
				result, err := b.GenerateClosing(ctx, scope, in)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	generate.Flags().StringVar(&periodType, "period", string(closing.PeriodMonthly), "monthly or quarterly")
	generate.Flags().StringVar(&reference, "reference", "", "reference date (YYYY-MM-DD), defaults to today")
	cmd.AddCommand(generate)
	return cmd
}

func newCashflowCommand(run runner) *cobra.Command {
	var months int
	cmd := &cobra.Command{
		Use:   "cashflow <client-id>",
		Short: "Print the cash-flow projection of a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := clientScope(args[0])
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, b Backend) error {
				projection, err := b.Project(ctx, scope, months)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), projection)
			})
		},
	}
	cmd.Flags().IntVar(&months, "months", cashflow.DefaultHorizonMonths, "horizon in months (1-24)")
	return cmd
}

func newImportsCommand(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "Inspect and redeliver import batches",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "requeue <client-id> <batch-id>",
			Short: "Publish an existing batch to the import queue again",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				scope, batchID, err := batchArgs(args)
				if err != nil {
					return err
				}
				return run(cmd, func(ctx context.Context, b Backend) error {
					batch, err := b.RequeueImport(ctx, scope, batchID)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "requeued batch %s (status %s)\n", batch.ID, batch.Status)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "show <client-id> <batch-id>",
			Short: "Print a batch and its first rows",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				scope, batchID, err := batchArgs(args)
				if err != nil {
					return err
				}
				return run(cmd, func(ctx context.Context, b Backend) error {
					details, err := b.ImportDetails(ctx, scope, batchID)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), details)
				})
			},
		},
		&cobra.Command{
			Use:   "queue",
			Short: "Print import queue statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, func(ctx context.Context, b Backend) error {
					stats, err := b.QueueStats(ctx)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), stats)
				})
			},
		},
	)
	return cmd
}

func clientScope(raw string) (shared.Scope, error) {
	clientID, err := uuid.Parse(raw)
	if err != nil {
		return shared.Scope{}, fmt.Errorf("client id %q: %w", raw, err)
	}
	return shared.NewScope(uuid.Nil, clientID, uuid.Nil), nil
}

func batchArgs(args []string) (shared.Scope, uuid.UUID, error) {
	scope, err := clientScope(args[0])
	if err != nil {
		return shared.Scope{}, uuid.Nil, err
	}
	batchID, err := uuid.Parse(args[1])
	if err != nil {
		return shared.Scope{}, uuid.Nil, fmt.Errorf("batch id %q: %w", args[1], err)
	}
	return scope, batchID, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
