package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ignatzorin/escrow-backend/internal/app"
	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/db"
	"github.com/ignatzorin/escrow-backend/internal/logger"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type cli struct {
	asJSON bool
	limit  int
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "escrowctl",
		Short:         "Обслуживание эскроу: миграции, проход по срокам, балансы",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Log.SetOutput(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "вывод в JSON")

	root.AddCommand(c.migrateCmd(), c.sweepCmd(), c.balanceCmd(), c.transactionsCmd())
	return root
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Применить миграции",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			conn, err := db.OpenAndMigrate(cmd.Context(), cfg.DatabaseDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "миграции применены (%s)\n", cfg.DatabaseDriver)
			return nil
		},
	}
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Один проход по просроченным заказам и отчётам",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				report, err := a.Sweeper.SweepOnce(ctx)
				if err != nil {
					return err
				}
				if c.asJSON {
					return printJSON(cmd.OutOrStdout(), report)
				}
				if !report.LockHeld {
					fmt.Fprintln(cmd.OutOrStdout(), "проход уже выполняется другим экземпляром")
					return nil
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Rule", "Examined", "Processed", "Failed"})
				for _, r := range report.Rules {
					tw.AppendRow(table.Row{r.Rule, r.Examined, r.Processed, r.Failed})
				}
				tw.AppendFooter(table.Row{"total", "", report.Processed(), report.Failed()})
				tw.Render()
				return nil
			})
		},
	}
}

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Депозит и заработок пользователя",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				account, err := a.Ledger.GetAccount(ctx, userID)
				if err != nil {
					return err
				}
				if c.asJSON {
					return printJSON(cmd.OutOrStdout(), account)
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"User", "Deposit", "Earnings"})
				tw.AppendRow(table.Row{account.UserID, account.DepositBalance, account.EarningsBalance})
				tw.Render()
				return nil
			})
		},
	}
}

func (c *cli) transactionsCmd() *cobra.Command {
	var subject bool
	cmd := &cobra.Command{
		Use:   "transactions <user-id|subject-id>",
		Short: "Проводки пользователя или, с --subject, заказа либо отчёта",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var txs []models.LedgerTransaction
				if subject {
					txs, err = a.Ledger.SubjectTransactions(ctx, id)
				} else {
					txs, err = a.Ledger.ListTransactions(ctx, id, c.limit, 0)
				}
				if err != nil {
					return err
				}
				if c.asJSON {
					return printJSON(cmd.OutOrStdout(), txs)
				}
				tw := newTable(cmd.OutOrStdout())
				tw.AppendHeader(table.Row{"Created", "User", "Type", "Balance", "Amount", "Reference"})
				for _, t := range txs {
					tw.AppendRow(table.Row{t.CreatedAt.Format("2006-01-02 15:04:05"), t.UserID, t.Type, t.BalanceType, t.Amount, t.ReferenceID})
				}
				if subject {
					tw.AppendFooter(table.Row{"", "", "", "held", service.SubjectBalance(txs), ""})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&subject, "subject", false, "id заказа или отчёта, а не пользователя")
	cmd.Flags().IntVar(&c.limit, "limit", 50, "сколько проводок показать")
	return cmd
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("некорректный id %q", raw)
	}
	return id, nil
}

func newTable(out io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
