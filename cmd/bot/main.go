// cmd/bot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/bot"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/export"
	"github.com/rovshanmuradov/whirlpool-lp-bot/internal/ui/report"
)

func main() {
	// .env необязателен: переменные могут прийти из окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "lpbot",
		Short:        "Orca Whirlpool liquidity provisioning and rebalancing bot",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path (default ./config.{yaml,json})")
	flags.String("rpc-url", "", "Solana RPC URL")
	flags.String("wallet", "", "wallet keypair file")
	flags.String("schedule", "", "cron schedule of rebalance cycles")
	flags.String("journal", "", "cycle journal DSN (sqlite://path or postgres://...)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("model", "", "range forecast model file")
	flags.String("priority", "", "transaction priority (low, medium, high, custom)")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run rebalance cycles on schedule until interrupted",
			RunE:  runScheduler,
		},
		&cobra.Command{
			Use:   "cycle",
			Short: "Run a single rebalance cycle now",
			RunE:  runCycle,
		},
		&cobra.Command{
			Use:   "positions",
			Short: "List wallet positions in the configured pool",
			RunE:  runPositions,
		},
		newHistoryCommand(),
		newExportCommand(),
		newDownloadCandlesCommand(),
	)
	return root
}

func runScheduler(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	rebalancer, err := a.rebalancer()
	if err != nil {
		return err
	}
	scheduler, err := bot.NewScheduler(rebalancer, a.cfg.Schedule, a.log.Logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("Starting liquidity bot", zap.String("schedule", a.cfg.Schedule))
	return scheduler.Run(ctx)
}

func runCycle(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	rebalancer, err := a.rebalancer()
	if err != nil {
		return err
	}
	defer a.log.TrackPerformance("cycle")()

	// Цикл не прерывается сигналом посреди транзакций: Ctrl+C только логируется.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			a.log.Warn("Interrupt received, waiting for the cycle to finish")
		case <-done:
		}
	}()

	rep, err := rebalancer.RunCycle(context.WithoutCancel(ctx))
	if rep != nil {
		fmt.Fprintln(cmd.OutOrStdout(), report.Cycle(rep))
	}
	return err
}

func runPositions(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	defer a.log.TrackPerformance("positions")()
	dex, _, err := a.exchange()
	if err != nil {
		return err
	}
	positions, err := dex.ListPositions(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.Positions(positions))
	return nil
}

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded rebalance cycles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			journal, err := a.openJournal()
			if err != nil {
				return err
			}
			if journal == nil {
				return errors.New("journal is disabled: set journal.dsn or --journal")
			}

			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			cycles, err := journal.ListCycles(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Cycles(cycles))
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "number of cycles to show")
	cmd.Flags().Int("offset", 0, "number of most recent cycles to skip")
	return cmd
}

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the cycle journal to CSV or JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			journal, err := a.openJournal()
			if err != nil {
				return err
			}
			if journal == nil {
				return errors.New("journal is disabled: set journal.dsn or --journal")
			}

			options, err := exportOptions(cmd)
			if err != nil {
				return err
			}
			path, err := export.NewExporter(journal, a.log.WithOperation("export")).Export(cmd.Context(), options)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().String("format", string(export.FormatCSV), "output format (csv, json)")
	cmd.Flags().String("out-dir", "exports", "output directory")
	cmd.Flags().String("since", "", "only cycles started at or after this time (RFC3339)")
	cmd.Flags().String("until", "", "only cycles started at or before this time (RFC3339)")
	cmd.Flags().String("operation", "", "only this operation (close_position, swap, open_position)")
	cmd.Flags().Bool("failed", false, "only failed operations")
	cmd.Flags().Int("limit", export.DefaultLimit, "number of most recent cycles to read")
	return cmd
}

func exportOptions(cmd *cobra.Command) (export.Options, error) {
	flags := cmd.Flags()
	format, _ := flags.GetString("format")
	outDir, _ := flags.GetString("out-dir")
	operation, _ := flags.GetString("operation")
	failed, _ := flags.GetBool("failed")
	limit, _ := flags.GetInt("limit")

	options := export.Options{
		Format:     export.Format(format),
		Operation:  operation,
		OnlyFailed: failed,
		Limit:      limit,
		OutputDir:  outDir,
	}
	for name, dst := range map[string]*time.Time{"since": &options.Since, "until": &options.Until} {
		raw, _ := flags.GetString(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return export.Options{}, fmt.Errorf("invalid --%s: %w", name, err)
		}
		*dst = t
	}
	return options, nil
}

func newDownloadCandlesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download-candles",
		Short: "Download hourly candles of the target token for model training",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			defer a.log.TrackPerformance("download_candles")()
			limit, _ := cmd.Flags().GetInt("limit")
			out, _ := cmd.Flags().GetString("out")

			raw, err := a.candleSource().FetchRaw(cmd.Context(), a.cfg.Target.Mint, limit)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			a.log.Info("Candles saved", zap.String("file", out), zap.Int("bytes", len(raw)))
			return nil
		},
	}
	cmd.Flags().Int("limit", 500, "number of hourly candles")
	cmd.Flags().String("out", "candleSticks.json", "output file")
	return cmd
}
