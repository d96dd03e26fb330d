package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mgnrega/internal/amqp"
	"mgnrega/internal/cli"
	"mgnrega/internal/config"
	"mgnrega/internal/core"
	"mgnrega/internal/format"
	apphttp "mgnrega/internal/http"
	"mgnrega/internal/log"
	"mgnrega/internal/seed"
	"mgnrega/internal/services"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mgnrega-cli",
		Short:         "Administer the MGNREGA district dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
		},
	}
	root.AddCommand(newSeedCmd(), newSyncCmd(), newFmtCmd(), newVersionCmd())
	return root
}

// setup loads and validates configuration for commands that touch the
// database or the network.
func setup() (*config.Config, *log.Logger, error) {
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newSeedCmd() *cobra.Command {
	var (
		file   string
		months int
		latest string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load states, districts and sample monthly figures",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.SeedFile
			}
			ds, err := cli.LoadDataset(file)
			if err != nil {
				return err
			}
			period := core.PeriodOf(time.Now()).Prev()
			if latest != "" {
				if period, err = parsePeriod(latest); err != nil {
					return err
				}
			}

			repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
			defer repo.Close()

			sum, err := seed.New(repo, logger).Run(cmd.Context(), ds, period, months)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d states, %d districts, %d monthly rows\n",
				sum.States, sum.Districts, sum.Metrics)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML seed file (default: bundled dataset or SEED_FILE)")
	cmd.Flags().IntVar(&months, "months", seed.DefaultMonths, "months of figures per district")
	cmd.Flags().StringVar(&latest, "latest", "", "latest period as YYYY-MM (default: last month)")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var (
		states  []string
		publish bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch figures from data.gov.in, or queue a sync for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			runID := services.NewRunID()
			out := cmd.OutOrStdout()

			if publish {
				if !cfg.AMQPEnabled() {
					return fmt.Errorf("--publish needs AMQP_URL")
				}
				client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
				if err != nil {
					return err
				}
				defer client.Close()

				codes := states
				if len(codes) == 0 {
					codes = []string{""}
				}
				for _, code := range codes {
					msg := amqp.NewSyncRequestMessage(runID, code)
					if err := client.PublishSyncRequest(cmd.Context(), msg); err != nil {
						return err
					}
				}
				fmt.Fprintf(out, "queued run %s\n", runID)
				return nil
			}

			if !cfg.DataGovEnabled() {
				return fmt.Errorf("sync needs DATA_GOV_API_KEY")
			}
			repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
			defer repo.Close()

			svc := services.NewSyncService(repo, cli.NewDataGovClient(cfg, logger), services.SyncConfig{
				Concurrency: cfg.SyncConcurrency,
			}, logger)

			var res services.SyncResult
			if len(states) == 0 {
				res, err = svc.SyncAll(cmd.Context(), runID)
			} else {
				res, err = svc.SyncStates(cmd.Context(), runID, states...)
			}
			for _, st := range res.States {
				status := "ok"
				if st.Err != nil {
					status = st.Err.Error()
				}
				fmt.Fprintf(out, "%-3s records=%d skipped=%d districts=%d %s\n",
					st.StateCode, st.Records, st.Skipped, st.Districts, status)
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&states, "state", nil, "state codes to sync (default: all)")
	cmd.Flags().BoolVar(&publish, "publish", false, "queue the request for mgnrega-worker instead of syncing here")
	return cmd
}

func newFmtCmd() *cobra.Command {
	var (
		decimals int
		locale   string
	)
	cmd := &cobra.Command{
		Use:       "fmt {number|currency|large|words|percent} VALUE",
		Short:     "Format a value the way the dashboard shows it",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"number", "currency", "large", "words", "percent"},
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, ok := format.LookupLocale(locale)
			if !ok {
				return fmt.Errorf("unknown locale %q, want %s or %s", locale, format.EnIN.Tag, format.EnUS.Tag)
			}
			out, err := formatValue(format.New(loc), args[0], args[1], decimals)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&decimals, "decimals", format.DefaultPercentDecimals, "decimals for percent")
	cmd.Flags().StringVar(&locale, "locale", format.EnIN.Tag, "digit grouping locale (en-IN or en-US)")
	return cmd
}

func formatValue(f *format.Formatter, kind, raw string, decimals int) (string, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return "", fmt.Errorf("not a number: %q", raw)
	}
	switch kind {
	case "number":
		return f.IndianNumber(v), nil
	case "currency":
		return f.Currency(v), nil
	case "large":
		return f.LargeCurrency(v), nil
	case "words":
		return format.NumberToWords(int64(v)), nil
	case "percent":
		return f.Percentage(v, decimals), nil
	default:
		return "", fmt.Errorf("unknown format %q", kind)
	}
}

func parsePeriod(s string) (core.Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return core.Period{}, fmt.Errorf("%w: %q, want YYYY-MM", core.ErrInvalidPeriod, s)
	}
	p := core.PeriodOf(t)
	return p, p.Validate()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), apphttp.Version)
		},
	}
}
