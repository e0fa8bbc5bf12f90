package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/affinity/internal/cache"
	"github.com/hyperengineering/affinity/internal/config"
	"github.com/hyperengineering/affinity/internal/embedding"
	"github.com/hyperengineering/affinity/internal/service"
	"github.com/hyperengineering/affinity/internal/store"
	"github.com/hyperengineering/affinity/internal/types"
	"github.com/hyperengineering/affinity/internal/vector"
)

var (
	evalAlpha      float64
	evalSweep      []float64
	evalMaxUsers   int
	evalKValues    []int
	evalJSONOutput bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Replay the scoring pipeline over historical purchases",
	Long: "Runs temporal-holdout evaluation against the local database and " +
		"reports precision, recall, and F1 at each configured K. " +
		"Use --sweep to compare several alpha values in one run.",
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().Float64Var(&evalAlpha, "alpha", -1,
		"Blend weight to evaluate (default: configured alpha_default)")
	evaluateCmd.Flags().Float64SliceVar(&evalSweep, "sweep", nil,
		"Comma-separated alpha values to compare (overrides --alpha)")
	evaluateCmd.Flags().IntVar(&evalMaxUsers, "max-users", 0,
		"Cap on evaluated users (overrides config)")
	evaluateCmd.Flags().IntSliceVar(&evalKValues, "k-values", nil,
		"Comma-separated K cutoffs (overrides config)")
	evaluateCmd.Flags().BoolVar(&evalJSONOutput, "json", false,
		"Output in JSON format")

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Evaluation is offline: quiet logs, no cache, no vector backend. The
	// evaluator drives the engine directly so neither is exercised.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	embedder := embedding.NewOpenAI(cfg.Embedding.APIKey, cfg.Embedding.Model)
	svc := service.New(cfg, db, cache.Noop{}, vector.Noop{}, embedder, logger)
	evaluator := svc.EvaluatorWith(evalMaxUsers, evalKValues)

	alphas := evalSweep
	if len(alphas) == 0 {
		alpha := evalAlpha
		if alpha < 0 {
			alpha = cfg.Recommend.AlphaDefault
		}
		alphas = []float64{alpha}
	}
	for _, alpha := range alphas {
		if alpha < 0 || alpha > 1 {
			return fmt.Errorf("alpha %.2f outside [0,1]", alpha)
		}
	}

	reports, err := evaluator.Sweep(ctx, alphas)
	if err != nil {
		return err
	}

	if evalJSONOutput {
		return printJSON(cmd.OutOrStdout(), reports)
	}
	return printReports(cmd.OutOrStdout(), reports)
}

// printJSON marshals v to indented JSON and writes it to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReports(w io.Writer, reports []types.EvaluationReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ALPHA\tUSERS\tK\tPRECISION\tRECALL\tF1")
	for _, report := range reports {
		ks := make([]int, 0, len(report.Metrics))
		for k := range report.Metrics {
			ks = append(ks, k)
		}
		sort.Ints(ks)
		for _, k := range ks {
			m := report.Metrics[k]
			fmt.Fprintf(tw, "%.2f\t%d\t%d\t%.4f\t%.4f\t%.4f\n",
				report.Alpha, report.UsersEvaluated, k, m.Precision, m.Recall, m.F1)
		}
	}
	return tw.Flush()
}
