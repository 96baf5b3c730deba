package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seenimoa/moatscore/api"
	"github.com/seenimoa/moatscore/internal/analysis/valuation"
	"github.com/seenimoa/moatscore/internal/engine"
	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/internal/providers"
	"github.com/seenimoa/moatscore/internal/service"
	"github.com/seenimoa/moatscore/internal/store"
	"github.com/seenimoa/moatscore/pkg/models"
)

// newService builds the provider registry and, when withStore is set, opens
// the configured store. The returned close func releases the store.
func newService(ctx context.Context, withStore bool) (*service.Service, func(), error) {
	reg := provider.NewRegistry()
	if err := providers.RegisterAllTo(reg, cfg.Providers); err != nil {
		return nil, nil, err
	}

	var st store.Store
	closeFn := func() {}
	if withStore {
		var err error
		st, err = store.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		closeFn = func() {
			if err := st.Close(); err != nil {
				logger.Warn().Err(err).Msg("store close failed")
			}
		}
	}
	return service.New(reg, st, cfg, logger), closeFn, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// --- Score Command ---

var scoreCmd = &cobra.Command{
	Use:   "score <ticker>",
	Short: "Fetch, score and value one company",
	Example: `  moatscore score AAPL
  moatscore score AAPL --price 180 --save
  moatscore score TCS --growth 12 --pe 24`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		save, _ := cmd.Flags().GetBool("save")
		asJSON, _ := cmd.Flags().GetBool("json")

		req := service.Request{Ticker: args[0]}
		if cmd.Flags().Changed("price") {
			price, _ := cmd.Flags().GetFloat64("price")
			req.Price = &price
		}
		in, err := assumptionFlags(cmd)
		if err != nil {
			return err
		}
		req.Assumptions = in

		svc, closeStore, err := newService(ctx, save)
		if err != nil {
			return err
		}
		defer closeStore()

		var a *models.CompanyAnalysis
		if save {
			a, err = svc.Refresh(ctx, req)
		} else {
			a, err = svc.Analyze(ctx, req)
		}
		if err != nil {
			return err
		}

		if asJSON {
			return writeJSON(cmd.OutOrStdout(), a)
		}
		printAnalysis(cmd.OutOrStdout(), a)
		return nil
	},
}

// assumptionFlags returns explicit valuation assumptions when both --growth
// and --pe are given; --eps defaults to the latest reported EPS otherwise.
func assumptionFlags(cmd *cobra.Command) (*models.ValuationInput, error) {
	f := cmd.Flags()
	if !f.Changed("growth") && !f.Changed("pe") {
		return nil, nil
	}
	if !f.Changed("growth") || !f.Changed("pe") {
		return nil, fmt.Errorf("--growth and --pe must be given together")
	}
	growth, _ := f.GetFloat64("growth")
	pe, _ := f.GetFloat64("pe")
	eps, _ := f.GetFloat64("eps")
	in := &models.ValuationInput{
		CurrentEPS:    eps,
		GrowthRate:    growth,
		FuturePE:      pe,
		MinReturnRate: cfg.Analysis.MinReturnRate,
		Years:         cfg.Analysis.Years,
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

// --- Batch Command ---

var batchCmd = &cobra.Command{
	Use:   "batch <ticker> [ticker...]",
	Short: "Refresh several companies concurrently and rank them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		force, _ := cmd.Flags().GetBool("force")
		asJSON, _ := cmd.Flags().GetBool("json")

		svc, closeStore, err := newService(ctx, true)
		if err != nil {
			return err
		}
		defer closeStore()

		errOut := cmd.ErrOrStderr()
		res, err := svc.RefreshAll(ctx, args, force, func(done, total int, a *models.CompanyAnalysis, err error) {
			if err != nil {
				fmt.Fprintf(errOut, "[%d/%d] %v\n", done, total, err)
				return
			}
			fmt.Fprintf(errOut, "[%d/%d] %s scored %d\n", done, total, a.Ticker, a.Score.ValueScore)
		})
		if err != nil {
			return err
		}

		if asJSON {
			return writeJSON(cmd.OutOrStdout(), res)
		}
		printRanking(cmd.OutOrStdout(), res)
		if len(res.Analyses) == 0 && len(res.Failures) > 0 {
			return fmt.Errorf("all %d companies failed", len(res.Failures))
		}
		return nil
	},
}

// --- Sticker Command ---

var stickerCmd = &cobra.Command{
	Use:   "sticker",
	Short: "Compute a sticker price and margin-of-safety price",
	Example: `  moatscore sticker --eps 5 --growth 15 --pe 30
  moatscore sticker --eps 2.4 --growth 10 --pe 20 --min-return 12 --years 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		in := models.ValuationInput{}
		in.CurrentEPS, _ = f.GetFloat64("eps")
		in.GrowthRate, _ = f.GetFloat64("growth")
		in.FuturePE, _ = f.GetFloat64("pe")
		in.MinReturnRate, _ = f.GetFloat64("min-return")
		in.Years, _ = f.GetInt("years")
		if !f.Changed("min-return") {
			in.MinReturnRate = cfg.Analysis.MinReturnRate
		}
		if !f.Changed("years") {
			in.Years = cfg.Analysis.Years
		}

		res, err := valuation.Compute(in)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res == nil {
			fmt.Fprintln(out, "No sticker price: EPS must be positive.")
			return nil
		}
		in = in.WithDefaults()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Future EPS (%d yrs)\t%.2f\n", in.Years, res.FutureEPS)
		fmt.Fprintf(w, "Future price\t%.2f\n", res.FuturePrice)
		fmt.Fprintf(w, "Sticker price\t%.2f\n", res.StickerPrice)
		fmt.Fprintf(w, "MOS price\t%.2f\n", res.MOSPrice)
		return w.Flush()
	},
}

// --- Payback Command ---

var paybackCmd = &cobra.Command{
	Use:     "payback",
	Short:   "Count the years of earnings needed to pay back a share price",
	Example: `  moatscore payback --price 100 --eps 10 --growth 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		price, _ := f.GetFloat64("price")
		eps, _ := f.GetFloat64("eps")
		growth, _ := f.GetFloat64("growth")
		if growth <= -100 {
			return fmt.Errorf("--growth must be greater than -100")
		}

		years := valuation.PaybackTime(price, eps, growth/100)
		out := cmd.OutOrStdout()
		if years >= valuation.MaxPaybackYears {
			fmt.Fprintf(out, "Payback time: more than %d years\n", valuation.MaxPaybackYears-1)
			return nil
		}
		fmt.Fprintf(out, "Payback time: %d years\n", years)
		return nil
	},
}

// --- Serve Command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.API.Port = port
		}

		svc, closeStore, err := newService(ctx, true)
		if err != nil {
			return err
		}
		defer closeStore()

		srv := api.NewServer(cfg, svc, logger)
		fmt.Fprintf(cmd.OutOrStdout(), "moatscore API server starting on %s\n", cfg.API.Addr())
		return srv.ListenAndServe(ctx, cfg.API.Addr())
	},
}

func init() {
	scoreCmd.Flags().Float64("price", 0, "current share price (default: quoted by the provider)")
	scoreCmd.Flags().Float64("eps", 0, "current EPS for explicit assumptions (default: latest reported)")
	scoreCmd.Flags().Float64("growth", 0, "growth rate assumption, percent")
	scoreCmd.Flags().Float64("pe", 0, "future P/E assumption")
	scoreCmd.Flags().Bool("save", false, "store the statements and analysis")
	scoreCmd.Flags().Bool("json", false, "print the analysis as JSON")

	batchCmd.Flags().Bool("force", false, "refresh companies even when the stored analysis is fresh")
	batchCmd.Flags().Bool("json", false, "print the batch result as JSON")

	stickerCmd.Flags().Float64("eps", 0, "current EPS")
	stickerCmd.Flags().Float64("growth", 0, "expected growth rate, percent")
	stickerCmd.Flags().Float64("pe", 0, "future P/E")
	stickerCmd.Flags().Float64("min-return", models.DefaultMinReturnRate, "minimum acceptable return, percent")
	stickerCmd.Flags().Int("years", models.DefaultYears, "valuation horizon in years")
	_ = stickerCmd.MarkFlagRequired("eps")
	_ = stickerCmd.MarkFlagRequired("growth")
	_ = stickerCmd.MarkFlagRequired("pe")

	paybackCmd.Flags().Float64("price", 0, "share price")
	paybackCmd.Flags().Float64("eps", 0, "current EPS")
	paybackCmd.Flags().Float64("growth", 0, "earnings growth rate, percent")
	_ = paybackCmd.MarkFlagRequired("price")
	_ = paybackCmd.MarkFlagRequired("eps")
	_ = paybackCmd.MarkFlagRequired("growth")

	serveCmd.Flags().Int("port", 0, "override API port")
}

// ============================================================
// Output
// ============================================================

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnalysis(out io.Writer, a *models.CompanyAnalysis) {
	title := a.Ticker
	if a.Name != "" {
		title = fmt.Sprintf("%s (%s)", a.Name, a.Ticker)
	}
	fmt.Fprintf(out, "%s  %d years of data, as of %s\n\n", title, a.Metrics.YearsOfData, a.CalculatedAt.Format("2006-01-02"))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Growth\t1Y\t5Y\t10Y")
	row := func(name string, g models.GrowthRates) {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, pct(g.OneYear), pct(g.FiveYear), pct(g.TenYear))
	}
	m := a.Metrics
	row("EPS", m.EPSGrowth)
	row("Revenue", m.RevenueGrowth)
	row("Equity", m.EquityGrowth)
	row("Free cash flow", m.FCFGrowth)
	fmt.Fprintf(w, "ROIC\t%s\t%s\t%s\n", pct(m.ROIC1Year), pct(m.ROIC5Year), pct(m.ROIC10Year))
	_ = w.Flush()
	fmt.Fprintln(out)

	s := a.Score
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Value score\t%d\n", s.ValueScore)
	fmt.Fprintf(w, "  ROIC\t%d\n", s.ROICScore)
	fmt.Fprintf(w, "  Moat\t%d\n", s.MoatScore)
	fmt.Fprintf(w, "  Debt\t%d\n", s.DebtScore)
	fmt.Fprintf(w, "  Management\t%d\n", s.ManagementScore)
	fmt.Fprintf(w, "Predictable\t%t\n", m.IsPredictable)
	if a.Assumptions != nil {
		fmt.Fprintf(w, "Assumptions\tEPS %.2f, growth %.1f%%, P/E %.1f\n",
			a.Assumptions.CurrentEPS, a.Assumptions.GrowthRate, a.Assumptions.FuturePE)
	}
	fmt.Fprintf(w, "Sticker price\t%s\n", money(s.StickerPrice))
	fmt.Fprintf(w, "MOS price\t%s\n", money(s.MOSPrice))
	if a.CurrentPrice != nil {
		fmt.Fprintf(w, "Current price\t%s\n", money(a.CurrentPrice))
	}
	if s.PaybackTime != nil {
		fmt.Fprintf(w, "Payback time\t%d years\n", *s.PaybackTime)
	}
	if a.Recommendation != "" {
		fmt.Fprintf(w, "Recommendation\t%s\n", a.Recommendation)
	}
	_ = w.Flush()
}

func printRanking(out io.Writer, res *engine.BatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTICKER\tSCORE\tROIC\tMOAT\tDEBT\tMGMT\tSTICKER\tMOS\tPRICE\tREC")
	for i, a := range res.Analyses {
		s := a.Score
		rec := string(a.Recommendation)
		if rec == "" {
			rec = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			i+1, a.Ticker, s.ValueScore, s.ROICScore, s.MoatScore, s.DebtScore, s.ManagementScore,
			money(s.StickerPrice), money(s.MOSPrice), money(a.CurrentPrice), rec)
	}
	_ = w.Flush()

	if len(res.Failures) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Failed:")
		for _, f := range res.Failures {
			fmt.Fprintf(out, "  %s: %v\n", f.Ticker, f.Err)
		}
	}
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64) + "%"
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
