package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geo-benchmark/internal/brand"
	"github.com/sells-group/geo-benchmark/internal/config"
	"github.com/sells-group/geo-benchmark/internal/model"
	"github.com/sells-group/geo-benchmark/internal/report"
	"github.com/sells-group/geo-benchmark/internal/store"
)

// reportEnv is the read-only environment of the aggregate commands.
type reportEnv struct {
	Store    store.Store
	Registry *brand.Registry
	Reader   *report.Reader
}

func initReportEnv(ctx context.Context) (*reportEnv, error) {
	st, err := openStore(ctx, config.ModeRead)
	if err != nil {
		return nil, err
	}
	reg, err := brand.Load(cfg.Benchmark.BrandsFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &reportEnv{Store: st, Registry: reg, Reader: report.NewReader(st, reg)}, nil
}

// resolveRunID returns flagID, or the latest completed run when flagID is 0.
func resolveRunID(ctx context.Context, r *report.Reader, flagID int64) (int64, error) {
	if flagID > 0 {
		return flagID, nil
	}
	id, err := r.LatestRunID(ctx)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, eris.New("no benchmark data available yet")
	}
	return id, nil
}

func providerFlag(cmd *cobra.Command) (model.Provider, error) {
	s, _ := cmd.Flags().GetString("provider")
	p := model.Provider(s)
	if p != "" && !p.Valid() {
		return "", eris.Errorf("unknown provider %q", s)
	}
	return p, nil
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runReport wires the shared run/provider flags for a run-scoped view.
func runReport(cmd *cobra.Command, fn func(ctx context.Context, env *reportEnv, runID int64, p model.Provider) error) error {
	ctx := cmd.Context()
	p, err := providerFlag(cmd)
	if err != nil {
		return err
	}
	env, err := initReportEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Store.Close() //nolint:errcheck

	flagID, _ := cmd.Flags().GetInt64("run")
	runID, err := resolveRunID(ctx, env.Reader, flagID)
	if err != nil {
		return err
	}
	return fn(ctx, env, runID, p)
}

var sovCmd = &cobra.Command{
	Use:   "sov",
	Short: "Share of voice per brand for a run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReport(cmd, func(ctx context.Context, env *reportEnv, runID int64, p model.Provider) error {
			out, err := env.Reader.ShareOfVoice(ctx, runID, p)
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return printJSON(out)
			}
			formatSOV(os.Stdout, runID, out)
			return nil
		})
	},
}

var breakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Per-query brand outcomes for a run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReport(cmd, func(ctx context.Context, env *reportEnv, runID int64, p model.Provider) error {
			out, err := env.Reader.Breakdown(ctx, runID, p)
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return printJSON(out)
			}
			formatBreakdown(os.Stdout, out)
			return nil
		})
	},
}

var citationsCmd = &cobra.Command{
	Use:   "citations",
	Short: "Most cited domains for a run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runReport(cmd, func(ctx context.Context, env *reportEnv, runID int64, p model.Provider) error {
			limit, _ := cmd.Flags().GetInt("limit")
			out, err := env.Reader.Citations(ctx, runID, p, limit)
			if err != nil {
				return err
			}
			if asJSON(cmd) {
				return printJSON(out)
			}
			formatCitations(os.Stdout, out)
			return nil
		})
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Generate GEO recommendations from a run's metrics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Anthropic.Key == "" {
			return eris.Errorf("recommendations require anthropic.key (set %s)", config.KeyEnvHint("anthropic.key"))
		}
		return runReport(cmd, func(ctx context.Context, env *reportEnv, runID int64, _ model.Provider) error {
			rows, queries, err := env.Reader.RunMetrics(ctx, runID)
			if err != nil {
				return err
			}
			return printJSON(initRecommender(env.Registry).Generate(ctx, rows, queries))
		})
	},
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Per-brand metrics over recent run dates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		p, err := providerFlag(cmd)
		if err != nil {
			return err
		}
		env, err := initReportEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Store.Close() //nolint:errcheck

		days, _ := cmd.Flags().GetInt("days")
		out, err := env.Reader.Trends(ctx, p, days)
		if err != nil {
			return err
		}
		if asJSON(cmd) {
			return printJSON(out)
		}
		formatTrends(os.Stdout, out)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{sovCmd, breakdownCmd, citationsCmd, recommendCmd} {
		c.Flags().Int64("run", 0, "run id (default: latest completed run)")
	}
	for _, c := range []*cobra.Command{sovCmd, breakdownCmd, citationsCmd, trendsCmd} {
		c.Flags().String("provider", "", "restrict to one provider (grok_web_search, chatgpt_web_search, claude_parametric)")
		c.Flags().Bool("json", false, "print JSON instead of a table")
	}
	citationsCmd.Flags().Int("limit", report.DefaultCitationLimit, "max number of domains")
	trendsCmd.Flags().Int("days", report.DefaultTrendDays, "window of run dates to include")

	rootCmd.AddCommand(sovCmd, breakdownCmd, citationsCmd, trendsCmd, recommendCmd)
}

func fmtPos(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("#%d", *p)
}

func fmtOpt(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func tag(b bool, label string) string {
	if b {
		return label
	}
	return ""
}

// formatSOV writes the share-of-voice table to w.
func formatSOV(out io.Writer, runID int64, rows []model.BrandSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run %d\n", runID)
	_, _ = fmt.Fprintln(w, "BRAND\tSOV\tAVG_POS\tAVG_SENT\tWIN_RATE")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%.1f%%\t%s\t%s\t%.1f%%\n",
			r.Brand, r.SOV, fmtOpt(r.AvgPosition, "%.2f"), fmtOpt(r.AvgSentiment, "%.3f"), r.WinRate)
	}
	_ = w.Flush()
}

// formatBreakdown writes one line per (query, brand) to w.
func formatBreakdown(out io.Writer, rows []model.TermBreakdownRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "QUERY\tCATEGORY\tBRAND\tMENTIONED\tPOS\tSENT\tFLAGS")
	for _, r := range rows {
		q := r.QueryText
		if len(q) > 50 {
			q = q[:47] + "..."
		}
		flags := tag(r.IsPrimaryRecommendation, "primary")
		if r.IsWinner {
			if flags != "" {
				flags += ","
			}
			flags += "winner"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
			q, r.Category, r.Brand, r.IsMentioned, fmtPos(r.FirstMentionPosition), fmtOpt(r.AvgSentimentScore, "%.2f"), flags)
	}
	_ = w.Flush()
}

// formatTrends writes one line per (date, brand) to w.
func formatTrends(out io.Writer, rows []model.TrendPoint) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DATE\tBRAND\tSOV\tAVG_POS\tAVG_SENT\tWIN_RATE\tCITES\tPRIMARY\tSECONDARY")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f%%\t%s\t%s\t%.1f%%\t%d\t%d\t%d\n",
			r.Date, r.Brand, r.SOV, fmtOpt(r.AvgPosition, "%.2f"), fmtOpt(r.AvgSentiment, "%.3f"),
			r.WinRate, r.Citations, r.PrimaryCitations, r.SecondaryCitations)
	}
	_ = w.Flush()
}

// formatCitations writes the domain leaderboard to w.
func formatCitations(out io.Writer, rows []model.DomainCount) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOMAIN\tBRAND\tCOUNT")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", r.Domain, r.Brand, r.Count)
	}
	_ = w.Flush()
}
