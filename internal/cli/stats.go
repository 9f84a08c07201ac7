package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/bark/internal/ports/primary"
	"github.com/example/bark/internal/wire"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Cycle-time analytics",
	Long: `Cycle-time analytics over a date window.

Windows are calendar days in the configured zone. Use --range for a preset
(today, 7d, month, 30d) or --from/--to for an inclusive range. With neither,
the trailing default window ending today is used.`,
}

var statsAvgCmd = &cobra.Command{
	Use:   "avg [start-phase] [end-phase]",
	Short: "Average time from one phase to another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		group, _ := cmd.Flags().GetString("group")
		req := primary.AverageRequest{
			WindowRequest: windowFromFlags(cmd),
			StartPhase:    args[0],
			EndPhase:      args[1],
			Group:         group,
		}
		return runStatsAverage(NewContext(), stdout, wire.AnalyticsService(), req)
	},
}

var statsTrendCmd = &cobra.Command{
	Use:   "trend [phase-or-category]",
	Short: "Jobs first reaching a phase, per day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := primary.TrendRequest{WindowRequest: windowFromFlags(cmd), Phase: args[0]}
		return runStatsTrend(NewContext(), stdout, wire.AnalyticsService(), req)
	},
}

var statsCycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "All standard cycle-time metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatsCycle(NewContext(), stdout, wire.AnalyticsService(), windowFromFlags(cmd))
	},
}

var statsDwellCmd = &cobra.Command{
	Use:   "dwell",
	Short: "Average time spent in each phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatsDwell(NewContext(), stdout, wire.AnalyticsService(), windowFromFlags(cmd))
	},
}

var statsDistCmd = &cobra.Command{
	Use:       "dist [insurer|model]",
	Short:     "New jobs per insurer or vehicle model",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"insurer", "model"},
	RunE: func(cmd *cobra.Command, args []string) error {
		req := primary.DistributionRequest{WindowRequest: windowFromFlags(cmd), Group: args[0]}
		return runStatsDistribution(NewContext(), stdout, wire.AnalyticsService(), req)
	},
}

var statsTableCmd = &cobra.Command{
	Use:   "table [name]",
	Short: "A named grouped average",
	Long: `A named grouped average.

Tables: loa_by_insurer, payment_by_insurer, repair_by_price_range,
repair_by_model, repair_by_model_price.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := primary.TableRequest{WindowRequest: windowFromFlags(cmd), Name: args[0]}
		return runStatsTable(NewContext(), stdout, wire.AnalyticsService(), req)
	},
}

var statsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Dashboard headline: open jobs, alerts, releases and billing",
	Long: `Dashboard headline.

Totals cover every job. Pipeline counters and the pending billing total only
count jobs that last moved inside the window. Released counts jobs first
released during the trailing week, whatever the window.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatsSummary(NewContext(), stdout, wire.AnalyticsService(), windowFromFlags(cmd))
	},
}

func init() {
	statsCmd.PersistentFlags().StringP("range", "r", "", "Preset window: today, 7d, month, 30d")
	statsCmd.PersistentFlags().String("from", "", "Window start date (YYYY-MM-DD)")
	statsCmd.PersistentFlags().String("to", "", "Window end date (YYYY-MM-DD, inclusive)")

	statsAvgCmd.Flags().StringP("group", "g", "", "Group by insurer, model, price_range or model_price")

	statsCmd.AddCommand(statsAvgCmd)
	statsCmd.AddCommand(statsTrendCmd)
	statsCmd.AddCommand(statsCycleCmd)
	statsCmd.AddCommand(statsDwellCmd)
	statsCmd.AddCommand(statsDistCmd)
	statsCmd.AddCommand(statsTableCmd)
	statsCmd.AddCommand(statsSummaryCmd)
}

// StatsCmd returns the stats command
func StatsCmd() *cobra.Command {
	return statsCmd
}

func windowFromFlags(cmd *cobra.Command) primary.WindowRequest {
	var w primary.WindowRequest
	w.Range, _ = cmd.Flags().GetString("range")
	w.From, _ = cmd.Flags().GetString("from")
	w.To, _ = cmd.Flags().GetString("to")
	return w
}

func printWindow(w io.Writer, win primary.Window) {
	fmt.Fprintf(w, "Window: %s .. %s (%d days, %s)\n\n", win.From, win.To, win.Days, win.Zone)
}

func printGroups(w io.Writer, header string, rows []primary.GroupAverage) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tAVERAGE\tJOBS\n", header)
	fmt.Fprintln(tw, "-----\t-------\t----")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Label, formatDays(r.Average), r.Jobs)
	}
	return tw.Flush()
}

func runStatsAverage(ctx context.Context, w io.Writer, svc primary.AnalyticsService, req primary.AverageRequest) error {
	res, err := svc.AveragePhaseToPhase(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to compute average: %w", err)
	}
	printWindow(w, res.Window)
	fmt.Fprintf(w, "%s → %s: %s over %d jobs\n", res.StartPhase, res.EndPhase, formatDays(res.Average), res.Jobs)
	if req.Group == "" {
		return nil
	}
	fmt.Fprintln(w)
	return printGroups(w, "GROUP", res.Groups)
}

func runStatsTrend(ctx context.Context, w io.Writer, svc primary.AnalyticsService, req primary.TrendRequest) error {
	res, err := svc.DailyTrend(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to compute trend: %w", err)
	}
	printWindow(w, res.Window)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDAY\tJOBS")
	fmt.Fprintln(tw, "----\t---\t----")
	for _, p := range res.Points {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", p.Date, p.Label, p.Count)
	}
	return tw.Flush()
}

func runStatsCycle(ctx context.Context, w io.Writer, svc primary.AnalyticsService, req primary.WindowRequest) error {
	res, err := svc.CycleTimes(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to compute cycle times: %w", err)
	}
	printWindow(w, res.Window)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tFROM\tTO\tAVERAGE\tJOBS")
	fmt.Fprintln(tw, "------\t----\t--\t-------\t----")
	for _, m := range res.Metrics {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", m.Label, m.StartPhase, m.EndPhase, formatDays(m.Average), m.Jobs)
	}
	return tw.Flush()
}

func runStatsDwell(ctx context.Context, w io.Writer, svc primary.AnalyticsService, req primary.WindowRequest) error {
	res, err := svc.DwellTimes(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to compute dwell times: %w", err)
	}
	printWindow(w, res.Window)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PHASE\tAVERAGE\tRECORDS")
	fmt.Fprintln(tw, "-----\t-------\t-------")
	for _, r := range res.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Phase, formatDays(r.Average), r.Records)
	}
	return tw.Flush()
}

func runStatsDistribution(ctx context.Context, w io.Writer, svc primary.AnalyticsService, req primary.DistributionRequest) error {
	res, err := svc.Distribution(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to compute distribution: %w", err)
	}
	printWindow(w, res.Window)
	if len(res.Rows) == 0 {
		fmt.Fprintln(w, "No new jobs in window.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tJOBS")
	fmt.Fprintln(tw, "-----\t----")
	for _, r := range res.Rows {
		fmt.Fprintf(tw, "%s\t%d\n", r.Label, r.Jobs)
	}
	return tw.Flush()
}

func runStatsTable(ctx context.Context, w io.Writer, svc primary.AnalyticsService, req primary.TableRequest) error {
	res, err := svc.Table(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to compute table: %w", err)
	}
	printWindow(w, res.Window)
	fmt.Fprintf(w, "%s\n\n", res.Title)
	return printGroups(w, "GROUP", res.Rows)
}

func runStatsSummary(ctx context.Context, w io.Writer, svc primary.AnalyticsService, req primary.WindowRequest) error {
	res, err := svc.Summary(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to compute summary: %w", err)
	}
	printWindow(w, res.Window)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Jobs:	%d\n", res.Jobs)
	fmt.Fprintf(tw, "Active:	%s\n", valueColor.Sprint(res.Active))
	fmt.Fprintf(tw, "LOA rejected:	%d\n", res.Alerts)
	fmt.Fprintf(tw, "Released (last %d days):	%d\n", res.ReleasedDays, res.Released)
	fmt.Fprintf(tw, "Revenue:	%.2f\n", res.Revenue)
	fmt.Fprintf(tw, "Billing pending:	%.2f\n", res.BillingPending)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE	JOBS")
	fmt.Fprintln(tw, "-----	----")
	for _, p := range res.Pipeline {
		fmt.Fprintf(tw, "%s	%d\n", phaseColor.Sprint(p.Label), p.Jobs)
	}
	return tw.Flush()
}
