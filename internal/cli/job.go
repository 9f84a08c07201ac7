package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/bark/internal/ports/primary"
	"github.com/example/bark/internal/wire"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Record and inspect job phase history",
}

var jobCreateCmd = &cobra.Command{
	Use:   "create [job-id]",
	Short: "Record a job's creation",
	Long: `Record a job's creation in its initial phase.

Without a job ID a new JOB-xxxx identifier is allocated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := primary.CreateJobRequest{}
		if len(args) == 1 {
			req.JobID = args[0]
		}
		req.InitialPhase, _ = cmd.Flags().GetString("phase")
		dims, err := dimensionsFromFlags(cmd)
		if err != nil {
			return err
		}
		req.Dimensions = dims
		return runJobCreate(NewContext(), stdout, wire.LedgerService(), req)
	},
}

var jobMoveCmd = &cobra.Command{
	Use:   "move [job-id] [phase]",
	Short: "Move a job to a new phase",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobMove(NewContext(), stdout, wire.LedgerService(), args[0], args[1])
	},
}

var jobShowCmd = &cobra.Command{
	Use:   "show [job-id]",
	Short: "Show a job and its timeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobShow(NewContext(), stdout, wire.LedgerService(), args[0], wire.Config().Location)
	},
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		filters := primary.JobFilters{}
		filters.Phase, _ = cmd.Flags().GetString("phase")
		filters.Insurer, _ = cmd.Flags().GetString("insurer")
		filters.Limit, _ = cmd.Flags().GetInt("limit")
		return runJobList(NewContext(), stdout, wire.LedgerService(), filters)
	},
}

var jobHistoryCmd = &cobra.Command{
	Use:   "history [job-id]",
	Short: "Show a job's phase history, most recent first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		return runJobHistory(NewContext(), stdout, wire.LedgerService(), args[0], limit, wire.Config().Location)
	},
}

var jobCorrectCmd = &cobra.Command{
	Use:   "correct [record-id] [timestamp]",
	Short: "Correct the timestamp of a history record",
	Long: `Correct the timestamp of a history record.

Only configured editors may correct history. The new timestamp must keep the
job's records in date order. Stored durations are left as recorded.

Timestamps are RFC 3339 or "YYYY-MM-DD HH:MM" in the configured zone.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc := wire.Config().Location
		at, err := parseTimestamp(args[1], loc)
		if err != nil {
			return err
		}
		req := primary.CorrectionRequest{RecordID: args[0], NewTimestamp: at}
		return runJobCorrect(NewContext(), stdout, wire.LedgerService(), req, loc)
	},
}

var jobDimsCmd = &cobra.Command{
	Use:   "dims [job-id]",
	Short: "Update a job's insurer, vehicle model and amount",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dims, err := dimensionsFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := wire.LedgerService().UpdateDimensions(NewContext(), args[0], dims); err != nil {
			return fmt.Errorf("failed to update dimensions: %w", err)
		}
		fmt.Fprintf(stdout, "✓ Updated %s\n", args[0])
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{jobCreateCmd, jobDimsCmd} {
		c.Flags().String("insurer", "", "Insurer name")
		c.Flags().String("model", "", "Vehicle model")
		c.Flags().Float64("amount", 0, "Estimate amount")
	}
	jobCreateCmd.Flags().StringP("phase", "p", "", "Initial phase (default APPROVAL_ESTIMATE_DONE)")

	jobListCmd.Flags().StringP("phase", "p", "", "Filter by phase or category")
	jobListCmd.Flags().String("insurer", "", "Filter by insurer")
	jobListCmd.Flags().IntP("limit", "n", 0, "Maximum jobs to show")

	jobHistoryCmd.Flags().IntP("limit", "n", 0, "Maximum records to show")

	jobCmd.AddCommand(jobCreateCmd)
	jobCmd.AddCommand(jobMoveCmd)
	jobCmd.AddCommand(jobShowCmd)
	jobCmd.AddCommand(jobListCmd)
	jobCmd.AddCommand(jobHistoryCmd)
	jobCmd.AddCommand(jobCorrectCmd)
	jobCmd.AddCommand(jobDimsCmd)
}

// JobCmd returns the job command
func JobCmd() *cobra.Command {
	return jobCmd
}

func dimensionsFromFlags(cmd *cobra.Command) (primary.Dimensions, error) {
	var dims primary.Dimensions
	var err error
	if dims.Insurer, err = cmd.Flags().GetString("insurer"); err != nil {
		return dims, err
	}
	if dims.VehicleModel, err = cmd.Flags().GetString("model"); err != nil {
		return dims, err
	}
	dims.Amount, err = cmd.Flags().GetFloat64("amount")
	return dims, err
}

func runJobCreate(ctx context.Context, w io.Writer, svc primary.LedgerService, req primary.CreateJobRequest) error {
	job, err := svc.RecordCreation(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	fmt.Fprintf(w, "✓ Created %s in %s\n", job.ID, phaseColor.Sprint(job.Phase))
	return nil
}

func runJobMove(ctx context.Context, w io.Writer, svc primary.LedgerService, jobID, next string) error {
	res, err := svc.RecordTransition(ctx, primary.TransitionRequest{JobID: jobID, NewPhase: next})
	if err != nil {
		return fmt.Errorf("failed to move job: %w", err)
	}
	if res.Noop {
		fmt.Fprintf(w, "%s is already in %s\n", jobID, phaseColor.Sprint(res.Job.Phase))
		return nil
	}
	tr := res.Transition
	fmt.Fprintf(w, "✓ %s: %s → %s (%s)\n", jobID, tr.PreviousPhase, phaseColor.Sprint(tr.NewPhase), tr.ID)
	if tr.Duration != nil {
		fmt.Fprintf(w, "  Time in %s: %s\n", tr.PreviousPhase, formatDuration(tr.Duration))
	}
	return nil
}

func runJobShow(ctx context.Context, w io.Writer, svc primary.LedgerService, jobID string, loc *time.Location) error {
	job, err := svc.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	fmt.Fprintf(w, "%s\n", job.ID)
	fmt.Fprintf(w, "  Phase:      %s (%s)\n", phaseColor.Sprint(job.Phase), job.PhaseLabel)
	fmt.Fprintf(w, "  Category:   %s\n", job.Category)
	fmt.Fprintf(w, "  Insurer:    %s\n", orDash(job.Dimensions.Insurer))
	fmt.Fprintf(w, "  Model:      %s\n", orDash(job.Dimensions.VehicleModel))
	fmt.Fprintf(w, "  Amount:     %.2f\n", job.Dimensions.Amount)
	fmt.Fprintf(w, "  Created:    %s\n", formatTime(job.CreatedAt, loc))
	fmt.Fprintf(w, "  In phase:   since %s\n", formatTime(job.PhaseStartedAt, loc))
	fmt.Fprintf(w, "  Total days: %s\n", formatCounter(job.TotalDays))
	fmt.Fprintf(w, "  Phase days: %s\n", formatCounter(job.DaysInCurrentPhase))
	return nil
}

func runJobList(ctx context.Context, w io.Writer, svc primary.LedgerService, filters primary.JobFilters) error {
	jobs, err := svc.ListJobs(ctx, filters)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPHASE\tINSURER\tMODEL\tDAYS\tIN PHASE")
	fmt.Fprintln(tw, "--\t-----\t-------\t-----\t----\t--------")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			j.ID, j.Phase, orDash(j.Dimensions.Insurer), orDash(j.Dimensions.VehicleModel),
			formatCounter(j.TotalDays), formatCounter(j.DaysInCurrentPhase))
	}
	return tw.Flush()
}

func runJobHistory(ctx context.Context, w io.Writer, svc primary.LedgerService, jobID string, limit int, loc *time.Location) error {
	history, err := svc.GetHistory(ctx, jobID, limit)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORD\tWHEN\tFROM\tTO\tBY\tDURATION")
	fmt.Fprintln(tw, "------\t----\t----\t--\t--\t--------")
	for _, tr := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tr.ID, formatTime(tr.Timestamp, loc), orDash(tr.PreviousPhase), tr.NewPhase,
			orDash(tr.ActorID), formatDuration(tr.Duration))
	}
	return tw.Flush()
}

func runJobCorrect(ctx context.Context, w io.Writer, svc primary.LedgerService, req primary.CorrectionRequest, loc *time.Location) error {
	tr, err := svc.CorrectTimestamp(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to correct timestamp: %w", err)
	}
	fmt.Fprintf(w, "✓ %s now at %s\n", tr.ID, formatTime(tr.Timestamp, loc))
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
