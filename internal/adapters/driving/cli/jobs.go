package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

var (
	jobsListJSON bool
	jobsShowLogs int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Monitor fine-tuning jobs",
	RunE:  runJobsList,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List fine-tuning jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobsList,
}

var jobsShowCmd = &cobra.Command{
	Use:   "show job-id",
	Short: "Show a job's status and logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsShow,
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the job list until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runJobsWatch,
}

func init() {
	for _, c := range []*cobra.Command{jobsCmd, jobsListCmd} {
		c.Flags().BoolVar(&jobsListJSON, "json", false, "output jobs as JSON")
	}
	jobsShowCmd.Flags().IntVarP(&jobsShowLogs, "logs", "n", 20, "number of log lines to print")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsWatchCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	if monitorService == nil {
		return errNotConfigured("job monitor")
	}
	if err := monitorService.Refresh(commandContext(cmd)); err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	jobs := monitorService.Jobs()

	if jobsListJSON {
		return outputJobsJSON(cmd, jobs)
	}
	printJobs(cmd, jobs)
	return nil
}

type jobJSON struct {
	ID        string   `json:"id"`
	Platform  string   `json:"platform"`
	Model     string   `json:"model"`
	Status    string   `json:"status"`
	Progress  float64  `json:"progress"`
	CostUSD   *float64 `json:"cost_usd"`
	CreatedAt string   `json:"created_at,omitempty"`
}

func outputJobsJSON(cmd *cobra.Command, jobs []domain.FineTuningJob) error {
	out := make([]jobJSON, len(jobs))
	for i := range jobs {
		out[i] = jobJSON{
			ID:       jobs[i].ID,
			Platform: jobs[i].Platform,
			Model:    jobs[i].Model,
			Status:   jobs[i].Status,
			Progress: jobs[i].Progress,
			CostUSD:  jobs[i].CostUSD,
		}
		if !jobs[i].CreatedAt.IsZero() {
			out[i].CreatedAt = jobs[i].CreatedAt.Format("2006-01-02T15:04:05Z07:00")
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func printJobs(cmd *cobra.Command, jobs []domain.FineTuningJob) {
	if len(jobs) == 0 {
		cmd.Println("No fine-tuning jobs.")
		return
	}
	for i := range jobs {
		cost := "-"
		if jobs[i].CostUSD != nil {
			cost = fmt.Sprintf("$%.2f", *jobs[i].CostUSD)
		}
		cmd.Printf("%-36s %-10s %-10s %-20s %5.1f%% %8s\n",
			truncate(jobs[i].ID, 36), jobs[i].Status, jobs[i].Platform,
			truncate(jobs[i].Model, 20), jobs[i].Progress, cost)
	}
}

func runJobsShow(cmd *cobra.Command, args []string) error {
	if monitorService == nil {
		return errNotConfigured("job monitor")
	}
	if err := monitorService.Expand(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	detail := monitorService.Detail()
	if detail == nil {
		return fmt.Errorf("job %s: %w", args[0], domain.ErrNotFound)
	}
	printJobDetail(cmd, detail, jobsShowLogs)
	return nil
}

func printJobDetail(cmd *cobra.Command, detail *domain.JobDetail, logLines int) {
	s := detail.Status
	cmd.Printf("Job:       %s\n", s.JobID)
	cmd.Printf("Status:    %s\n", s.Status)
	cmd.Printf("Progress:  %.1f%%\n", s.Progress)
	if s.EstimatedSecondsRemaining != nil {
		cmd.Printf("Remaining: %s\n", formatSeconds(*s.EstimatedSecondsRemaining))
	}
	if len(s.CostTracking) > 0 {
		cmd.Println("Cost:")
		keys := make([]string, 0, len(s.CostTracking))
		for k := range s.CostTracking {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cmd.Printf("  %s: %v\n", k, s.CostTracking[k])
		}
	}

	logs := detail.Logs
	if logLines >= 0 && len(logs) > logLines {
		logs = logs[len(logs)-logLines:]
	}
	if len(logs) == 0 {
		return
	}
	cmd.Println("Logs:")
	for i := range logs {
		line := logs[i].Timestamp.Local().Format("2006-01-02 15:04:05") + "  " + logs[i].Status
		if logs[i].Progress != nil {
			line += fmt.Sprintf(" %.1f%%", *logs[i].Progress)
		}
		if logs[i].Message != "" {
			line += "  " + logs[i].Message
		}
		cmd.Println("  " + line)
	}
}

func formatSeconds(sec float64) string {
	if sec < 60 {
		return fmt.Sprintf("%.0fs", sec)
	}
	if sec < 3600 {
		return fmt.Sprintf("%dm %02ds", int(sec)/60, int(sec)%60)
	}
	return fmt.Sprintf("%dh %02dm", int(sec)/3600, (int(sec)%3600)/60)
}

func runJobsWatch(cmd *cobra.Command, _ []string) error {
	if monitorService == nil {
		return errNotConfigured("job monitor")
	}
	if eventSource == nil {
		return errNotConfigured("event")
	}
	ctx := commandContext(cmd)

	changed := make(chan struct{}, 1)
	unsubscribe := eventSource.Subscribe(func(ev domain.Event) {
		if ev.Kind != domain.EventJobsChanged {
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	monitorService.SetAutoRefresh(true)
	defer monitorService.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			cmd.Println()
			printJobs(cmd, monitorService.Jobs())
		}
	}
}
