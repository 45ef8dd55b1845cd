package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/assetdesk/internal/api/client"
	"github.com/assetdesk/internal/models"
	"github.com/spf13/cobra"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Short:   "Report schedule management commands",
		Aliases: []string{"schedules", "sch"},
	}

	// Add subcommands
	cmd.AddCommand(newScheduleListCommand())
	cmd.AddCommand(newScheduleGetCommand())
	cmd.AddCommand(newScheduleCreateCommand())
	cmd.AddCommand(newScheduleUpdateCommand())
	cmd.AddCommand(newScheduleDeleteCommand())
	cmd.AddCommand(newScheduleToggleCommand("enable", true))
	cmd.AddCommand(newScheduleToggleCommand("disable", false))
	cmd.AddCommand(newScheduleRunCommand())
	cmd.AddCommand(newScheduleRunsCommand())

	return cmd
}

func newScheduleListCommand() *cobra.Command {
	var (
		enabledOnly  bool
		disabledOnly bool
		reportType   string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List report schedules",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if enabledOnly && disabledOnly {
				return fmt.Errorf("--enabled and --disabled are mutually exclusive")
			}
			var enabled *bool
			if enabledOnly || disabledOnly {
				enabled = &enabledOnly
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			schedules, err := c.ListSchedules(enabled, reportType)
			if err != nil {
				return fmt.Errorf("failed to list schedules: %v", err)
			}

			return printSchedules(cmd.OutOrStdout(), schedules)
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Only show enabled schedules")
	cmd.Flags().BoolVar(&disabledOnly, "disabled", false, "Only show disabled schedules")
	cmd.Flags().StringVar(&reportType, "report-type", "", "Filter by report type (asset-inventory/license-compliance/assignment-report)")

	return cmd
}

func newScheduleGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [schedule_id]",
		Short: "Show a report schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			schedule, err := c.GetSchedule(args[0])
			if err != nil {
				return fmt.Errorf("failed to get schedule: %v", err)
			}

			printSchedule(cmd.OutOrStdout(), schedule)
			return nil
		},
	}
}

// scheduleFlags holds the definition flags shared by create and update.
type scheduleFlags struct {
	name       string
	reportType string
	scope      string
	frequency  string
	timeOfDay  string
	dayOfWeek  int
	dayOfMonth int
	recipients []string
	disabled   bool
}

func (f *scheduleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "Schedule name")
	cmd.Flags().StringVar(&f.reportType, "report-type", "", "Report type (asset-inventory/license-compliance/assignment-report)")
	cmd.Flags().StringVar(&f.scope, "scope", "", "Department filter (empty for all)")
	cmd.Flags().StringVar(&f.frequency, "frequency", "", "Frequency (daily/weekly/monthly/quarterly)")
	cmd.Flags().StringVar(&f.timeOfDay, "time", "", "Time of day, HH:MM")
	cmd.Flags().IntVar(&f.dayOfWeek, "day-of-week", -1, "Day of week for weekly schedules (0=Sunday)")
	cmd.Flags().IntVar(&f.dayOfMonth, "day-of-month", 0, "Day of month for monthly/quarterly schedules (1-28)")
	cmd.Flags().StringSliceVar(&f.recipients, "recipient", nil, "Recipient email address (repeatable)")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "Create the schedule disabled")
}

func (f *scheduleFlags) input() *models.ScheduleInput {
	enabled := !f.disabled
	in := &models.ScheduleInput{
		Name:       f.name,
		ReportType: models.ReportType(f.reportType),
		Scope:      f.scope,
		Frequency:  models.Frequency(f.frequency),
		TimeOfDay:  f.timeOfDay,
		Recipients: f.recipients,
		Enabled:    &enabled,
	}
	if f.dayOfWeek >= 0 {
		d := f.dayOfWeek
		in.DayOfWeek = &d
	}
	if f.dayOfMonth > 0 {
		d := f.dayOfMonth
		in.DayOfMonth = &d
	}
	return in
}

func newScheduleCreateCommand() *cobra.Command {
	var flags scheduleFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a report schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			schedule, err := c.CreateSchedule(flags.input())
			if err != nil {
				return fmt.Errorf("failed to create schedule: %v", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s created\n", schedule.ID)
			printSchedule(cmd.OutOrStdout(), schedule)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newScheduleUpdateCommand() *cobra.Command {
	var flags scheduleFlags

	cmd := &cobra.Command{
		Use:   "update [schedule_id]",
		Short: "Update a report schedule; unset flags keep their current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			current, err := c.GetSchedule(args[0])
			if err != nil {
				return fmt.Errorf("failed to get schedule: %v", err)
			}

			in := mergeInput(cmd, current, &flags)
			schedule, err := c.UpdateSchedule(args[0], in)
			if err != nil {
				return fmt.Errorf("failed to update schedule: %v", err)
			}

			printSchedule(cmd.OutOrStdout(), schedule)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// mergeInput overlays the flags the user actually set on the current definition.
func mergeInput(cmd *cobra.Command, current *models.ReportSchedule, flags *scheduleFlags) *models.ScheduleInput {
	changed := cmd.Flags().Changed
	enabled := current.Enabled

	in := &models.ScheduleInput{
		Name:       current.Name,
		ReportType: current.ReportType,
		Scope:      current.Scope,
		Frequency:  current.Frequency,
		TimeOfDay:  current.TimeOfDay,
		DayOfWeek:  current.DayOfWeek,
		DayOfMonth: current.DayOfMonth,
		Recipients: current.Recipients,
		Enabled:    &enabled,
	}

	if changed("name") {
		in.Name = flags.name
	}
	if changed("report-type") {
		in.ReportType = models.ReportType(flags.reportType)
	}
	if changed("scope") {
		in.Scope = flags.scope
	}
	if changed("frequency") {
		in.Frequency = models.Frequency(flags.frequency)
		// the day fields of the old frequency no longer apply
		in.DayOfWeek = nil
		in.DayOfMonth = nil
	}
	if changed("time") {
		in.TimeOfDay = flags.timeOfDay
	}
	if changed("day-of-week") {
		d := flags.dayOfWeek
		in.DayOfWeek = &d
	}
	if changed("day-of-month") {
		d := flags.dayOfMonth
		in.DayOfMonth = &d
	}
	if changed("recipient") {
		in.Recipients = flags.recipients
	}
	if changed("disabled") {
		enabled = !flags.disabled
	}
	return in
}

func newScheduleDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete [schedule_id]",
		Short:   "Delete a report schedule",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.DeleteSchedule(args[0]); err != nil {
				return fmt.Errorf("failed to delete schedule: %v", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s deleted\n", args[0])
			return nil
		},
	}
}

func newScheduleToggleCommand(action string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [schedule_id]",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a report schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			schedule, err := c.SetEnabled(args[0], enabled)
			if err != nil {
				return fmt.Errorf("failed to %s schedule: %v", action, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %s %sd, next run: %s\n", schedule.ID, action, formatTime(schedule.NextRun))
			return nil
		},
	}
}

func newScheduleRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run [schedule_id]",
		Short: "Run a report schedule now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			result, err := c.RunSchedule(args[0])
			if err != nil {
				return fmt.Errorf("failed to run schedule: %v", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s in %s\n", result.Outcome.Status,
				result.Outcome.FinishedAt.Sub(result.Outcome.StartedAt).Round(time.Millisecond))
			if result.Outcome.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", result.Outcome.Error)
			}
			if result.Outcome.Status == models.RunStatusFailed {
				return fmt.Errorf("run failed")
			}
			return nil
		},
	}
}

func newScheduleRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [schedule_id]",
		Short: "Show the run history of a report schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			runs, err := c.ListRuns(args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %v", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "STARTED\tTRIGGER\tSTATUS\tDURATION\tERROR")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					run.StartedAt.Format(time.RFC3339),
					run.Trigger,
					run.Status,
					run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
					run.Error,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	return cmd
}

func printSchedules(out io.Writer, schedules []models.ReportSchedule) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tREPORT\tCADENCE\tENABLED\tNEXT RUN\tLAST STATUS")
	for _, s := range schedules {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			s.ID,
			s.Name,
			s.ReportType,
			cadence(&s),
			s.Enabled,
			formatTime(s.NextRun),
			s.LastStatus,
		)
	}
	return w.Flush()
}

func printSchedule(out io.Writer, s *models.ReportSchedule) {
	scope := s.Scope
	if scope == "" {
		scope = "all departments"
	}
	fmt.Fprintf(out, "ID:          %s\n", s.ID)
	fmt.Fprintf(out, "Name:        %s\n", s.Name)
	fmt.Fprintf(out, "Report:      %s (%s)\n", s.ReportType, scope)
	fmt.Fprintf(out, "Cadence:     %s\n", cadence(s))
	fmt.Fprintf(out, "Recipients:  %s\n", strings.Join(s.Recipients, ", "))
	fmt.Fprintf(out, "Enabled:     %t\n", s.Enabled)
	fmt.Fprintf(out, "Next run:    %s\n", formatTime(s.NextRun))
	fmt.Fprintf(out, "Last run:    %s\n", formatTime(s.LastRun))
	fmt.Fprintf(out, "Last status: %s\n", s.LastStatus)
	if s.LastError != "" {
		fmt.Fprintf(out, "Last error:  %s\n", s.LastError)
	}
}

func cadence(s *models.ReportSchedule) string {
	rec, err := s.Recurrence()
	if err != nil {
		return string(s.Frequency)
	}
	switch r := rec.(type) {
	case models.Weekly:
		return fmt.Sprintf("weekly on %s at %s", r.Weekday, r.Time)
	case models.Monthly:
		return fmt.Sprintf("monthly on day %d at %s", r.Day, r.Time)
	case models.Quarterly:
		return fmt.Sprintf("quarterly on day %d at %s", r.Day, r.Time)
	default:
		return fmt.Sprintf("daily at %s", rec.At())
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04 MST")
}
