package cli

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"plantcare/internal/app"
	"plantcare/internal/calendar"
	"plantcare/internal/care"
)

func NewDayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "day <date>",
		Short: "List the tasks due on a day",
		Long: `List the tasks due on a calendar day in the configured timezone.

Example:
  plantcare day 2025-04-25
  plantcare day 2025-04-25T22:30:00Z --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				tasks, err := a.Planner().GetTasksForDay(cmd.Context(), args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid day", err)
				}
				dot, err := a.Planner().GetDotForDay(cmd.Context(), args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid day", err)
				}
				if tasks == nil {
					tasks = []care.Task{}
				}
				out := map[string]any{"day": args[0], "dot": dot, "tasks": tasks}
				return emit(cmd.OutOrStdout(), opts.Format, out, func(w io.Writer) {
					fmt.Fprintf(w, "%s (%s)\n", args[0], dot)
					for _, t := range tasks {
						fmt.Fprintln(w, formatTask(t))
					}
				})
			})
		},
	}
}

func NewMonthCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "month <year> <month>",
		Short: "Show the calendar dots of a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err1 := strconv.Atoi(args[0])
			month, err2 := strconv.Atoi(args[1])
			if err1 != nil || err2 != nil {
				return WrapExitError(ExitCommandError, "year and month must be numbers", nil)
			}
			return opts.withApp(func(a *app.App) error {
				dots, err := a.Planner().GetDotsForMonth(cmd.Context(), year, time.Month(month))
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid month", err)
				}
				return emit(cmd.OutOrStdout(), opts.Format, dots, func(w io.Writer) {
					days := make([]calendar.DayKey, 0, len(dots))
					for k := range dots {
						days = append(days, k)
					}
					slices.SortFunc(days, calendar.DayKey.Compare)
					for _, d := range days {
						fmt.Fprintf(w, "%s %s\n", d, dots[d])
					}
				})
			})
		},
	}
}

func formatTask(t care.Task) string {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	return fmt.Sprintf("[%s] %s %-9s %-8s %s  (%s)", mark, t.Type.Icon(), t.Type, t.PlantID, t.Description, t.ID)
}
