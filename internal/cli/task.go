package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"plantcare/internal/app"
	"plantcare/internal/care"
)

func NewTaskCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, complete and delete care tasks",
	}
	cmd.AddCommand(newTaskAddCommand(opts), newTaskCompleteCommand(opts), newTaskDeleteCommand(opts))
	return cmd
}

func newTaskAddCommand(opts *RootOptions) *cobra.Command {
	var (
		d              care.TaskDraft
		typ            string
		scheduleFuture bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task",
		Long: `Create a task. With --schedule-future a water task for an auto-watered
plant also creates its next three waterings.

Example:
  plantcare task add --plant fern --type water --desc "Water Fern" --due 2025-04-06 --schedule-future`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := care.ParseTaskType(typ)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --type", err)
			}
			d.Type = t
			return opts.withApp(func(a *app.App) error {
				res, err := a.Planner().CreateTaskWithRecurrence(cmd.Context(), d, scheduleFuture)
				if err != nil && res.Created.ID == "" {
					return WrapExitError(codeFor(err), "failed to create task", err)
				}
				if perr := emit(cmd.OutOrStdout(), opts.Format, res, func(w io.Writer) {
					fmt.Fprintln(w, formatTask(res.Created))
					for _, r := range res.Recurrences {
						fmt.Fprintln(w, formatTask(r))
					}
				}); perr != nil {
					return perr
				}
				if err != nil {
					return WrapExitError(ExitFailure, "recurrences incomplete", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&d.PlantID, "plant", "", "plant id")
	cmd.Flags().StringVar(&typ, "type", "", "water|fertilize|repot|light|other")
	cmd.Flags().StringVar(&d.Description, "desc", "", "description")
	cmd.Flags().StringVar(&d.DueDate, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().BoolVar(&scheduleFuture, "schedule-future", false, "also create the next waterings")
	for _, f := range []string{"plant", "type", "desc", "due"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newTaskCompleteCommand(opts *RootOptions) *cobra.Command {
	var scheduleFuture bool
	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				res, err := a.Planner().CompleteTask(cmd.Context(), args[0], scheduleFuture)
				if err != nil && res.Completed.ID == "" {
					return WrapExitError(codeFor(err), "failed to complete task", err)
				}
				if perr := emit(cmd.OutOrStdout(), opts.Format, res, func(w io.Writer) {
					fmt.Fprintln(w, formatTask(res.Completed))
					for _, r := range res.Recurrences {
						fmt.Fprintln(w, formatTask(r))
					}
				}); perr != nil {
					return perr
				}
				if err != nil {
					return WrapExitError(ExitFailure, "recurrences incomplete", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&scheduleFuture, "schedule-future", false, "create the next waterings for a water task")
	return cmd
}

func newTaskDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				if err := a.Planner().DeleteTask(cmd.Context(), args[0]); err != nil {
					return WrapExitError(codeFor(err), "failed to delete task", err)
				}
				return emit(cmd.OutOrStdout(), opts.Format, map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "deleted %s\n", args[0])
				})
			})
		},
	}
}

func codeFor(err error) int {
	if errors.Is(err, care.ErrInvalidDate) || errors.Is(err, care.ErrInvalidTask) || errors.Is(err, care.ErrNotFound) {
		return ExitCommandError
	}
	return ExitFailure
}
