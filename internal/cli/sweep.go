package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"plantcare/internal/app"
)

func NewSweepCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one auto-watering sweep now",
		Long: `Create the next watering task for every auto-watered plant that has no
pending watering on its computed day. With the file driver this fails while
"plantcare serve" holds the store. Exits 1 when any plant failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				sum, err := a.Planner().RunAutoWateringSweep(cmd.Context())
				if err != nil {
					return WrapExitError(ExitCommandError, "sweep failed", err)
				}
				if err := emit(cmd.OutOrStdout(), opts.Format, sum, func(w io.Writer) {
					fmt.Fprintln(w, sum.String())
					for _, t := range sum.Created {
						fmt.Fprintf(w, "  + %s %s %s\n", t.DueDate, t.PlantID, t.Description)
					}
					for _, f := range sum.Failures {
						fmt.Fprintf(w, "  ! %s\n", f.Error())
					}
				}); err != nil {
					return err
				}
				if err := sum.Err(); err != nil {
					return WrapExitError(ExitFailure, "sweep incomplete", err)
				}
				return nil
			})
		},
	}
}
