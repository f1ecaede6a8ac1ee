package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"plantcare/internal/app"
	"plantcare/internal/care"
)

func NewPlantCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plant",
		Short: "Manage the plant directory",
	}
	cmd.AddCommand(newPlantPutCommand(opts), newPlantListCommand(opts))
	return cmd
}

func newPlantPutCommand(opts *RootOptions) *cobra.Command {
	var p care.Plant
	cmd := &cobra.Command{
		Use:   "put <id>",
		Short: "Create or replace a plant",
		Long: `Create or replace a plant.

Example:
  plantcare plant put fern --name Fern --every 5 --last-watered 2025-04-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.ID = args[0]
			if p.WateringFrequencyDays < 0 {
				return WrapExitError(ExitCommandError, "--every must be >= 0", nil)
			}
			return opts.withApp(func(a *app.App) error {
				if p.LastWateredDate != "" {
					if _, err := a.Planner().Normalizer().Normalize(p.LastWateredDate); err != nil {
						return WrapExitError(ExitCommandError, "invalid --last-watered", err)
					}
				}
				if err := a.Store().PutPlant(cmd.Context(), p); err != nil {
					return WrapExitError(ExitCommandError, "failed to save plant", err)
				}
				return emit(cmd.OutOrStdout(), opts.Format, p, func(w io.Writer) {
					fmt.Fprintf(w, "saved %s\n", p.DisplayName())
				})
			})
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "display name")
	cmd.Flags().IntVar(&p.WateringFrequencyDays, "every", 0, "watering frequency in days (0 disables auto-watering)")
	cmd.Flags().StringVar(&p.LastWateredDate, "last-watered", "", "last watering date (YYYY-MM-DD or RFC3339)")
	return cmd
}

func newPlantListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				plants, err := a.Store().ListPlants(cmd.Context())
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list plants", err)
				}
				if plants == nil {
					plants = []care.Plant{}
				}
				return emit(cmd.OutOrStdout(), opts.Format, plants, func(w io.Writer) {
					for _, p := range plants {
						every := "-"
						if p.AutoWatering() {
							every = fmt.Sprintf("%dd", p.WateringFrequencyDays)
						}
						fmt.Fprintf(w, "%-12s %-16s every %-4s last %s\n", p.ID, p.DisplayName(), every, p.LastWateredDate)
					}
				})
			})
		},
	}
}
