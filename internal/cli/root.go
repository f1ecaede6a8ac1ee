// Package cli implements the plantcare command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"plantcare/internal/app"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config string
	Format string // "json" | "text"

	// open builds the app; tests override it.
	open func(path string) (*app.App, error)
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{open: app.New}

	cmd := &cobra.Command{
		Use:   "plantcare",
		Short: "Plant care task scheduling",
		Long:  "Schedules plant care tasks, answers per-day calendar queries and generates recurring waterings.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "./plantcare.yaml", "path to config (yaml or json); missing means defaults")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewDayCommand(opts))
	cmd.AddCommand(NewMonthCommand(opts))
	cmd.AddCommand(NewPlantCommand(opts))
	cmd.AddCommand(NewTaskCommand(opts))
	return cmd
}

// withApp opens the app for a one-shot command and always closes it.
func (o *RootOptions) withApp(fn func(a *app.App) error) error {
	a, err := o.open(o.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open", err)
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}
