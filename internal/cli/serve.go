package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"plantcare/internal/app"
	logx "plantcare/pkg/logx"
)

const shutdownTimeout = 15 * time.Second

func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sweep scheduler and the HTTP API",
		Long: `Run plantcare as a long-lived service.

The auto-watering sweep runs on sweep.schedule, the JSON API listens on
http.addr when http.enabled is set, and the config file is hot-reloaded.
Under systemd (Type=notify) readiness and shutdown are reported via sd_notify.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(parent context.Context, opts *RootOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := opts.open(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open", err)
	}
	log := a.Logger()
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	notify(log, daemon.SdNotifyReady)

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}
	notify(log, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	stopErr := a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return WrapExitError(ExitFailure, "stopped on error", errors.Join(a.Err(), stopErr))
	}
	return stopErr
}

// notify is a no-op outside systemd.
func notify(log logx.Logger, state string) {
	if sent, err := daemon.SdNotify(false, state); err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
	} else if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
