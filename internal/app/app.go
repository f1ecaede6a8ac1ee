package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"plantcare/internal/calendar"
	"plantcare/internal/care"
	"plantcare/internal/config"
	"plantcare/internal/eventbus"
	"plantcare/internal/planner"
	"plantcare/internal/recurrence"
	"plantcare/internal/runtime/supervisor"
	"plantcare/internal/scheduler"
	"plantcare/internal/storage"
	"plantcare/internal/transport/httpapi"
	logx "plantcare/pkg/logx"
)

// App wires config, storage, the planner and the long-running services.
// One-shot CLI commands use Planner and Store without calling Start.
type App struct {
	cfgm *config.Manager
	boot *config.Config

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	planner *planner.Service
	sched   *scheduler.Service
	api     *httpapi.Server

	sup *supervisor.Supervisor
}

// New loads cfgPath (a missing file means defaults) and opens storage.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.LoadOrDefault()
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return build(cfgm, cfg)
}

func build(cfgm *config.Manager, cfg *config.Config) (*App, error) {
	logs, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	norm, err := calendar.LoadNormalizer(cfg.Calendar.Timezone)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	store, err := storage.Open(sc, norm, root.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}
	log.Debug("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	bus := eventbus.New()
	gen := recurrence.New(store, store, norm,
		recurrence.WithLogger(root.With(logx.String("comp", "recurrence"))),
		recurrence.WithWorkers(cfg.Sweep.Workers),
	)
	svc := planner.New(store, norm, gen, bus, root.With(logx.String("comp", "planner")))

	hc, err := mapHTTPConfig(cfg)
	if err != nil {
		_ = store.Close()
		_ = logs.Close()
		return nil, err
	}

	a := &App{
		cfgm:    cfgm,
		boot:    cfg,
		log:     log,
		logs:    logs,
		bus:     bus,
		store:   store,
		planner: svc,
		sched:   scheduler.New(mapSchedulerConfig(cfg, norm.Location().String()), root.With(logx.String("comp", "scheduler"))),
		api:     httpapi.NewServer(hc, svc, root),
	}
	if err := a.registerSweep(cfg); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) Planner() *planner.Service { return a.planner }

func (a *App) Store() storage.Store { return a.store }

func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Logger() logx.Logger { return a.log }

// Done is closed once the app supervisor stops (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) registerSweep(cfg *config.Config) error {
	timeout, err := mapSweepTimeout(cfg)
	if err != nil {
		return err
	}
	_, err = a.sched.AddSchedule(sweepScheduleName, cfg.Sweep.Schedule, timeout, a.sweepJob)
	return err
}

// sweepJob reports partial failures as a failed run so scheduler stats show them.
func (a *App) sweepJob(ctx context.Context) error {
	sum, err := a.planner.RunAutoWateringSweep(ctx)
	if err != nil {
		return err
	}
	return sum.Err()
}

// RunSweepNow triggers the scheduled sweep outside its schedule.
func (a *App) RunSweepNow(ctx context.Context) error {
	return a.sched.Trigger(ctx, sweepScheduleName)
}

// Start runs the scheduler, the API and config hot reload.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })

	a.sched.Start(a.sup.Context())
	a.api.Start(a.sup.Context())

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.logEvent(e)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch, supervisor.WithRestartBackoff(time.Second, 30*time.Second))

	a.log.Info("app started",
		logx.String("config", a.cfgm.Path()),
		logx.String("timezone", a.boot.Calendar.Timezone),
		logx.Bool("sweep", a.boot.Sweep.Enabled),
		logx.Bool("http", a.boot.HTTP.Enabled),
	)
	return nil
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogConfig(next))

	if slices.Contains(sections, "storage") || slices.Contains(sections, "calendar") {
		a.log.Warn("storage or calendar config changed; restart required for changes to take effect")
	}
	if prev.Sweep.Workers != next.Sweep.Workers {
		a.log.Warn("sweep.workers changed; restart required for changes to take effect")
	}

	if slices.Contains(sections, "sweep") {
		if err := a.registerSweep(next); err != nil {
			a.log.Warn("invalid sweep config; keeping previous", logx.Err(err))
		}
		a.sched.Apply(mapSchedulerConfig(next, a.boot.Calendar.Timezone))
	}

	if hc, err := mapHTTPConfig(next); err != nil {
		a.log.Warn("invalid http config; keeping previous", logx.Err(err))
	} else {
		a.api.Reconfigure(ctx, hc)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) logEvent(e eventbus.Event) {
	switch d := e.Data.(type) {
	case care.Task:
		a.log.Trace("event", logx.String("type", e.Type), logx.String("task", d.ID), logx.String("plant", d.PlantID), logx.String("due", d.DueDate))
	case care.TaskCompleted:
		a.log.Info("task completed", logx.String("task", d.TaskID), logx.String("plant", d.PlantID), logx.String("task_type", string(d.Type)))
	default:
		a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	}
}

// Stop shuts services down in reverse start order, then closes storage.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	start := time.Now()
	a.log.Info("app stopping", logx.String("reason", string(reason)))

	var errs []error
	a.api.Stop(ctx)
	a.sched.Stop(ctx)
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("supervisor: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	a.log.Info("app stopped", logx.Duration("took", time.Since(start)))
	_ = a.logs.Close()
	return errors.Join(errs...)
}

// Close releases storage and log files for apps that were never started.
func (a *App) Close() error {
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}
