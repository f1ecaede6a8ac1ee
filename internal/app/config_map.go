package app

import (
	"strings"
	"time"

	"plantcare/internal/config"
	"plantcare/internal/scheduler"
	"plantcare/internal/storage"
	"plantcare/internal/transport/httpapi"
	logx "plantcare/pkg/logx"
)

const sweepScheduleName = "auto-watering"

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, nil
}

// mapSchedulerConfig ties the trigger timezone to the calendar timezone so
// "06:00" means 06:00 on the same day the normalizer reads.
func mapSchedulerConfig(cfg *config.Config, timezone string) scheduler.Config {
	return scheduler.Config{Enabled: cfg.Sweep.Enabled, Timezone: timezone}
}

func mapSweepTimeout(cfg *config.Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("sweep.timeout", cfg.Sweep.Timeout, 2*time.Minute)
}

func mapHTTPConfig(cfg *config.Config) (httpapi.Config, error) {
	h := cfg.HTTP
	read, err := config.ParseDurationOrDefault("http.read_timeout", h.ReadTimeout, 10*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("http.write_timeout", h.WriteTimeout, 30*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("http.idle_timeout", h.IdleTimeout, 60*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Enabled:         h.Enabled,
		Addr:            strings.TrimSpace(h.Addr),
		Token:           strings.TrimSpace(h.Token),
		AllowInsecure:   h.AllowInsecure,
		SweepRatePerMin: h.SweepRatePerMin,
		ReadTimeout:     read,
		WriteTimeout:    write,
		IdleTimeout:     idle,
	}, nil
}

// validate covers checks that need packages config cannot import.
func validate(cfg *config.Config) error {
	if _, err := scheduler.ParseSchedule(cfg.Sweep.Schedule); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	_, err := mapHTTPConfig(cfg)
	return err
}
