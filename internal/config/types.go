package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "2m").
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Calendar CalendarConfig `json:"calendar"`
	Sweep    SweepConfig    `json:"sweep"`
	HTTP     HTTPConfig     `json:"http"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the task/plant store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/plantcare.db" }
type StorageConfig struct {
	Driver      string `json:"driver"` // memory | file | sqlite
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite
}

// CalendarConfig fixes the reference timezone every due date is read in.
// Changing it moves timestamp-based tasks between days; date-only tasks never move.
type CalendarConfig struct {
	Timezone string `json:"timezone,omitempty"` // IANA name, default "UTC"
}

// SweepConfig controls the scheduled auto-watering sweep.
type SweepConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule,omitempty"` // cron, HH:MM interval or duration
	Timeout  string `json:"timeout,omitempty"`
	Workers  int    `json:"workers,omitempty"`
}

// HTTPConfig controls the JSON API.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8080").
//   - A non-loopback address requires a token or an explicit allow_insecure.
type HTTPConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"` // bearer token (never logged)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	// SweepRatePerMin bounds manual sweep requests; 0 uses the default.
	SweepRatePerMin int `json:"sweep_rate_per_min,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

const (
	DefaultTimezone        = "UTC"
	DefaultSweepSchedule   = "0 6 * * *"
	DefaultSweepTimeout    = "2m"
	DefaultSweepWorkers    = 4
	DefaultHTTPAddr        = "127.0.0.1:8080"
	DefaultSweepRatePerMin = 6
)

// Default is the configuration used when no file exists: in-memory storage,
// daily sweep at 06:00 UTC, API off.
func Default() *Config {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{Driver: "memory"},
		Sweep:   SweepConfig{Enabled: true},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills omitted fields in place.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = DefaultTimezone
	}
	if c.Sweep.Schedule == "" {
		c.Sweep.Schedule = DefaultSweepSchedule
	}
	if c.Sweep.Timeout == "" {
		c.Sweep.Timeout = DefaultSweepTimeout
	}
	if c.Sweep.Workers <= 0 {
		c.Sweep.Workers = DefaultSweepWorkers
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.SweepRatePerMin <= 0 {
		c.HTTP.SweepRatePerMin = DefaultSweepRatePerMin
	}
}
