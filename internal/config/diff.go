package config

import (
	"strings"

	logx "plantcare/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured fields for logging. Tokens are never included, only whether one
// is set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		// Storage is opened once; a change only takes effect on restart.
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}

	if strings.TrimSpace(oldCfg.Calendar.Timezone) != strings.TrimSpace(newCfg.Calendar.Timezone) {
		changed = append(changed, "calendar")
		attrs = append(attrs, logx.String("calendar.timezone", newCfg.Calendar.Timezone))
	}

	if oldCfg.Sweep != newCfg.Sweep {
		changed = append(changed, "sweep")
		attrs = append(attrs,
			logx.Bool("sweep.enabled", newCfg.Sweep.Enabled),
			logx.String("sweep.schedule", newCfg.Sweep.Schedule),
			logx.String("sweep.timeout", newCfg.Sweep.Timeout),
			logx.Int("sweep.workers", newCfg.Sweep.Workers),
		)
	}

	if httpChanged(oldCfg.HTTP, newCfg.HTTP) {
		changed = append(changed, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Bool("http.token_set", strings.TrimSpace(newCfg.HTTP.Token) != ""),
			logx.Bool("http.allow_insecure", newCfg.HTTP.AllowInsecure),
			logx.Int("http.sweep_rate_per_min", newCfg.HTTP.SweepRatePerMin),
		)
	}
	return changed, attrs
}

// httpChanged compares everything but reports a token rotation as a change
// without exposing either value.
func httpChanged(a, b HTTPConfig) bool {
	tokenRotated := a.Token != b.Token
	a.Token, b.Token = "", ""
	return tokenRotated || a != b
}
