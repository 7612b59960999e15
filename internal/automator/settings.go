package automator

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/cadence/internal/config"
	"github.com/xkilldash9x/cadence/internal/store"
)

// Settings are the user-tunable pacing values persisted in the store.
type Settings struct {
	WaitTime   int `json:"waitTime" yaml:"waitTime"`
	RandomTime int `json:"randomTime" yaml:"randomTime"`
	LogLevel   int `json:"logLevel" yaml:"logLevel"`
}

// WaitMs and RandomMs let Settings act as the sleeper's default wait.
func (s Settings) WaitMs() int   { return s.WaitTime }
func (s Settings) RandomMs() int { return s.RandomTime }

// DefaultSettings derives settings from configured defaults.
func DefaultSettings(cfg config.AutomatorConfig) Settings {
	return Settings{WaitTime: cfg.WaitTimeMs, RandomTime: cfg.RandomTimeMs, LogLevel: cfg.LogLevel}
}

// SettingKeys lists the store keys a user may set.
var SettingKeys = []string{store.KeyWaitTime, store.KeyRandomTime, store.KeyLogLevel}

// LoadSettings reads each setting from s, falling back to def per key.
func LoadSettings(ctx context.Context, s store.Store, def Settings) (Settings, error) {
	var out Settings
	var err error
	if out.WaitTime, err = store.GetOr(ctx, s, store.KeyWaitTime, def.WaitTime); err != nil {
		return def, err
	}
	if out.RandomTime, err = store.GetOr(ctx, s, store.KeyRandomTime, def.RandomTime); err != nil {
		return def, err
	}
	if out.LogLevel, err = store.GetOr(ctx, s, store.KeyLogLevel, def.LogLevel); err != nil {
		return def, err
	}
	return out, nil
}

// SaveSetting validates and writes a single setting.
func SaveSetting(ctx context.Context, s store.Store, key string, value int) error {
	known := false
	for _, k := range SettingKeys {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return &ValidationError{Reason: fmt.Sprintf("unknown setting %q", key)}
	}
	if value < 0 {
		return &ValidationError{Reason: fmt.Sprintf("setting %q must not be negative", key)}
	}
	return s.Set(ctx, key, value)
}
