package config

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/incomeengine/internal/cadence"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EngineSettings overrides the built-in cadence of one engine.
type EngineSettings struct {
	Cadence string `mapstructure:"cadence"`
}

// EnginesConfig is keyed by engine name.
type EnginesConfig map[string]EngineSettings

// EnginesConfigHolder keeps the latest valid engines.yml and swaps it on
// file change.
type EnginesConfigHolder struct {
	current atomic.Value // holds EnginesConfig
}

// NewStaticEnginesConfig is used by tests and when no file watching is wanted.
func NewStaticEnginesConfig(cfg EnginesConfig) *EnginesConfigHolder {
	if cfg == nil {
		cfg = EnginesConfig{}
	}
	holder := &EnginesConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewEnginesConfigHolder(log *zap.Logger) (*EnginesConfigHolder, error) {
	log = log.Named("config.engines")

	v := viper.New()
	v.SetConfigName("engines")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/incomeengine")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INCOMEENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	holder := NewStaticEnginesConfig(nil)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		return holder, nil
	}

	cfg, err := decodeEnginesConfig(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeEnginesConfig(v)
		if err != nil {
			log.Warn("engines config reload rejected", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("engines config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *EnginesConfigHolder) Get() EnginesConfig {
	if h == nil {
		return EnginesConfig{}
	}
	cfg, _ := h.current.Load().(EnginesConfig)
	return cfg
}

// CadenceFor returns the configured override for name, if any.
func (h *EnginesConfigHolder) CadenceFor(name string) (cadence.Cadence, bool) {
	settings, ok := h.Get()[name]
	if !ok || strings.TrimSpace(settings.Cadence) == "" {
		return cadence.Cadence{}, false
	}
	c, err := cadence.Parse(settings.Cadence)
	if err != nil {
		return cadence.Cadence{}, false
	}
	return c, true
}

func decodeEnginesConfig(v *viper.Viper) (EnginesConfig, error) {
	cfg := EnginesConfig{}
	if err := v.UnmarshalKey("engines", &cfg); err != nil {
		return nil, err
	}
	if err := validateEnginesConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateEnginesConfig(cfg EnginesConfig) error {
	for name, settings := range cfg {
		if strings.TrimSpace(settings.Cadence) == "" {
			continue
		}
		if _, err := cadence.Parse(settings.Cadence); err != nil {
			return fmt.Errorf("engines.%s.cadence: %w", name, err)
		}
	}
	return nil
}
