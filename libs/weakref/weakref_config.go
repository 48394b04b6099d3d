package weakref

import (
	"fmt"
	"time"

	"github.com/hypernetix/weakling/libs/config"
)

// ConfigCollector is the "collector" config section
type ConfigCollector struct {
	Passes  int `mapstructure:"passes"`
	PauseMs int `mapstructure:"pause_ms"`
}

type collectorConfig struct {
	Config ConfigCollector
}

var collectorConfigComponent = &collectorConfig{
	Config: ConfigCollector{
		Passes:  defaultCollectPasses,
		PauseMs: int(defaultCollectPause / time.Millisecond),
	},
}

func (c *collectorConfig) GetDefault() interface{} {
	return c.Config
}

func (c *collectorConfig) Load(name string, configDict map[string]interface{}) error {
	cfg := c.Config
	if err := config.UpdateStructFromConfig(&cfg, configDict); err != nil {
		return err
	}

	if cfg.Passes <= 0 {
		return fmt.Errorf("%s.passes must be positive, got %d", name, cfg.Passes)
	}
	if cfg.PauseMs < 0 {
		return fmt.Errorf("%s.pause_ms must not be negative, got %d", name, cfg.PauseMs)
	}

	SetDefaultCollector(RuntimeCollector{
		Passes: cfg.Passes,
		Pause:  time.Duration(cfg.PauseMs) * time.Millisecond,
	})
	return nil
}

func init() {
	config.RegisterConfigComponent("collector", collectorConfigComponent)
}
