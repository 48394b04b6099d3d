package utils

import (
	"time"

	"github.com/hypernetix/weakling/libs/config"
)

// ConfigMutex is the "mutex" config section
type ConfigMutex struct {
	Debug        bool `mapstructure:"debug"`
	WarnAfterSec int  `mapstructure:"warn_after_sec"`
}

type mutexConfig struct {
	Config ConfigMutex
}

var mutexConfigComponent = &mutexConfig{
	Config: ConfigMutex{
		Debug:        false,
		WarnAfterSec: int(defaultWarnAfterLockWait / time.Second),
	},
}

func (c *mutexConfig) GetDefault() interface{} {
	return c.Config
}

func (c *mutexConfig) Load(name string, configDict map[string]interface{}) error {
	cfg := c.Config
	if err := config.UpdateStructFromConfig(&cfg, configDict); err != nil {
		return err
	}

	SetMutexDebug(cfg.Debug)
	SetMutexDeadlockWarningDelay(time.Duration(cfg.WarnAfterSec) * time.Second)
	return nil
}

func init() {
	config.RegisterConfigComponent("mutex", mutexConfigComponent)
}
