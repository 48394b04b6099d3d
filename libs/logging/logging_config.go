package logging

import (
	"github.com/hypernetix/weakling/libs/config"
)

type mainLoggingConfig struct {
	Config config.ConfigLogging
}

var mainLoggerConfig = &mainLoggingConfig{
	Config: config.ConfigLogging{
		ConsoleLevel: "info",
		FileLevel:    "none",
		File:         "",
		MaxSizeMB:    100,
		MaxBackups:   3,
		MaxAgeDays:   7,
	},
}

func (l *mainLoggingConfig) GetDefault() interface{} {
	return l.Config
}

func (l *mainLoggingConfig) Load(name string, configDict map[string]interface{}) error {
	cfg := l.Config
	if err := config.UpdateStructFromConfig(&cfg, configDict); err != nil {
		return err
	}

	// the sinks are changed in place so that loggers derived before the
	// config load follow
	fileLevel := levelOrForced(stringToLevel(cfg.FileLevel))
	MainLogger.SetConsoleLogLevel(levelOrForced(stringToLevel(cfg.ConsoleLevel)))
	MainLogger.SetFileLogLevel(fileLevel)
	if cfg.File != "" && fileLevel != NoneLevel {
		MainLogger.SetLogFile(resolveLogFilePath(cfg.File), cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	} else {
		MainLogger.SetLogFile("", 0, 0, 0)
	}
	MainLogger.Debug("Main logger initialized")

	return nil
}

func init() {
	config.RegisterLogger("main", mainLoggerConfig)
}
