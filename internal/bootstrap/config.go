package bootstrap

import (
	"github.com/jonesrussell/webinsight/internal/config"
	"github.com/jonesrussell/webinsight/internal/logger"
)

// LoadConfig loads the service configuration from the configured path.
func LoadConfig() (*config.Config, error) {
	return config.Load(config.GetConfigPath("config.yml"))
}

// CreateLogger builds the process logger from the loaded configuration.
func CreateLogger(cfg *config.Config, version string) (logger.Logger, error) {
	log, err := logger.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		return nil, err
	}

	return log.With(logger.String("service", "webinsight"), logger.String("version", version)), nil
}
