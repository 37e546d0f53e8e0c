package bootstrap

import (
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/webinsight/internal/config"
	"github.com/jonesrussell/webinsight/internal/database"
	"github.com/jonesrussell/webinsight/internal/logger"
)

// SetupDatabase opens and verifies the Postgres connection pool.
func SetupDatabase(cfg *config.Config, log logger.Logger) (*sqlx.DB, error) {
	return database.Connect(cfg, log)
}
