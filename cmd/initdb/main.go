package main

import (
	"helpdesk_bot/internal/infra/config"
	idb "helpdesk_bot/internal/infra/database"
	"helpdesk_bot/internal/infra/logger"
)

// initdb applies the bootstrap schema. The DDL is idempotent, so re-running
// against an existing database is safe.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg.LogLevel, cfg.Environment)

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(idb.Schema); err != nil {
		logger.Log.Fatalf("Could not apply schema: %v", err)
	}
	logger.Log.Info("Database schema applied successfully.")
}
