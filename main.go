package main

import (
	"github.com/gautam-divyanshu/2d-metaverse-sub001/config"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/logger"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/persistence"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/server"
)

func main() {
	// Initialize logger
	logger.Init()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize chat/space store
	store, err := persistence.NewGormStore(
		cfg.Database.Postgres.Host,
		cfg.Database.Postgres.Port,
		cfg.Database.Postgres.User,
		cfg.Database.Postgres.Password,
		cfg.Database.Postgres.DBName,
	)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	logger.Log.Info("Database connection successful.")

	// Initialize Game Server
	gameServer := server.NewGameServer(cfg, store)

	// Start Server
	logger.Log.Infof("Starting metaverse server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
