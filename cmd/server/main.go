package main

import (
	"github.com/labstack/echo/v4"
	"github.com/solvect/activityfeed/internal/router"
	"github.com/solvect/activityfeed/pkg/config"
	"github.com/solvect/activityfeed/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	e := echo.New()
	e.HideBanner = true

	router.SetupMiddleware(e)
	if err := router.SetupRoutes(e, db.Postgres, db.Mongo, cfg); err != nil {
		logger.Log.Fatalf("Failed to set up routes: %v", err)
	}

	logger.Log.Infof("Starting server on port %s (%s)", cfg.Port, cfg.Env)
	if err := e.Start(":" + cfg.Port); err != nil {
		logger.Log.Fatalf("Server stopped: %v", err)
	}
}
