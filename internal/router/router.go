package router

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/solvect/activityfeed/internal/handlers"
	"github.com/solvect/activityfeed/internal/middleware"
	"github.com/solvect/activityfeed/internal/models"
	"github.com/solvect/activityfeed/internal/render"
	"github.com/solvect/activityfeed/internal/repositories"
	"github.com/solvect/activityfeed/pkg/config"
	"github.com/solvect/activityfeed/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	logger.Log.Info("Global middleware configured")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, cfg *config.Config) error {
	if err := pgdb.AutoMigrate(
		&models.User{},
		&models.Activity{},
		&models.ActivityTarget{},
	); err != nil {
		return err
	}
	logger.Log.Info("PostgreSQL auto-migrations completed")

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	activityRepo := repositories.NewPostgresActivityRepository(pgdb)

	var postRepo repositories.PostRepository
	if mgClient != nil {
		postRepo = repositories.NewMongoPostRepository(mgClient.Database("activityfeed"))
	}

	// --- Renderer with about-object registry ---
	tz, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		logger.Log.WithError(err).Warnf("Unknown timezone %q, falling back to UTC", cfg.DisplayTimezone)
		tz = time.UTC
	}

	renderer, err := render.New(render.Options{
		Timezone:    tz,
		URLPrefix:   cfg.URLPrefix,
		TemplateDir: cfg.TemplateDir,
	})
	if err != nil {
		return err
	}
	renderer.Register("user", render.UserResolver(userRepo))
	if postRepo != nil {
		renderer.Register("post", render.PostResolver(postRepo))
	}

	// --- API routes; handlers decide which operations need a viewer ---
	api := e.Group(cfg.URLPrefix)
	api.Use(middleware.OptionalJWTAuthMiddleware())

	// Asset locations for host pages embedding the feed widget
	api.GET("/feed-config", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"url_prefix": cfg.URLPrefix,
			"timezone":   cfg.DisplayTimezone,
			"script":     cfg.ScriptPath,
			"style":      cfg.StylePath,
		})
	})

	activityHandler := handlers.NewActivityHandler(activityRepo, userRepo, postRepo, renderer)
	activityHandler.RegisterActivityRoutes(api)
	logger.Log.Info("Activity routes configured")

	replyHandler := handlers.NewReplyHandler(activityRepo, userRepo)
	replyHandler.RegisterReplyRoutes(api)
	logger.Log.Info("Reply routes configured")

	return nil
}
