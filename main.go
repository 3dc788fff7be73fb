package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/mapform-hq/mapform-engine/pkg/config"
	"github.com/mapform-hq/mapform-engine/pkg/database"
	"github.com/mapform-hq/mapform-engine/pkg/handlers"
	"github.com/mapform-hq/mapform-engine/pkg/logging"
	"github.com/mapform-hq/mapform-engine/pkg/middleware"
	"github.com/mapform-hq/mapform-engine/pkg/repositories"
	"github.com/mapform-hq/mapform-engine/pkg/schema"
	"github.com/mapform-hq/mapform-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis", cfg.Redis.Host))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Repositories
	columnRepo := repositories.NewColumnRepository()
	cellRepo := repositories.NewCellRepository()
	geometryRepo := repositories.NewGeometryRepository()
	datasetRepo := repositories.NewDatasetRepository()
	projectRepo := repositories.NewProjectRepository()
	layerRepo := repositories.NewLayerRepository()

	// Services
	viewportCache := services.NewViewportCache(redisClient,
		time.Duration(cfg.Redis.ViewportTTLSeconds)*time.Second, logger)
	cellService := services.NewCellService(schema.NewRegistry(), columnRepo, cellRepo, viewportCache, logger)
	geometryService := services.NewGeometryService(geometryRepo, viewportCache, logger)
	datasetService := services.NewDatasetService(datasetRepo, projectRepo, layerRepo, cellService, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	engineMux := http.NewServeMux()
	engineHandler := handlers.NewEngineHandler(datasetService, geometryService, logger)
	engineHandler.RegisterRoutes(engineMux)

	scopeProvider := database.NewTeamspaceScopeProvider(db)
	mux.Handle("/projects/", middleware.TeamspaceScope(scopeProvider, logger)(engineMux))
	mux.Handle("/columns/", middleware.TeamspaceScope(scopeProvider, logger)(engineMux))

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting mapform-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
