// Package routes builds the dependency graph and mounts the API.
package routes

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/FACorreiaa/wanderplan/internal/app/domain/catalog"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/planner"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/preferences"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/schedule"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/selection"
	"github.com/FACorreiaa/wanderplan/internal/app/domain/tours"
	"github.com/FACorreiaa/wanderplan/internal/pkg/config"
)

// Setup constructs every component and registers the routes. The dependency
// graph is linear: catalog feeds the resolver, selector and post-processor,
// the oracle feeds the planner, and the tours facade ties them together.
func Setup(r *gin.Engine, dbPool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) error {
	catalogRepo := catalog.NewRepository(dbPool, logger, cfg.Planner.CatalogQueryTimeout)
	resolver := preferences.NewResolver(catalogRepo, logger)
	selector := selection.NewSelector(catalogRepo, logger)
	processor := schedule.NewProcessor(catalogRepo, logger)

	oracle, err := planner.NewGeminiOracle(
		cfg.Gemini.APIKey,
		cfg.Gemini.Model,
		cfg.Planner.OracleTimeout,
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create oracle: %w", err)
	}
	plannerSvc := planner.NewService(oracle, logger)

	tourService := tours.NewService(
		catalogRepo,
		resolver,
		selector,
		plannerSvc,
		processor,
		oracle.Model(),
		logger,
	)
	tourHandlers := tours.NewHandlers(tourService, logger)

	api := r.Group("/api/v1")
	tourHandlers.RegisterRoutes(api)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return nil
}
