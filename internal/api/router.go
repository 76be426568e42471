// Package api wires the HTTP surface of the service.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/timmy/sportsclips/internal/api/handler"
	"github.com/timmy/sportsclips/internal/api/middleware"
	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/schedule"
	"github.com/timmy/sportsclips/internal/service"
	"github.com/timmy/sportsclips/internal/source/registry"
)

// Dependencies are the collaborators the handlers need.
type Dependencies struct {
	DB         *gorm.DB
	Registry   *registry.Registry
	Sources    *repository.SourceRepository
	Queries    *repository.QueryDefinitionRepository
	Runs       *repository.RunRepository
	News       *repository.NewsRepository
	Candidates *repository.CandidateRepository
	Matches    *repository.ClipMatchRepository
	Scheduler  *schedule.Scheduler
	Pairing    *service.PairingService
	Search     *service.SearchService
	Gatherer   prometheus.Gatherer // nil serves the default registry
	Logger     *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(deps Dependencies, cfg *config.ServerConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(deps.Logger))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(deps.DB)
	adapterHandler := handler.NewAdapterHandler(deps.Registry)
	sourceHandler := handler.NewSourceHandler(deps.Registry, deps.Sources, deps.Runs, deps.Scheduler, cfg.OrgID)
	queryHandler := handler.NewQueryHandler(deps.Queries, deps.Runs, deps.Candidates, deps.Scheduler, cfg.OrgID)
	newsHandler := handler.NewNewsHandler(deps.News, deps.Matches, deps.Pairing)
	searchHandler := handler.NewSearchHandler(deps.Search)
	schedulerHandler := handler.NewSchedulerHandler(deps.Scheduler)

	// Health check
	r.GET("/health", healthHandler.Health)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Adapters
		v1.GET("/adapters", adapterHandler.List)
		v1.POST("/adapters/:type/validate", adapterHandler.Validate)

		// Sources
		v1.POST("/sources", sourceHandler.Create)
		v1.GET("/sources", sourceHandler.List)
		v1.GET("/sources/:id", sourceHandler.Get)
		v1.PATCH("/sources/:id/status", sourceHandler.UpdateStatus)
		v1.POST("/sources/:id/fetch", sourceHandler.Fetch)
		v1.GET("/sources/:id/runs", sourceHandler.Runs)
		v1.GET("/sources/:id/news", newsHandler.List)

		// Query definitions and runs
		v1.POST("/queries", queryHandler.Create)
		v1.GET("/queries", queryHandler.List)
		v1.POST("/queries/:id/run", queryHandler.Run)
		v1.GET("/queries/:id/runs", queryHandler.Runs)
		v1.GET("/query-runs/:id", queryHandler.GetRun)
		v1.GET("/query-runs/:id/candidates", queryHandler.RunCandidates)

		// Candidates
		v1.GET("/candidates/search", searchHandler.SearchCandidates)
		v1.GET("/candidates/:id", queryHandler.GetCandidate)
		v1.PATCH("/candidates/:id/status", queryHandler.UpdateCandidateStatus)

		// News pairing
		v1.POST("/news/pair-pending", newsHandler.PairPending)
		v1.PATCH("/news/:id", newsHandler.Enrich)
		v1.POST("/news/:id/pair", newsHandler.Pair)
		v1.GET("/news/:id/matches", newsHandler.Matches)

		// Scheduler
		v1.POST("/scheduler/tick", schedulerHandler.Tick)
	}

	return r
}
