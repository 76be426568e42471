// Package app assembles the service graph shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/matching"
	"github.com/timmy/sportsclips/internal/metrics"
	"github.com/timmy/sportsclips/internal/moments"
	"github.com/timmy/sportsclips/internal/queue"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/schedule"
	"github.com/timmy/sportsclips/internal/scoring"
	"github.com/timmy/sportsclips/internal/service"
	"github.com/timmy/sportsclips/internal/source"
	"github.com/timmy/sportsclips/internal/source/registry"
	"github.com/timmy/sportsclips/internal/storage"
)

// App holds every long-lived collaborator.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Registry *registry.Registry
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Sources    *repository.SourceRepository
	Queries    *repository.QueryDefinitionRepository
	Runs       *repository.RunRepository
	News       *repository.NewsRepository
	Candidates *repository.CandidateRepository
	Matches    *repository.ClipMatchRepository

	Queue     queue.Queue
	Scheduler *schedule.Scheduler
	Fetch     *service.FetchService
	Pipeline  *service.PipelineService
	Pairing   *service.PairingService
	Search    *service.SearchService

	closers []func() error
}

// New opens the database, runs migrations and wires repositories and services.
// Optional backends (Redis, Qdrant, object storage, embeddings, analysis) are only
// created when enabled in cfg.
// Parameters:
//   - ctx: context for startup calls such as collection creation.
//   - cfg: loaded configuration.
// Returns:
//   - *App: assembled application; call Close when done.
//   - error: non-nil if a required backend cannot be initialized.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(promRegistry)
	a.Gatherer = promRegistry

	a.Sources = repository.NewSourceRepository(db)
	a.Queries = repository.NewQueryDefinitionRepository(db)
	a.Runs = repository.NewRunRepository(db)
	a.News = repository.NewNewsRepository(db)
	a.Candidates = repository.NewCandidateRepository(db)
	a.Matches = repository.NewClipMatchRepository(db)

	a.Registry = registry.New(registry.Options{
		ESPNBaseURL:       cfg.Sources.ESPNBaseURL,
		DraftKingsBaseURL: cfg.Sources.DraftKingsBaseURL,
		SportsGridBaseURL: cfg.Sources.SportsGridBaseURL,
		RenderURL:         cfg.Sources.RenderURL,
		RenderToken:       cfg.Sources.RenderToken,
		Clock:             source.SystemClock,
	})

	if err := a.initQueue(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Scheduler = schedule.New(a.Sources, a.Queries, a.Runs, a.Queue, a.Metrics, schedule.Config{
		TickInterval:    cfg.Scheduler.TickInterval,
		StaleRunTimeout: cfg.Scheduler.StaleRunTimeout,
		ManualCooldown:  cfg.Scheduler.ManualCooldown,
	})
	if n, err := a.Scheduler.RequeueOrphans(ctx); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to requeue queued runs")
	} else if n > 0 {
		logger.CtxInfo(ctx, "Requeued %d runs left QUEUED by a previous process", n)
	}
	a.Fetch = service.NewFetchService(a.Registry, a.Sources, a.Runs, a.News, a.Metrics)

	if err := a.initPipeline(ctx); err != nil {
		a.Close()
		return nil, err
	}

	matcher := matching.NewMatcher(
		matching.WithEntityMatcher(matching.MatcherByName(cfg.Matching.Strategy)),
		matching.WithThreshold(cfg.Matching.Threshold),
		matching.WithMaxMatches(cfg.Matching.MaxMatches),
	)
	a.Pairing = service.NewPairingService(a.News, a.Candidates, a.Matches, matcher, a.Metrics, service.PairingConfig{
		PoolSize:      cfg.Matching.PoolSize,
		MinImportance: cfg.Matching.MinImportance,
		PendingLimit:  cfg.Matching.PendingLimit,
	})
	return a, nil
}

func (a *App) initQueue(ctx context.Context) error {
	cfg := a.Config.Redis
	if !cfg.Enabled {
		a.Queue = queue.NewMemoryQueue()
		a.closers = append(a.closers, a.Queue.Close)
		logger.CtxInfo(ctx, "Using in-process job queue")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	a.Queue = queue.NewRedisQueue(client, queue.RedisOptions{JobTTL: cfg.JobTTL})
	a.closers = append(a.closers, a.Queue.Close)
	logger.CtxInfo(ctx, "Using Redis job queue at %s", cfg.Addr)
	return nil
}

func (a *App) initPipeline(ctx context.Context) error {
	cfg := a.Config

	// Optional collaborators stay untyped nil when disabled so interface checks work.
	var embedder scoring.Embedder
	if svc := service.NewEmbeddingService(&cfg.Embedding); svc != nil {
		embedder = svc
		logger.CtxInfo(ctx, "Embeddings enabled: model=%s, dimensions=%d", svc.GetModel(), svc.Dimensions())
	}

	analyzer, err := service.NewAnalyzer(&cfg.Analysis)
	if err != nil {
		return err
	}

	var index *repository.CandidateIndex
	var indexer service.CandidateIndexer
	var searcher service.VectorSearcher
	if cfg.Qdrant.Enabled {
		index, err = repository.NewCandidateIndex(&repository.QdrantConnectionConfig{
			Host:            cfg.Qdrant.Host,
			Port:            cfg.Qdrant.Port,
			Collection:      cfg.Qdrant.Collection,
			APIKey:          cfg.Qdrant.APIKey,
			UseTLS:          cfg.Qdrant.UseTLS,
			VectorDimension: cfg.Embedding.Dimensions,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Qdrant: %w", err)
		}
		a.closers = append(a.closers, index.Close)
		if err := index.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("failed to ensure Qdrant collection: %w", err)
		}
		searcher = index
		if cfg.Pipeline.IndexCandidates {
			indexer = index
		}
	}

	var transcripts service.TranscriptFetcher = service.NewTranscriptClient(&cfg.Transcript)
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(&cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		if err := store.Prepare(ctx); err != nil {
			return fmt.Errorf("failed to prepare transcript storage: %w", err)
		}
		transcripts = service.NewArchivedTranscripts(storage.NewTranscriptArchive(store), transcripts)
	}

	a.Pipeline = service.NewPipelineService(service.PipelineDeps{
		Queries:     a.Queries,
		Runs:        a.Runs,
		Candidates:  a.Candidates,
		Searcher:    service.NewYouTubeClient(&cfg.YouTube),
		Transcripts: transcripts,
		Engine:      scoring.NewEngine(embedder, cfg.Pipeline.RecencyMaxDays),
		Analyzer:    analyzer,
		Embedder:    embedder,
		Index:       indexer,
		Metrics:     a.Metrics,
	}, service.PipelineConfig{
		TopN:           cfg.Pipeline.TopN,
		RecencyMaxDays: cfg.Pipeline.RecencyMaxDays,
		Moments: moments.Options{
			MaxMoments:     cfg.Pipeline.MaxMoments,
			ChunkSeconds:   cfg.Pipeline.ChunkSeconds,
			OverlapSeconds: cfg.Pipeline.OverlapSeconds,
			ChunkMaxChars:  cfg.Pipeline.ChunkMaxChars,
			GapSeconds:     cfg.Pipeline.GapSeconds,
			MaxDuration:    cfg.Pipeline.MaxMomentSecs,
		},
	})
	a.Search = service.NewSearchService(searcher, embedder, a.Candidates)
	return nil
}

// Workers builds a pool that executes fetch and query runs from the queue.
func (a *App) Workers() *queue.Pool {
	pool := queue.NewPool(a.Queue)
	pool.Register(queue.KindSourceFetch, a.Config.Workers.FetchConcurrency, a.Fetch.HandleJob)
	pool.Register(queue.KindQueryRun, a.Config.Workers.QueryConcurrency, a.Pipeline.HandleJob)
	return pool
}

// Close releases backends in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.FromContext(context.Background()).WithError(err).Warn("Failed to close resource")
		}
	}
	a.closers = nil
}
