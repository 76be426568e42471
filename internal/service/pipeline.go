package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/logger"
	"github.com/timmy/sportsclips/internal/metrics"
	"github.com/timmy/sportsclips/internal/moments"
	"github.com/timmy/sportsclips/internal/queue"
	"github.com/timmy/sportsclips/internal/repository"
	"github.com/timmy/sportsclips/internal/scoring"
)

// ErrPipelineFatal wraps failures that abort a query run.
var ErrPipelineFatal = errors.New("query run failed")

const (
	progressSearched    = 15
	progressTranscripts = 45
	progressAnalyzed    = 85
	progressRanking     = 90

	defaultRecencyDays = 7
	defaultMaxResults  = 50
	defaultTopN        = 100
)

// CandidateIndexer stores candidate vectors for similarity lookups.
type CandidateIndexer interface {
	Upsert(ctx context.Context, vector []float32, payload *repository.CandidatePayload) error
}

// PipelineConfig tunes the query run pipeline.
type PipelineConfig struct {
	TopN           int
	RecencyMaxDays int
	Moments        moments.Options
}

// PipelineDeps are the collaborators of the pipeline. Analyzer, Embedder and Index may be nil.
type PipelineDeps struct {
	Queries     *repository.QueryDefinitionRepository
	Runs        *repository.RunRepository
	Candidates  *repository.CandidateRepository
	Searcher    VideoSearcher
	Transcripts TranscriptFetcher
	Engine      *scoring.Engine
	Analyzer    Analyzer
	Embedder    scoring.Embedder
	Index       CandidateIndexer
	Metrics     *metrics.Metrics
}

// PipelineService executes query runs: search, transcript, score, moments, rank.
type PipelineService struct {
	deps PipelineDeps
	cfg  PipelineConfig
	now  func() time.Time
}

// NewPipelineService creates a PipelineService.
func NewPipelineService(deps PipelineDeps, cfg PipelineConfig) *PipelineService {
	if cfg.TopN <= 0 {
		cfg.TopN = defaultTopN
	}
	return &PipelineService{
		deps: deps,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Used by tests.
func (s *PipelineService) SetClock(now func() time.Time) {
	s.now = now
}

// QueryRunOutcome summarizes one executed query run.
type QueryRunOutcome struct {
	RunID      string
	Status     domain.RunStatus
	Progress   repository.QueryRunProgress
	Candidates []domain.Candidate
}

// videoWork carries one video through the stages.
type videoWork struct {
	video     domain.Video
	segments  []domain.TranscriptSegment
	score     float64
	breakdown domain.JSONMap
	summary   string
	moments   []moments.Moment
}

// HandleJob is the queue.Handler for query_run jobs. The job id is the run id.
func (s *PipelineService) HandleJob(ctx context.Context, job queue.Job) error {
	_, err := s.ExecuteRun(ctx, job.ID)
	return err
}

// ExecuteRun runs a QUEUED QueryRun through every stage.
// Per-video failures are counted and logged. Anything else marks the run FAILED and
// leaves earlier writes untouched.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - runID: id of the run created by the scheduler.
// Returns:
//   - *QueryRunOutcome: final status, counters and persisted candidates.
//   - error: wraps ErrPipelineFatal when the run failed.
func (s *PipelineService) ExecuteRun(ctx context.Context, runID string) (*QueryRunOutcome, error) {
	ctx = logger.SetRunID(ctx, runID)
	run, err := s.deps.Runs.GetQueryRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load query run: %w", err)
	}
	ctx = logger.WithField(ctx, logger.FieldQueryID, run.QueryDefinitionID)

	started := s.now()
	ok, err := s.deps.Runs.StartQueryRun(ctx, runID, started)
	if err != nil {
		return nil, fmt.Errorf("failed to start query run: %w", err)
	}
	if !ok {
		logger.CtxWarn(ctx, "Query run %s is no longer queued, skipping", runID)
		return &QueryRunOutcome{RunID: runID, Status: run.Status}, nil
	}

	outcome := &QueryRunOutcome{RunID: runID, Status: domain.RunStatusRunning}
	def, err := s.deps.Queries.GetByID(ctx, run.QueryDefinitionID)
	if err == nil {
		err = s.execute(ctx, run, def, outcome)
	} else {
		err = fmt.Errorf("%w: query definition not found: %v", ErrPipelineFatal, err)
	}

	done := s.now()
	if err != nil {
		outcome.Status = domain.RunStatusFailed
		if ferr := s.deps.Runs.FailQueryRun(ctx, runID, err.Error(), done); ferr != nil {
			logger.FromContext(ctx).WithError(ferr).Error("Failed to mark query run failed")
		}
		s.deps.Metrics.QueryRun(string(domain.RunStatusFailed), started)
		logger.With(logger.Fields{"failed_items": outcome.Progress.FailedItems}).
			WithDuration(started).WithStatus(string(domain.RunStatusFailed)).
			Error(ctx, "Query run failed: %v", err)
		return outcome, err
	}

	outcome.Status = domain.RunStatusSucceeded
	if err := s.deps.Runs.CompleteQueryRun(ctx, runID, done); err != nil {
		if errors.Is(err, repository.ErrRunNotRunning) {
			logger.FromContext(ctx).WithField("candidates", outcome.Progress.CandidatesProduced).
				Warn("Query run was reaped before it finished")
			outcome.Status = domain.RunStatusFailed
		}
		return outcome, fmt.Errorf("failed to complete query run: %w", err)
	}
	if err := s.deps.Queries.MarkRan(ctx, def.ID, done); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record last run time")
	}
	s.deps.Metrics.QueryRun(string(domain.RunStatusSucceeded), started)

	logger.With(logger.Fields{
		"videos_fetched":      outcome.Progress.VideosFetched,
		"transcripts_fetched": outcome.Progress.TranscriptsFetched,
		"candidates":          outcome.Progress.CandidatesProduced,
		"failed_items":        outcome.Progress.FailedItems,
	}).WithDuration(started).WithStatus(string(domain.RunStatusSucceeded)).Info(ctx, "Query run completed")
	logger.Audit(ctx, "query_run.succeeded", logger.Fields{"run_id": runID, "query_id": def.ID})
	return outcome, nil
}

func (s *PipelineService) execute(ctx context.Context, run *domain.QueryRun, def *domain.QueryDefinition, outcome *QueryRunOutcome) error {
	p := &outcome.Progress

	// Stage 1: search
	videos, err := s.search(ctx, def)
	if err != nil {
		return fmt.Errorf("%w: video search: %v", ErrPipelineFatal, err)
	}
	p.VideosFetched = len(videos)
	s.progress(ctx, run.ID, p, progressSearched, fmt.Sprintf("Found %d videos", len(videos)))

	// Stage 2: persist videos and fetch transcripts
	work := make([]*videoWork, 0, len(videos))
	for i := range videos {
		v := videos[i]
		if err := s.deps.Candidates.UpsertVideo(ctx, &v); err != nil {
			p.FailedItems++
			logger.FromContext(ctx).WithError(err).WithField("video_id", v.YouTubeID).Warn("Failed to store video")
			continue
		}
		w := &videoWork{video: v}
		w.segments = s.transcript(ctx, &v)
		if len(w.segments) > 0 {
			p.TranscriptsFetched++
		}
		work = append(work, w)
		s.progress(ctx, run.ID, p, interpolate(progressSearched, progressTranscripts, i+1, len(videos)),
			fmt.Sprintf("Fetched transcripts %d/%d", i+1, len(videos)))
	}

	// Stage 3 and 4: analysis and moments
	for i, w := range work {
		s.analyze(ctx, def, w)
		p.VideosProcessed++
		s.progress(ctx, run.ID, p, interpolate(progressTranscripts, progressAnalyzed, i+1, len(work)),
			fmt.Sprintf("Analyzed %d/%d videos", i+1, len(work)))
	}

	// Stage 5: rank and persist
	s.progress(ctx, run.ID, p, progressRanking, "Ranking candidates")
	sort.SliceStable(work, func(i, j int) bool { return work[i].score > work[j].score })
	topN := def.TopN
	if topN <= 0 || topN > s.cfg.TopN {
		topN = s.cfg.TopN
	}
	if len(work) > topN {
		work = work[:topN]
	}

	candidates := make([]domain.Candidate, 0, len(work))
	for _, w := range work {
		video := w.video
		candidates = append(candidates, domain.Candidate{
			OrgID:          def.OrgID,
			VideoID:        video.ID,
			QueryRunID:     run.ID,
			Sport:          def.Sport,
			RelevanceScore: w.score,
			ScoreBreakdown: w.breakdown,
			AISummary:      w.summary,
			Video:          &video,
			Moments:        moments.ToDomain(w.moments),
		})
	}
	if err := s.deps.Candidates.CreateCandidates(ctx, candidates); err != nil {
		return fmt.Errorf("%w: store candidates: %v", ErrPipelineFatal, err)
	}
	p.CandidatesProduced = len(candidates)
	outcome.Candidates = candidates
	s.index(ctx, candidates)
	s.progress(ctx, run.ID, p, progressRanking, fmt.Sprintf("Stored %d candidates", len(candidates)))
	return nil
}

func (s *PipelineService) search(ctx context.Context, def *domain.QueryDefinition) ([]domain.Video, error) {
	recency := def.RecencyDays
	if recency <= 0 {
		recency = defaultRecencyDays
	}
	maxResults := def.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	req := SearchRequest{
		Query:          BuildSearchQuery(def.Sport, def.Keywords),
		PublishedAfter: s.now().AddDate(0, 0, -recency),
		MaxResults:     maxResults,
	}

	if len(def.ChannelIDs) == 0 {
		return s.deps.Searcher.Search(ctx, req)
	}

	seen := make(map[string]bool)
	var merged []domain.Video
	for _, channel := range def.ChannelIDs {
		req.ChannelID = channel
		videos, err := s.deps.Searcher.Search(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", channel, err)
		}
		for _, v := range videos {
			if seen[v.YouTubeID] {
				continue
			}
			seen[v.YouTubeID] = true
			merged = append(merged, v)
		}
	}
	return merged, nil
}

// transcript is a soft step: failures only reduce the signal available to scoring.
func (s *PipelineService) transcript(ctx context.Context, v *domain.Video) []domain.TranscriptSegment {
	if s.deps.Transcripts == nil {
		return nil
	}
	segs, err := s.deps.Transcripts.Fetch(ctx, v.YouTubeID)
	if err != nil {
		if !errors.Is(err, ErrNoTranscript) {
			logger.FromContext(ctx).WithError(err).WithField("video_id", v.YouTubeID).Warn("Transcript fetch failed")
		}
		return nil
	}
	if !v.HasTranscript {
		if err := s.deps.Candidates.MarkTranscript(ctx, v.ID); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to flag transcript")
		}
		v.HasTranscript = true
	}
	return segs
}

func (s *PipelineService) analyze(ctx context.Context, def *domain.QueryDefinition, w *videoWork) {
	keywords := []string(def.Keywords)
	in := scoring.Input{
		Transcript:  domain.TranscriptText(w.segments),
		Title:       w.video.Title,
		Description: w.video.Description,
		PublishedAt: w.video.PublishedAt,
		ViewCount:   w.video.ViewCount,
		LikeCount:   w.video.LikeCount,
	}

	var ai *Analysis
	if def.UseAI && s.deps.Analyzer != nil && len(w.segments) > 0 {
		a, err := s.deps.Analyzer.Analyze(ctx, AnalysisRequest{
			Sport:       def.Sport,
			Keywords:    keywords,
			Title:       w.video.Title,
			Description: w.video.Description,
			Segments:    w.segments,
		})
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("video_id", w.video.YouTubeID).Warn("AI analysis failed, using heuristics")
		} else {
			ai = a
		}
	}

	var heuristic float64
	var breakdown scoring.Breakdown
	if in.Transcript != "" {
		heuristic, breakdown = s.deps.Engine.Score(ctx, in, keywords, def.Sport, def.UseEmbeddings, scoring.DefaultWeights())
	} else {
		heuristic, breakdown = scoring.MetadataScore(in, keywords, s.now(), s.cfg.RecencyMaxDays)
	}

	bd := domain.JSONMap(breakdown.Map())
	bd["has_transcript"] = in.Transcript != ""
	var aiMoments []moments.Moment
	var aiRelevance *float64
	if ai != nil {
		aiRelevance = ai.Relevance
		if ai.Relevance != nil {
			bd["ai_relevance"] = *ai.Relevance
		}
		w.summary = ai.Summary
		aiMoments = ai.KeyMoments
	}
	w.score = scoring.Combine(heuristic, aiRelevance)
	bd["final"] = w.score
	w.breakdown = bd
	w.moments = moments.Derive(aiMoments, w.segments, keywords, s.cfg.Moments)
}

// index is best effort: a candidate without a vector is still a candidate.
func (s *PipelineService) index(ctx context.Context, candidates []domain.Candidate) {
	if s.deps.Index == nil || s.deps.Embedder == nil {
		return
	}
	for _, c := range candidates {
		text := c.Video.Title
		if c.AISummary != "" {
			text += ". " + c.AISummary
		} else {
			text += ". " + c.Video.Description
		}
		vector, err := s.deps.Embedder.Embed(ctx, text)
		if err == nil {
			err = s.deps.Index.Upsert(ctx, vector, &repository.CandidatePayload{
				CandidateID:    c.ID,
				VideoID:        c.VideoID,
				QueryRunID:     c.QueryRunID,
				Sport:          c.Sport,
				Title:          c.Video.Title,
				RelevanceScore: c.RelevanceScore,
			})
		}
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("candidate_id", c.ID).Warn("Failed to index candidate")
		}
	}
}

func (s *PipelineService) progress(ctx context.Context, runID string, p *repository.QueryRunProgress, pct int, message string) {
	p.Progress = pct
	p.Message = message
	if err := s.deps.Runs.UpdateQueryRunProgress(ctx, runID, *p); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to write progress")
	}
}

func interpolate(from, to, done, total int) int {
	if total <= 0 {
		return to
	}
	return from + (to-from)*done/total
}
