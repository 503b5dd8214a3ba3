// Package service provides the core business service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/warden/internal/adapters/mq/queue"
	workerpool "github.com/okian/warden/internal/adapters/mq/worker"
	"github.com/okian/warden/internal/adapters/modelstore"
	"github.com/okian/warden/internal/adapters/repository"
	"github.com/okian/warden/internal/domain/behaviour"
	"github.com/okian/warden/internal/domain/classifier"
	"github.com/okian/warden/internal/domain/dedupe"
	"github.com/okian/warden/internal/domain/evbattery"
	"github.com/okian/warden/internal/domain/feature"
	"github.com/okian/warden/internal/domain/model"
	"github.com/okian/warden/internal/domain/scoring"
	"github.com/okian/warden/pkg/logger"
	"github.com/okian/warden/pkg/metrics"
)

// Service wires the scoring pipeline, signal store and ingest workers behind
// the API dependency bundle.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	scoreIndex *repository.ScoreIndex
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	scorer     *scoring.Scorer
	evScorer   *evbattery.Scorer
	workerPool *workerpool.Pool

	// Configuration
	dbPath      string
	modelPath   string
	evModelPath string
	windowDays  int
	maxEvents   int
	workerCount int
	queueSize   int
	dedupeSize  int

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDBPath sets the SQLite database path. Empty keeps the in-memory store.
func WithDBPath(path string) Option {
	return func(s *Service) { s.dbPath = path }
}

// WithModelPath sets the predictive model artifact path.
func WithModelPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.modelPath = path
		}
	}
}

// WithEVModelPath sets the EV battery model artifact path.
func WithEVModelPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.evModelPath = path
		}
	}
}

// WithBehaviourWindow sets the behaviour signal window.
func WithBehaviourWindow(days, maxEvents int) Option {
	return func(s *Service) {
		if days > 0 {
			s.windowDays = days
		}
		if maxEvents > 0 {
			s.maxEvents = maxEvents
		}
	}
}

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the telemetry queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithStore injects a prebuilt store; used by tests.
func WithStore(store repository.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		modelPath:   "data/predictive_model.json",
		evModelPath: "data/ev_battery_model.json",
		windowDays:  behaviour.DefaultWindowDays,
		maxEvents:   behaviour.DefaultMaxEvents,
		workerCount: runtime.NumCPU() * 2,
		queueSize:   10000,
		dedupeSize:  100000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting risk service...")

	if s.store == nil {
		if s.dbPath != "" {
			store, err := repository.NewSQLiteStore(ctx, s.dbPath)
			if err != nil {
				return err
			}
			s.store = store
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.dbPath))
		} else {
			s.store = repository.NewMemoryStore()
			s.logger.Info(ctx, "using in-memory store")
		}
	}
	s.scoreIndex = repository.NewScoreIndex()
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
	)

	builder := feature.NewBuilder(s.store, s.store, s.store,
		feature.WithNudgeReader(s.store),
		feature.WithPeerReviewReader(s.store),
		feature.WithSearchReader(s.store),
		feature.WithDegradeHook(func(source string) {
			metrics.RecordSignalReadFailure(source)
			s.logger.Warn(ctx, "signal read degraded to defaults", logger.String("source", source))
		}),
	)
	cls := classifier.New(s.modelPath, modelstore.Load(feature.Names))
	adjuster := behaviour.NewAdjuster(s.store,
		behaviour.WithWindowDays(s.windowDays),
		behaviour.WithMaxEvents(s.maxEvents),
	)
	s.scorer = scoring.New(builder, cls, adjuster, s.store,
		scoring.WithLogger(s.logger.Named("scoring")),
	)
	s.evScorer = evbattery.NewScorer(
		classifier.New(s.evModelPath, modelstore.Load(evbattery.FeatureNames)),
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.deduper, s.store,
		workerpool.WithRescorer(rescoreFunc(func(ctx context.Context, userID, warrantyID string) {
			s.Rescore(ctx, userID, warrantyID)
		})),
	)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "risk service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("modelPath", s.modelPath),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping risk service...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}
	if s.store != nil {
		_ = s.store.Close()
	}

	s.started = false
	s.logger.Info(ctx, "risk service stopped")
}

// rescoreFunc adapts a closure to the worker Rescorer interface.
type rescoreFunc func(ctx context.Context, userID, warrantyID string)

func (f rescoreFunc) Rescore(ctx context.Context, userID, warrantyID string) {
	f(ctx, userID, warrantyID)
}

// SeenAndRecord atomically checks and records an event id.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordIngestDuplicate()
	}
	return seen
}

// Unrecord removes an event id from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of event ids the deduper currently tracks.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// Enqueue submits a telemetry event for asynchronous ingestion.
func (s *Service) Enqueue(ctx context.Context, e eventqueue.Event) error {
	if err := s.eventQueue.Enqueue(ctx, e); err != nil {
		metrics.RecordIngestRejected()
		return err
	}
	return nil
}

// Score runs the full pipeline and records the outcome in the risk index.
func (s *Service) Score(ctx context.Context, userID, warrantyID, productType string) model.ScoreResult {
	start := time.Now()
	result := s.scorer.Score(ctx, userID, warrantyID, productType)
	metrics.RecordScoringLatency(float64(time.Since(start).Milliseconds()))
	metrics.RecordScoringRequest(string(result.RiskLabel))
	metrics.RecordBehaviourDelta(result.BehaviourDelta)
	if result.RiskLabel == model.RiskUnknown {
		metrics.RecordScoringUnknown()
	} else if len(result.Proba) == 0 {
		// No probability vector means the heuristic path produced the score.
		metrics.RecordScoringFallback()
	}
	s.publishModelState()

	s.scoreIndex.Record(userID, warrantyID, result)
	return result
}

// Rescore refreshes the risk index after a history change.
func (s *Service) Rescore(ctx context.Context, userID, warrantyID string) {
	s.Score(ctx, userID, warrantyID, "")
}

// ScoreEV runs the EV battery variant.
func (s *Service) ScoreEV(_ context.Context, features evbattery.Features) evbattery.Score {
	return s.evScorer.Score(features)
}

// AnswerBehaviour records a questionnaire answer and folds it into the
// behaviour profile.
func (s *Service) AnswerBehaviour(ctx context.Context, userID, productType, warrantyID, questionID, answerValue string) (model.BehaviourProfile, error) {
	profile, found, err := s.store.Profile(ctx, userID, productType, warrantyID)
	if err != nil {
		return model.BehaviourProfile{}, err
	}
	if !found {
		profile = model.NewBehaviourProfile(userID, productType, warrantyID)
	}
	behaviour.ApplyAnswer(&profile, answerValue)
	now := time.Now().UTC()
	profile.LastQuestionAt = &now
	profile.LastUpdatedAt = &now
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return model.BehaviourProfile{}, err
	}
	if err := s.store.RecordAnswer(ctx, model.BehaviourAnswer{
		UserID:      userID,
		WarrantyID:  warrantyID,
		QuestionID:  questionID,
		AnswerValue: answerValue,
		CreatedAt:   now,
	}); err != nil {
		return model.BehaviourProfile{}, err
	}
	return profile, nil
}

// NextQuestion picks the next questionnaire prompt for a (user, warranty),
// honouring the per-profile cooldown. An empty question with a nil error
// means nothing is due.
func (s *Service) NextQuestion(ctx context.Context, userID, productType, warrantyID string) (string, error) {
	profile, found, err := s.store.Profile(ctx, userID, productType, warrantyID)
	if err != nil {
		return "", err
	}
	if !found {
		profile = model.NewBehaviourProfile(userID, productType, warrantyID)
	}
	now := time.Now().UTC()
	if !behaviour.QuestionDue(profile, now) {
		return "", nil
	}
	questions := s.scorer.SuggestQuestions(ctx, userID, warrantyID)
	if len(questions) == 0 {
		return "", nil
	}
	profile.LastQuestionAt = &now
	if err := s.store.SaveProfile(ctx, profile); err != nil {
		return "", err
	}
	return questions[0], nil
}

// Signals composes the per-source signal summaries.
func (s *Service) Signals(ctx context.Context, userID, warrantyID string) scoring.SignalsReport {
	return s.scorer.Signals(ctx, userID, warrantyID)
}

// TopRisk returns the n highest-risk indexed warranties.
func (s *Service) TopRisk(_ context.Context, n int) []repository.ScoreEntry {
	return s.scoreIndex.TopN(n)
}

// ModelState reports the classifier lifecycle state.
func (s *Service) ModelState() (classifier.State, error) {
	state, err := s.scorer.ModelState()
	s.publishModelState()
	return state, err
}

// Store exposes the signal store for ingestion-adjacent surfaces.
func (s *Service) Store() repository.Store {
	return s.store
}

func (s *Service) publishModelState() {
	state, _ := s.scorer.ModelState()
	metrics.UpdateModelState(float64(state))
}
