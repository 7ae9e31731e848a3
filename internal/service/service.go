package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/analytics"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/cache"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/database"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/events"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/features"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/fraud"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/metrics"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/tracing"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/validation"
)

// Fraud log actions for admin changes. Scoring entries record the resulting
// status instead.
const (
	ActionApproved      = "approved"
	ActionBlocked       = "blocked"
	ActionStatusChanged = "status_changed"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	dashboardGenerationKey = "dashboard:generation"
)

// Store is the persistence the service needs. *database.DB implements it.
type Store interface {
	InsertScoredTransaction(ctx context.Context, txn models.Transaction, entry models.FraudLog) error
	GetUserHistory(ctx context.Context, userID string) ([]models.Transaction, error)
	GetTransaction(ctx context.Context, id string) (models.Transaction, error)
	ListTransactions(ctx context.Context, f database.TransactionFilter) ([]models.Transaction, error)
	ListFraudCases(ctx context.Context, limit int) ([]models.Transaction, error)
	UpdateStatus(ctx context.Context, u database.StatusUpdate, entry models.FraudLog) (models.Transaction, error)
	ListFraudLogs(ctx context.Context, f database.LogFilter) ([]models.FraudLog, error)
}

// Options holds the optional collaborators of a Service. Nil fields get
// working defaults.
type Options struct {
	Events   *events.Manager
	Cache    cache.Cache
	CacheTTL time.Duration
	Flags    *features.Manager
	Tracer   *tracing.Tracer
	Logger   *zap.Logger
	Clock    func() time.Time
	NewID    func() string
}

// Service provides business logic for the fraud detection API.
type Service struct {
	store    Store
	engine   *fraud.Engine
	events   *events.Manager
	cache    cache.Cache
	cacheTTL time.Duration
	flags    *features.Manager
	tracer   *tracing.Tracer
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	// locks serialises history read and insert per user so concurrent
	// submissions each see the other in their history.
	locks userLocks
}

// NewService creates a new service instance.
func NewService(store Store, engine *fraud.Engine, opts Options) *Service {
	s := &Service{
		store:    store,
		engine:   engine,
		events:   opts.Events,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		flags:    opts.Flags,
		tracer:   opts.Tracer,
		logger:   opts.Logger,
		now:      opts.Clock,
		newID:    opts.NewID,
	}
	if s.events == nil {
		s.events = events.NewManager(false, nil)
	}
	if s.tracer == nil {
		s.tracer = tracing.GetTracer()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// CreateTransaction validates and scores a submitted transaction against the
// user's stored history, then persists it with its decision log entry.
func (s *Service) CreateTransaction(ctx context.Context, req models.CreateTransactionRequest) (models.Transaction, error) {
	if err := validation.ValidateCreateRequest(req); err != nil {
		return models.Transaction{}, err
	}
	now := s.now().UTC()
	txn, err := validation.BuildTransaction(req, now)
	if err != nil {
		return models.Transaction{}, err
	}
	txn.ID = s.newID()

	unlock := s.locks.Lock(txn.UserID)
	history, err := s.store.GetUserHistory(ctx, txn.UserID)
	if err != nil {
		unlock()
		return models.Transaction{}, fmt.Errorf("failed to load history for %s: %w", txn.UserID, err)
	}

	assessment, contributions := s.assess(ctx, txn, history)
	txn.FraudStatus = &assessment
	txn.Status = fraud.StatusFor(assessment.Classification)

	entry := s.scoredLog(txn)
	if err := s.store.InsertScoredTransaction(ctx, txn, entry); err != nil {
		unlock()
		return models.Transaction{}, err
	}
	unlock()

	metrics.AssessmentsTotal.WithLabelValues(string(assessment.Classification)).Inc()
	metrics.RiskScore.Observe(assessment.Score)
	for _, c := range contributions {
		if c.Triggered() {
			metrics.FactorTriggersTotal.WithLabelValues(c.Factor).Inc()
		}
	}

	s.invalidateDashboards(ctx)
	s.events.PublishTransactionScored(ctx, txn, entry)

	s.logger.Info("transaction scored",
		zap.String("transaction_id", txn.ID),
		zap.String("user_id", txn.UserID),
		zap.Float64("score", assessment.Score),
		zap.String("classification", string(assessment.Classification)),
		zap.Int("history", len(history)),
	)
	return txn, nil
}

func (s *Service) assess(ctx context.Context, txn models.Transaction, history []models.Transaction) (models.FraudAssessment, []fraud.Contribution) {
	_, span := s.tracer.StartSpan(ctx, "fraud.assess")
	defer span.End()

	assessment, contributions := s.engine.AssessContributions(txn, history)

	var triggered []string
	for _, c := range contributions {
		if c.Triggered() {
			triggered = append(triggered, c.Factor)
		}
	}
	span.SetAttributes(
		attribute.String("fraud.user_id", txn.UserID),
		attribute.Int("fraud.history_size", len(history)),
		attribute.Float64("fraud.score", assessment.Score),
		attribute.String("fraud.classification", string(assessment.Classification)),
		attribute.StringSlice("fraud.reasons", assessment.Reasons),
		attribute.StringSlice("fraud.triggered_factors", triggered),
	)
	return assessment, contributions
}

func (s *Service) scoredLog(txn models.Transaction) models.FraudLog {
	score := txn.FraudStatus.Score
	return models.FraudLog{
		ID:             s.newID(),
		TransactionID:  txn.ID,
		UserID:         txn.UserID,
		RiskScore:      &score,
		Classification: txn.FraudStatus.Classification,
		Reasons:        txn.FraudStatus.Reasons,
		Action:         string(txn.Status),
		Timestamp:      txn.FraudStatus.Timestamp,
	}
}

// ScoreResult is a dry-run assessment with the per-factor breakdown.
type ScoreResult struct {
	Assessment models.FraudAssessment `json:"assessment"`
	Status     models.Status          `json:"status"`
	Factors    []fraud.Contribution   `json:"factors"`
}

// ScoreOnly assesses a transaction against a caller-supplied history without
// storing anything.
func (s *Service) ScoreOnly(ctx context.Context, req models.ScoreRequest) (ScoreResult, error) {
	if err := validation.ValidateScoreRequest(req); err != nil {
		return ScoreResult{}, err
	}

	txn := req.Transaction
	validation.ApplyDefaults(&txn)
	history := make([]models.Transaction, len(req.History))
	for i, h := range req.History {
		validation.ApplyDefaults(&h)
		history[i] = h
	}

	assessment, contributions := s.assess(ctx, txn, history)
	return ScoreResult{
		Assessment: assessment,
		Status:     fraud.StatusFor(assessment.Classification),
		Factors:    contributions,
	}, nil
}

// GetTransaction returns a stored transaction by id.
func (s *Service) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	id = validation.SanitizeString(id)
	if id == "" {
		return models.Transaction{}, &validation.ValidationError{Field: "transaction_id", Message: "is required"}
	}
	return s.store.GetTransaction(ctx, id)
}

// ListTransactions returns transactions matching f, newest first.
func (s *Service) ListTransactions(ctx context.Context, f database.TransactionFilter) ([]models.Transaction, error) {
	if f.Status != "" {
		if err := validation.ValidateStatus(f.Status); err != nil {
			return nil, err
		}
	}
	for _, c := range f.Classifications {
		if err := validation.ValidateClassification(c); err != nil {
			return nil, err
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, &validation.ValidationError{Field: "from", Message: "must be before to"}
	}
	f.Limit = clampLimit(f.Limit)
	return s.store.ListTransactions(ctx, f)
}

// ListFraudCases returns suspicious and fraudulent transactions for review.
func (s *Service) ListFraudCases(ctx context.Context, limit int) ([]models.Transaction, error) {
	return s.store.ListFraudCases(ctx, clampLimit(limit))
}

// ListFraudLogs returns audit entries, newest first.
func (s *Service) ListFraudLogs(ctx context.Context, f database.LogFilter) ([]models.FraudLog, error) {
	f.Limit = clampLimit(f.Limit)
	return s.store.ListFraudLogs(ctx, f)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}

// ApproveTransaction overrides a transaction to approved.
func (s *Service) ApproveTransaction(ctx context.Context, id string, req models.OverrideRequest) (models.Transaction, error) {
	return s.changeStatus(ctx, id, models.StatusApproved, req.AdminID, req.AdminNotes, ActionApproved)
}

// BlockTransaction overrides a transaction to blocked.
func (s *Service) BlockTransaction(ctx context.Context, id string, req models.OverrideRequest) (models.Transaction, error) {
	return s.changeStatus(ctx, id, models.StatusBlocked, req.AdminID, req.AdminNotes, ActionBlocked)
}

// UpdateStatus sets an arbitrary operational status. The stored assessment
// is left untouched.
func (s *Service) UpdateStatus(ctx context.Context, id string, req models.StatusUpdateRequest) (models.Transaction, error) {
	if err := validation.ValidateStatus(req.Status); err != nil {
		return models.Transaction{}, err
	}
	return s.changeStatus(ctx, id, req.Status, req.AdminID, req.AdminNotes, ActionStatusChanged)
}

func (s *Service) changeStatus(ctx context.Context, id string, status models.Status, adminID, notes, action string) (models.Transaction, error) {
	id = validation.SanitizeString(id)
	if id == "" {
		return models.Transaction{}, &validation.ValidationError{Field: "transaction_id", Message: "is required"}
	}
	adminID = validation.SanitizeString(adminID)
	notes = validation.SanitizeString(notes)
	now := s.now().UTC()

	current, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}

	entry := models.FraudLog{
		ID:            s.newID(),
		TransactionID: id,
		UserID:        current.UserID,
		Action:        action,
		AdminID:       adminID,
		Notes:         notes,
		Timestamp:     now,
	}
	if current.FraudStatus != nil {
		score := current.FraudStatus.Score
		entry.RiskScore = &score
		entry.Classification = current.FraudStatus.Classification
	}

	txn, err := s.store.UpdateStatus(ctx, database.StatusUpdate{
		ID:       id,
		Status:   status,
		Notes:    notes,
		By:       adminID,
		Override: action != ActionStatusChanged,
		At:       now,
	}, entry)
	if err != nil {
		return models.Transaction{}, err
	}

	metrics.AdminOverridesTotal.WithLabelValues(action).Inc()
	s.invalidateDashboards(ctx)
	s.events.PublishTransactionOverridden(ctx, txn, entry)

	s.logger.Info("transaction status changed",
		zap.String("transaction_id", id),
		zap.String("action", action),
		zap.String("status", string(status)),
		zap.String("admin_id", adminID),
	)
	return txn, nil
}

// DashboardQuery scopes an analytics rollup. An empty UserID covers every
// user. Zero From or To leave that side of the range open; From is
// inclusive and To exclusive.
type DashboardQuery struct {
	UserID string
	From   time.Time
	To     time.Time
}

// Dashboard builds the analytics rollup for q. The high-risk user ranking is
// only filled for an unscoped query and always covers the full history.
func (s *Service) Dashboard(ctx context.Context, q DashboardQuery) (analytics.Dashboard, error) {
	q.UserID = validation.SanitizeString(q.UserID)
	if !q.From.IsZero() && !q.To.IsZero() && !q.From.Before(q.To) {
		return analytics.Dashboard{}, &validation.ValidationError{Field: "from", Message: "must be before to"}
	}
	useCache := s.cache != nil && s.flags.IsEnabled(features.DashboardCache)

	var key string
	if useCache {
		gen, err := cache.Generation(ctx, s.cache, dashboardGenerationKey)
		if err != nil {
			s.logger.Warn("dashboard cache generation unavailable", zap.Error(err))
			useCache = false
		} else {
			key = dashboardKey(q, gen)
			var cached analytics.Dashboard
			if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
				return cached, nil
			} else if !errors.Is(err, cache.ErrNotFound) {
				s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	ranged := !q.From.IsZero() || !q.To.IsZero()
	txns, err := s.store.ListTransactions(ctx, database.TransactionFilter{
		UserID: q.UserID,
		From:   q.From,
		To:     q.To,
	})
	if err != nil {
		return analytics.Dashboard{}, err
	}
	dashboard := analytics.BuildDashboard(txns, q.UserID == "" && !ranged)
	if q.UserID == "" && ranged {
		all, err := s.store.ListTransactions(ctx, database.TransactionFilter{})
		if err != nil {
			return analytics.Dashboard{}, err
		}
		dashboard.HighRiskUsers = analytics.HighRiskUsers(all)
	}
	dashboard.Period = analytics.NewPeriod(q.From, q.To)

	if useCache {
		if err := cache.SetJSON(ctx, s.cache, key, dashboard, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return dashboard, nil
}

func dashboardKey(q DashboardQuery, gen int64) string {
	scope := "all"
	if q.UserID != "" {
		scope = "user:" + q.UserID
	}
	key := fmt.Sprintf("dashboard:%s:%d", scope, gen)
	if !q.From.IsZero() || !q.To.IsZero() {
		key += ":" + rangeBound(q.From) + "~" + rangeBound(q.To)
	}
	return key
}

func rangeBound(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// invalidateDashboards bumps the generation so every cached rollup misses.
func (s *Service) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, dashboardGenerationKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
