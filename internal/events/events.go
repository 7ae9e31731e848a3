package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventTransactionScored is emitted after a transaction is scored and stored
	EventTransactionScored EventType = "transaction.scored"
	// EventFraudAlert is emitted for suspicious and fraudulent transactions
	EventFraudAlert EventType = "fraud.alert"
	// EventTransactionOverridden is emitted when an admin changes a status
	EventTransactionOverridden EventType = "transaction.overridden"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// TransactionScoredData contains data for scored events.
type TransactionScoredData struct {
	Transaction models.Transaction
	Log         models.FraudLog
}

// FraudAlertData contains data for fraud alert events.
type FraudAlertData struct {
	Transaction models.Transaction
}

// TransactionOverriddenData contains data for admin override events.
type TransactionOverriddenData struct {
	Transaction models.Transaction
	Log         models.FraudLog
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	logger   *zap.Logger
	inflight sync.WaitGroup
	now      func() time.Time
}

// NewManager creates a new event manager.
func NewManager(enabled bool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		logger:   logger,
		now:      time.Now,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish runs every handler subscribed to eventType asynchronously. Handlers
// get a context detached from the caller's cancellation, so a finished HTTP
// request does not abort them.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	m.mu.RLock()
	if !m.enabled {
		m.mu.RUnlock()
		return
	}
	handlers := append([]Handler(nil), m.handlers[eventType]...)
	m.inflight.Add(len(handlers))
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: m.now(),
		Data:      data,
	}
	detached := context.WithoutCancel(ctx)

	for _, handler := range handlers {
		go func(h Handler) {
			defer m.inflight.Done()
			if err := h(detached, event); err != nil {
				m.logger.Warn("event handler failed",
					zap.String("event", string(event.Type)),
					zap.Error(err),
				)
			}
		}(handler)
	}
}

// PublishTransactionScored publishes a scored event, plus a fraud alert when
// the transaction was not classified safe.
func (m *Manager) PublishTransactionScored(ctx context.Context, txn models.Transaction, log models.FraudLog) {
	m.Publish(ctx, EventTransactionScored, TransactionScoredData{Transaction: txn, Log: log})
	if txn.FraudStatus != nil && txn.FraudStatus.Classification != models.ClassificationSafe {
		m.Publish(ctx, EventFraudAlert, FraudAlertData{Transaction: txn})
	}
}

// PublishTransactionOverridden publishes an admin status change.
func (m *Manager) PublishTransactionOverridden(ctx context.Context, txn models.Transaction, log models.FraudLog) {
	m.Publish(ctx, EventTransactionOverridden, TransactionOverriddenData{Transaction: txn, Log: log})
}

// Wait blocks until every handler started so far has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Shutdown stops accepting events and waits for running handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.inflight.Wait()
}
