// Package stream publishes fraud decisions to Kafka for downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/events"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/metrics"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/models"
)

// Publisher sends keyed records to a topic.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// KafkaPublisher produces records asynchronously and reports delivery
// failures through the logger.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   *zap.Logger
	done     chan struct{}
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(brokers, ","),
		"acks":              "all",
		"linger.ms":         5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		topic:    topic,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go kp.deliveryReports()
	return kp, nil
}

func (p *KafkaPublisher) deliveryReports() {
	defer close(p.done)
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				metrics.DecisionsPublishedTotal.WithLabelValues("failed").Inc()
				p.logger.Warn("decision delivery failed",
					zap.String("key", string(ev.Key)),
					zap.Error(ev.TopicPartition.Error),
				)
				continue
			}
			metrics.DecisionsPublishedTotal.WithLabelValues("delivered").Inc()
		case kafka.Error:
			p.logger.Warn("kafka producer error", zap.Error(ev))
		}
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
	}, nil)
}

// Close flushes pending records, waiting at most timeout.
func (p *KafkaPublisher) Close(timeout time.Duration) {
	if remaining := p.producer.Flush(int(timeout.Milliseconds())); remaining > 0 {
		p.logger.Warn("kafka flush incomplete", zap.Int("pending", remaining))
	}
	p.producer.Close()
	<-p.done
}

// Decision is the record published for every scoring and override.
type Decision struct {
	LogID          string                `json:"log_id"`
	TransactionID  string                `json:"transaction_id"`
	UserID         string                `json:"user_id"`
	Action         string                `json:"action"`
	Status         models.Status         `json:"status"`
	RiskScore      *float64              `json:"risk_score,omitempty"`
	Classification models.Classification `json:"classification,omitempty"`
	Reasons        []string              `json:"reasons,omitempty"`
	AdminID        string                `json:"admin_id,omitempty"`
	Timestamp      time.Time             `json:"timestamp"`
}

// NewDecision combines a stored transaction with the log entry that
// recorded the change.
func NewDecision(txn models.Transaction, log models.FraudLog) Decision {
	return Decision{
		LogID:          log.ID,
		TransactionID:  txn.ID,
		UserID:         txn.UserID,
		Action:         log.Action,
		Status:         txn.Status,
		RiskScore:      log.RiskScore,
		Classification: log.Classification,
		Reasons:        log.Reasons,
		AdminID:        log.AdminID,
		Timestamp:      log.Timestamp,
	}
}

// DecisionHandler publishes scored and overridden transactions, keyed by
// user so a consumer sees each user's decisions in order.
func DecisionHandler(pub Publisher, enabled func() bool) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		if enabled != nil && !enabled() {
			return nil
		}

		var d Decision
		switch data := e.Data.(type) {
		case events.TransactionScoredData:
			d = NewDecision(data.Transaction, data.Log)
		case events.TransactionOverriddenData:
			d = NewDecision(data.Transaction, data.Log)
		default:
			return nil
		}

		value, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode decision %s: %w", d.LogID, err)
		}
		if err := pub.Publish(ctx, d.UserID, value); err != nil {
			metrics.DecisionsPublishedTotal.WithLabelValues("rejected").Inc()
			return fmt.Errorf("publish decision %s: %w", d.LogID, err)
		}
		return nil
	}
}
