package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/DealScope/internal/domain/run"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/pkg/errors"
)

// Topics.
const (
	TopicValuationRequested = "dealscope.valuation.requested"
	TopicValuationCompleted = "dealscope.valuation.completed"
	TopicCapTableSimulated  = "dealscope.captable.simulated"
	TopicWaterfallComputed  = "dealscope.waterfall.computed"
	TopicDeadLetter         = "dealscope.dead_letter"
)

// Event types carried in EventEnvelope.EventType and the event_type header.
const (
	EventValuationRequested = "valuation.requested"
	EventValuationCompleted = "valuation.completed"
	EventCapTableSimulated  = "captable.simulated"
	EventWaterfallComputed  = "waterfall.computed"
)

const schemaVersion = "v1"

// EventEnvelope wraps every DealScope event payload.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	RequestID     string            `json:"request_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ─── payloads ────────────────────────────────────────────────────────────────

// ValuationRequestedPayload is an asynchronous valuation job.  Request is the
// same JSON body POST /api/v1/valuations accepts.
type ValuationRequestedPayload struct {
	JobID       string          `json:"job_id"`
	Scope       run.Scope       `json:"scope"`
	Request     json.RawMessage `json:"request"`
	RequestedAt time.Time       `json:"requested_at"`
}

// ValuationCompletedPayload reports a finished valuation run.  JobID is empty
// for synchronous API runs.
type ValuationCompletedPayload struct {
	JobID       string    `json:"job_id,omitempty"`
	RunID       string    `json:"run_id,omitempty"`
	Scope       run.Scope `json:"scope"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	ConsensusLo float64   `json:"consensus_low,omitempty"`
	ConsensusHi float64   `json:"consensus_high,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// CapTableSimulatedPayload reports a cap-table simulation.
type CapTableSimulatedPayload struct {
	RunID            string    `json:"run_id,omitempty"`
	Scope            run.Scope `json:"scope"`
	Investment       float64   `json:"investment_amount"`
	PreMoney         float64   `json:"pre_money_valuation"`
	PostMoney        float64   `json:"post_money_valuation"`
	PricePerShare    float64   `json:"price_per_share"`
	TotalShares      float64   `json:"total_shares"`
	FounderOwnership float64   `json:"founder_ownership"`
	SimulatedAt      time.Time `json:"simulated_at"`
}

// WaterfallComputedPayload reports a waterfall run.
type WaterfallComputedPayload struct {
	RunID      string    `json:"run_id,omitempty"`
	Scope      run.Scope `json:"scope"`
	Scenarios  int       `json:"scenarios"`
	ComputedAt time.Time `json:"computed_at"`
}

// ─── envelope helpers ────────────────────────────────────────────────────────

// NewEventEnvelope marshals payload into a fresh envelope.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload").WithDetail(eventType)
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeValidation, "event payload is empty").WithDetail(e.EventType)
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal payload").WithDetail(e.EventType)
	}
	return nil
}

// ToMessage renders the envelope as a message on topic, keyed by key.
func (e *EventEnvelope) ToMessage(topic, key string) (*ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := map[string]string{
		"event_type":     e.EventType,
		"source_service": e.Source,
		"schema_version": e.SchemaVersion,
	}
	if e.RequestID != "" {
		headers["request_id"] = e.RequestID
	}
	msg := &ProducerMessage{
		Topic:     topic,
		Value:     val,
		Headers:   headers,
		Timestamp: e.Timestamp,
	}
	if key != "" {
		msg.Key = []byte(key)
	}
	return msg, nil
}

// MessageToEventEnvelope parses a consumed message.
func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// ─── event publisher ─────────────────────────────────────────────────────────

// EventPublisher wraps payloads in envelopes and publishes them.
type EventPublisher struct {
	pub    Publisher
	source string
	logger logging.Logger
}

// NewEventPublisher returns an EventPublisher stamping source on every event.
func NewEventPublisher(pub Publisher, source string, logger logging.Logger) *EventPublisher {
	return &EventPublisher{pub: pub, source: source, logger: logger}
}

// PublishEvent publishes payload as eventType on topic.  The message key is
// the partition key; pitch IDs keep one pitch's events ordered.
func (p *EventPublisher) PublishEvent(ctx context.Context, topic, eventType, key string, payload interface{}) error {
	env, err := NewEventEnvelope(eventType, p.source, payload)
	if err != nil {
		return err
	}
	env.RequestID = logging.RequestIDFrom(ctx)
	msg, err := env.ToMessage(topic, key)
	if err != nil {
		return err
	}
	if err := p.pub.Publish(ctx, msg); err != nil {
		return err
	}
	p.logger.Debug("Event published",
		logging.String("topic", topic),
		logging.String("event_type", eventType),
		logging.String("event_id", env.EventID),
	)
	return nil
}

// ─── topic management ────────────────────────────────────────────────────────

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates DealScope topics.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

// NewTopicManager dials the first broker.
func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to dial kafka").WithDetail(brokers[0])
	}
	return &TopicManager{conn: conn, logger: logger}, nil
}

// NewTopicManagerWithConn wraps an existing connection (for testing).
func NewTopicManagerWithConn(conn ConnInterface, logger logging.Logger) *TopicManager {
	return &TopicManager{conn: conn, logger: logger}
}

// CreateTopic creates cfg.Name.  An existing topic is not an error.
func (m *TopicManager) CreateTopic(ctx context.Context, cfg TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		return errors.New(errors.ErrCodeValidation, "partitions must be > 0").WithDetail(cfg.Name)
	}
	if cfg.ReplicationFactor <= 0 {
		return errors.New(errors.ErrCodeValidation, "replication factor must be > 0").WithDetail(cfg.Name)
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: fmt.Sprintf("%d", cfg.RetentionMs)})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy})
	}
	for k, v := range cfg.Configs {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: k, ConfigValue: v})
	}

	if err := m.conn.CreateTopics(kCfg); err != nil {
		if stderrors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		if exists, _ := m.TopicExists(ctx, cfg.Name); exists {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeMessageQueue, "failed to create topic").WithDetail(cfg.Name)
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

// TopicExists reports whether name has at least one partition.
func (m *TopicManager) TopicExists(_ context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic in topics.
func (m *TopicManager) EnsureTopics(ctx context.Context, topics []TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

const day = 24 * 3600 * 1000

// DefaultTopics lists the DealScope topics with their partitioning.
func DefaultTopics(replication int) []TopicConfig {
	if replication <= 0 {
		replication = 1
	}
	return []TopicConfig{
		{Name: TopicValuationRequested, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * day},
		{Name: TopicValuationCompleted, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 30 * day},
		{Name: TopicCapTableSimulated, NumPartitions: 3, ReplicationFactor: replication, RetentionMs: 30 * day},
		{Name: TopicWaterfallComputed, NumPartitions: 3, ReplicationFactor: replication, RetentionMs: 30 * day},
		{Name: TopicDeadLetter, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day},
	}
}
