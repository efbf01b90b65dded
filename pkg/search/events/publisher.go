// Package events publishes command execution events to Redpanda/Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/hashicorp-forge/searchdispatch/pkg/search/service"
)

// CommandEvent is the message published for each executed command.
type CommandEvent struct {
	ID         string         `json:"id"`
	CommandID  string         `json:"command_id"`
	Backend    string         `json:"backend"`
	Operation  string         `json:"operation"`
	Context    string         `json:"context"`
	Status     string         `json:"status"` // "success" or "error"
	Path       string         `json:"path,omitempty"`
	DurationMS float64        `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewCommandEvent builds the event for a post or error hook.
func NewCommandEvent(ev *service.Event) *CommandEvent {
	cmd := ev.Command
	msg := &CommandEvent{
		ID:         uuid.New().String(),
		CommandID:  cmd.ID(),
		Backend:    cmd.TargetIdentifier(),
		Operation:  cmd.Operation(),
		Context:    cmd.Context(),
		Status:     "success",
		DurationMS: float64(ev.Elapsed.Microseconds()) / 1000,
		Timestamp:  time.Now().UTC(),
	}
	if ev.Err != nil {
		msg.Status = "error"
		msg.Error = ev.Err.Error()
		return msg
	}
	if r, err := cmd.Result(); err == nil {
		msg.Path = r.Path.String()
		msg.Details = r.Details
	}
	return msg
}

// producer is the subset of *kgo.Client used by Publisher.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// PublisherConfig holds configuration for the publisher.
type PublisherConfig struct {
	Brokers []string
	Topic   string
	Logger  hclog.Logger
}

// Publisher publishes CommandEvents, keyed by backend id so events for one
// backend stay ordered. It implements service.Listener.
type Publisher struct {
	client producer
	topic  string
	logger hclog.Logger
}

var _ service.Listener = (*Publisher)(nil)

// NewPublisher creates a publisher connected to cfg.Brokers.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.GzipCompression()),
		kgo.RetryBackoffFn(func(tries int) time.Duration {
			backoff := time.Duration(tries) * 100 * time.Millisecond
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			return backoff
		}),
		kgo.RequestRetries(5),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	return newPublisher(client, cfg.Topic, cfg.Logger), nil
}

func newPublisher(client producer, topic string, logger hclog.Logger) *Publisher {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Publisher{
		client: client,
		topic:  topic,
		logger: logger.Named("event-publisher"),
	}
}

// Publish sends one event and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, msg *CommandEvent) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal command event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(msg.Backend),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish command event: %w", err)
	}
	return nil
}

// OnEvent publishes post and error events. Publishing failures are logged,
// never returned to the command caller.
func (p *Publisher) OnEvent(ctx context.Context, ev *service.Event) {
	if ev.Phase == service.PhasePre {
		return
	}
	msg := NewCommandEvent(ev)
	if err := p.Publish(ctx, msg); err != nil {
		p.logger.Warn("failed to publish command event",
			"command_id", msg.CommandID,
			"backend", msg.Backend,
			"error", err)
	}
}

// EnsureTopic creates the publisher's topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	client, ok := p.client.(*kgo.Client)
	if !ok {
		return nil
	}

	req := kmsg.NewPtrCreateTopicsRequest()
	topic := kmsg.NewCreateTopicsRequestTopic()
	topic.Topic = p.topic
	topic.NumPartitions = partitions
	topic.ReplicationFactor = replicationFactor
	req.Topics = append(req.Topics, topic)

	resp, err := req.RequestWith(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", p.topic, err)
	}
	for _, t := range resp.Topics {
		if err := kerr.ErrorForCode(t.ErrorCode); err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("failed to create topic %s: %w", t.Topic, err)
		}
	}
	return nil
}

// Close closes the underlying client.
func (p *Publisher) Close() {
	p.client.Close()
}
