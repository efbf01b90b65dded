package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/hashicorp-forge/searchdispatch/pkg/search"
	fake "github.com/hashicorp-forge/searchdispatch/pkg/search/adapters/mock"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/command"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/registry"
	"github.com/hashicorp-forge/searchdispatch/pkg/search/service"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	var results kgo.ProduceResults
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() { f.closed = true }

func newTestService(t *testing.T, p *Publisher, backends ...search.Backend) *service.Service {
	t.Helper()
	reg := registry.New(nil)
	for _, b := range backends {
		require.NoError(t, reg.Register(b, nil))
	}
	svc := service.New(reg)
	svc.Attach(service.PhasePre, p)
	svc.Attach(service.PhasePost, p)
	svc.Attach(service.PhaseError, p)
	return svc
}

func TestPublisher_PublishesSuccessEvent(t *testing.T) {
	producer := &fakeProducer{}
	p := newPublisher(producer, "search.commands", nil)

	backend := fake.NewNumberedBackend("solr", 3).WithDetails(map[string]any{"qtime": 4})
	svc := newTestService(t, p, backend)

	cmd := command.NewSearchCommand("solr", search.MatchAllQuery{}, 0, 2, nil, command.WithContext("catalog"))
	_, err := svc.Invoke(context.Background(), cmd)
	require.NoError(t, err)

	require.Len(t, producer.records, 1, "pre events are not published")
	rec := producer.records[0]
	assert.Equal(t, "search.commands", rec.Topic)
	assert.Equal(t, "solr", string(rec.Key))

	var msg CommandEvent
	require.NoError(t, json.Unmarshal(rec.Value, &msg))
	assert.Equal(t, cmd.ID(), msg.CommandID)
	assert.Equal(t, "search", msg.Operation)
	assert.Equal(t, "catalog", msg.Context)
	assert.Equal(t, "success", msg.Status)
	assert.Equal(t, "optimized", msg.Path)
	assert.Equal(t, float64(4), msg.Details["qtime"])
	assert.NotEmpty(t, msg.ID)
}

func TestPublisher_PublishesErrorEvent(t *testing.T) {
	producer := &fakeProducer{}
	p := newPublisher(producer, "search.commands", nil)

	backend := fake.NewNumberedBackend("solr", 3)
	svc := newTestService(t, p, backend)

	_, err := svc.Invoke(context.Background(), command.NewGetIDsCommand("solr", nil, 0, 1, nil))
	require.NoError(t, err)
	producer.records = nil

	backend.Errors["search"] = errors.New("timeout")
	_, err = svc.Invoke(context.Background(), command.NewGetIDsCommand("solr", nil, 0, 1, nil))
	require.Error(t, err)

	require.Len(t, producer.records, 1)
	var msg CommandEvent
	require.NoError(t, json.Unmarshal(producer.records[0].Value, &msg))
	assert.Equal(t, "error", msg.Status)
	assert.Equal(t, "timeout", msg.Error)
	assert.Empty(t, msg.Path)
}

func TestPublisher_FailureDoesNotAffectCommand(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	p := newPublisher(producer, "search.commands", hclog.NewNullLogger())

	svc := newTestService(t, p, fake.NewNumberedBackend("solr", 1))
	_, err := svc.Invoke(context.Background(), command.NewRetrieveCommand("solr", "rec-0", nil))
	assert.NoError(t, err)
}

func TestPublisher_Publish(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	p := newPublisher(producer, "t", nil)

	err := p.Publish(context.Background(), &CommandEvent{Backend: "solr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")

	p.Close()
	assert.True(t, producer.closed)
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(PublisherConfig{Topic: "t"})
	assert.Error(t, err)

	_, err = NewPublisher(PublisherConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}

func TestPublisher_Redpanda(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:latest")
	require.NoError(t, err)
	defer func() {
		_ = container.Terminate(ctx)
	}()

	brokers, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	topic := "search.commands.test"
	p, err := NewPublisher(PublisherConfig{Brokers: []string{brokers}, Topic: topic})
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.EnsureTopic(ctx, 1, 1))
	require.NoError(t, p.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	svc := newTestService(t, p, fake.NewNumberedBackend("solr", 5))
	cmd := command.NewRandomCommand("solr", search.MatchAllQuery{}, 2, nil)
	_, err = svc.Invoke(ctx, cmd)
	require.NoError(t, err)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	pollCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var got []CommandEvent
	for len(got) == 0 {
		fetches := consumer.PollFetches(pollCtx)
		require.NoError(t, pollCtx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			var msg CommandEvent
			require.NoError(t, json.Unmarshal(r.Value, &msg))
			got = append(got, msg)
		})
	}

	require.Len(t, got, 1)
	assert.Equal(t, cmd.ID(), got[0].CommandID)
	assert.Equal(t, "random", got[0].Operation)
	assert.Equal(t, "fallback", got[0].Path)
}
