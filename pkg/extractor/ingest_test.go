package extractor

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pudingtabi/sequor/pkg/workflow"
)

func TestIngestorFlushPersistsBuffer(t *testing.T) {
	store := NewInMemoryEventStore()
	ingestor := NewIngestor(store, WithBufferSize(100), WithFlushInterval(time.Hour))
	defer ingestor.Close()

	ingestor.LogEvent(workflow.Event{SessionID: "s1", Tool: "file", Operation: "read"})
	ingestor.LogEvent(workflow.Event{SessionID: "s1", Tool: "file", Operation: "edit"})
	require.NoError(t, ingestor.Flush())

	events, err := store.Events(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestIngestorStampsMissingTimestamps(t *testing.T) {
	store := NewInMemoryEventStore()
	ingestor := NewIngestor(store, WithFlushInterval(time.Hour))
	defer ingestor.Close()

	before := time.Now()
	ingestor.LogEvent(workflow.Event{SessionID: "s1", Tool: "file", Operation: "read"})
	require.NoError(t, ingestor.Flush())

	events, err := store.Events(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))
}

func TestIngestorFlushesOnSizeThreshold(t *testing.T) {
	store := NewInMemoryEventStore()
	ingestor := NewIngestor(store, WithBufferSize(2), WithFlushInterval(time.Hour))
	defer ingestor.Close()

	ingestor.LogEvent(workflow.Event{SessionID: "s1", Tool: "file", Operation: "read"})
	ingestor.LogEvent(workflow.Event{SessionID: "s1", Tool: "file", Operation: "edit"})

	// The threshold flush happens inside the actor without a manual Flush.
	assert.Eventually(t, func() bool {
		events, err := store.Events(context.Background(), Filter{})
		return err == nil && len(events) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestIngestorFlushesOnTimer(t *testing.T) {
	store := NewInMemoryEventStore()
	ingestor := NewIngestor(store, WithBufferSize(1000), WithFlushInterval(20*time.Millisecond))
	defer ingestor.Close()

	ingestor.LogEvent(workflow.Event{SessionID: "s1", Tool: "file", Operation: "read"})

	assert.Eventually(t, func() bool {
		events, err := store.Events(context.Background(), Filter{})
		return err == nil && len(events) == 1
	}, time.Second, 5*time.Millisecond)
}

// flakyStore fails appends until recovered.
type flakyStore struct {
	mu      sync.Mutex
	broken  bool
	appends [][]workflow.Event
}

func (s *flakyStore) Append(ctx context.Context, events []workflow.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return stderrors.New("log source unavailable")
	}
	batch := make([]workflow.Event, len(events))
	copy(batch, events)
	s.appends = append(s.appends, batch)
	return nil
}

func (s *flakyStore) Events(ctx context.Context, filter Filter) ([]workflow.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []workflow.Event
	for _, batch := range s.appends {
		out = append(out, batch...)
	}
	return out, nil
}

func (s *flakyStore) setBroken(broken bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broken = broken
}

func TestIngestorKeepsBufferOnStoreFailure(t *testing.T) {
	store := &flakyStore{broken: true}
	ingestor := NewIngestor(store, WithBufferSize(100), WithFlushInterval(time.Hour))
	defer ingestor.Close()

	ingestor.LogEvent(workflow.Event{SessionID: "s1", Tool: "file", Operation: "read"})
	require.Error(t, ingestor.Flush())

	// Once the store recovers, the retained buffer flushes intact.
	store.setBroken(false)
	require.NoError(t, ingestor.Flush())

	events, err := store.Events(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestIngestorCloseFlushesAndStops(t *testing.T) {
	store := NewInMemoryEventStore()
	ingestor := NewIngestor(store, WithBufferSize(100), WithFlushInterval(time.Hour))

	ingestor.LogEvent(workflow.Event{SessionID: "s1", Tool: "file", Operation: "read"})
	require.NoError(t, ingestor.Close())

	events, err := store.Events(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// Events after close are dropped, not queued.
	ingestor.LogEvent(workflow.Event{SessionID: "s1", Tool: "file", Operation: "edit"})
	events, err = store.Events(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestIngestorConcurrentProducers(t *testing.T) {
	store := NewInMemoryEventStore()
	ingestor := NewIngestor(store, WithBufferSize(16), WithFlushInterval(10*time.Millisecond))
	defer ingestor.Close()

	const producers = 8
	const perProducer = 25

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				ingestor.LogEvent(workflow.Event{SessionID: session, Tool: "file", Operation: "read"})
			}
		}(string(rune('a' + p)))
	}
	wg.Wait()
	require.NoError(t, ingestor.Flush())

	events, err := store.Events(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, events, producers*perProducer)
}
