package extractor

import (
	"context"
	"sync"
	"time"

	"github.com/pudingtabi/sequor/pkg/errors"
	"github.com/pudingtabi/sequor/pkg/logging"
	"github.com/pudingtabi/sequor/pkg/workflow"
)

const (
	// DefaultBufferSize is the flush threshold of the ingestion buffer.
	DefaultBufferSize = 64

	// DefaultFlushInterval bounds how long a buffered event waits before
	// it is persisted even when the buffer stays below the threshold.
	DefaultFlushInterval = 5 * time.Second

	// queueCapacity bounds the actor's inbox. LogEvent never blocks: when
	// the inbox is full the event is dropped with a warning instead.
	queueCapacity = 1024
)

// Ingestor is the single-writer buffered actor in front of an EventStore.
// Events are accepted without blocking the caller and persisted in batches
// on a size threshold or a periodic timer, whichever fires first. Write
// ordering across sessions is not guaranteed; readers re-sort by timestamp.
type Ingestor struct {
	store    EventStore
	queue    chan workflow.Event
	flushReq chan chan error
	stop     chan struct{}
	wg       sync.WaitGroup

	bufferSize    int
	flushInterval time.Duration

	closeOnce sync.Once
}

// IngestorOption customizes the actor's buffering behavior.
type IngestorOption func(*Ingestor)

func WithBufferSize(n int) IngestorOption {
	return func(i *Ingestor) {
		if n > 0 {
			i.bufferSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) IngestorOption {
	return func(i *Ingestor) {
		if d > 0 {
			i.flushInterval = d
		}
	}
}

// NewIngestor starts the ingestion actor on top of the given store.
func NewIngestor(store EventStore, opts ...IngestorOption) *Ingestor {
	ing := &Ingestor{
		store:         store,
		queue:         make(chan workflow.Event, queueCapacity),
		flushReq:      make(chan chan error),
		stop:          make(chan struct{}),
		bufferSize:    DefaultBufferSize,
		flushInterval: DefaultFlushInterval,
	}
	for _, opt := range opts {
		opt(ing)
	}

	ing.wg.Add(1)
	go ing.run()
	return ing
}

// LogEvent buffers one event and returns immediately. An event without a
// timestamp is stamped with the ingestion time.
func (i *Ingestor) LogEvent(e workflow.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	select {
	case i.queue <- e:
	case <-i.stop:
		logging.GetLogger().Warn(context.Background(), "event for session %s dropped: ingestor closed", e.SessionID)
	default:
		logging.GetLogger().Warn(context.Background(), "event for session %s dropped: ingestion queue full", e.SessionID)
	}
}

// Flush synchronously persists everything currently buffered. Exposed for
// deterministic shutdown and tests.
func (i *Ingestor) Flush() error {
	done := make(chan error, 1)
	select {
	case i.flushReq <- done:
		return <-done
	case <-i.stop:
		return errors.New(errors.InvalidInput, "ingestor closed")
	}
}

// Close flushes the remaining buffer and stops the actor.
func (i *Ingestor) Close() error {
	err := i.Flush()
	i.closeOnce.Do(func() {
		close(i.stop)
	})
	i.wg.Wait()
	return err
}

func (i *Ingestor) run() {
	defer i.wg.Done()

	buffer := make([]workflow.Event, 0, i.bufferSize)
	ticker := time.NewTicker(i.flushInterval)
	defer ticker.Stop()

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		err := i.store.Append(context.Background(), buffer)
		if err != nil {
			logging.GetLogger().Error(context.Background(), "failed to flush %d events: %v", len(buffer), err)
			return err
		}
		buffer = buffer[:0]
		return nil
	}

	for {
		select {
		case e := <-i.queue:
			buffer = append(buffer, e)
			if len(buffer) >= i.bufferSize {
				_ = flush()
			}
		case <-ticker.C:
			_ = flush()
		case done := <-i.flushReq:
			// Drain anything already queued so Flush sees a consistent
			// point-in-time view.
			for drained := false; !drained; {
				select {
				case e := <-i.queue:
					buffer = append(buffer, e)
				default:
					drained = true
				}
			}
			done <- flush()
		case <-i.stop:
			for drained := false; !drained; {
				select {
				case e := <-i.queue:
					buffer = append(buffer, e)
				default:
					drained = true
				}
			}
			_ = flush()
			return
		}
	}
}
