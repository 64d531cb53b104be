package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mockbird/mockbird/pkg/logging"
)

// Store is the persistence the writer needs. Implemented by the
// database-backed and in-memory capture stores.
type Store interface {
	InsertCapture(ctx context.Context, c *Capture) error
}

const (
	defaultWriteTimeout   = 3 * time.Second
	defaultRetryQueueSize = 1024
)

// Writer persists captures. Writes are synchronous under a bounded
// timeout so data is not lost silently; a write that fails or times out
// is handed to a bounded background retry queue. A full retry queue
// drops the capture with an error log. The HTTP response to the caller
// is never affected either way.
type Writer struct {
	store        Store
	log          *slog.Logger
	writeTimeout time.Duration

	retries chan *Capture
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriteTimeout bounds the synchronous write attempt.
func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.writeTimeout = d
		}
	}
}

// WithRetryQueueSize bounds the background retry queue.
func WithRetryQueueSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.retries = make(chan *Capture, n)
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) WriterOption {
	return func(w *Writer) {
		if log != nil {
			w.log = log.With("component", "capture_writer")
		}
	}
}

// NewWriter creates a Writer and starts its retry worker.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:        store,
		log:          logging.Nop(),
		writeTimeout: defaultWriteTimeout,
		retries:      make(chan *Capture, defaultRetryQueueSize),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.drainRetries()

	return w
}

// Write persists c, assigning its ID from the snapshot timestamp when
// unset. The context is detached from any caller cancellation before the
// database write: a disconnected client must not erase the record of the
// request having occurred. The capture ID is returned immediately; a
// failed write is retried in the background.
func (w *Writer) Write(ctx context.Context, c *Capture) string {
	if c.ID == "" {
		c.ID = NewID(c.CreatedAt)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.writeTimeout)
	defer cancel()

	if err := w.store.InsertCapture(writeCtx, c); err != nil {
		w.log.Error("capture write failed, queueing retry",
			"capture_id", c.ID,
			"project_id", c.ProjectID,
			"error", err,
		)
		select {
		case w.retries <- c:
		default:
			w.log.Error("capture retry queue full, dropping capture", "capture_id", c.ID)
		}
	}

	return c.ID
}

// Close stops the retry worker after draining queued captures.
func (w *Writer) Close() {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()
}

func (w *Writer) drainRetries() {
	defer w.wg.Done()

	for {
		select {
		case c := <-w.retries:
			w.retryWrite(c)
		case <-w.done:
			// Final drain so Close does not abandon queued captures.
			for {
				select {
				case c := <-w.retries:
					w.retryWrite(c)
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) retryWrite(c *Capture) {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	if err := w.store.InsertCapture(ctx, c); err != nil {
		w.log.Error("capture retry failed, dropping capture", "capture_id", c.ID, "error", err)
	}
}
