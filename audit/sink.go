package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/portal-guard/internal/errors"
	"github.com/jrsteele09/portal-guard/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	DefaultQueueSize = 256
	appendTimeout    = 5 * time.Second
)

// Recorder is what the providers depend on
type Recorder interface {
	Record(action Action, actor string, details map[string]string)
}

// Sink queues entries in a bounded buffer and writes them to a Log from a
// single worker goroutine.
type Sink struct {
	log     Log
	queue   chan Entry
	done    chan struct{}
	nowTime func() time.Time

	mu     sync.RWMutex
	closed bool
}

var _ Recorder = (*Sink)(nil)

// SinkOption modifies a Sink
type SinkOption func(*Sink)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SinkOption {
	return func(s *Sink) {
		s.nowTime = nowFunc
	}
}

// NewSink starts the writer goroutine. queueSize <= 0 uses DefaultQueueSize.
func NewSink(l Log, queueSize int, options ...SinkOption) *Sink {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	s := &Sink{
		log:     l,
		queue:   make(chan Entry, queueSize),
		done:    make(chan struct{}),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}

	go s.run()
	return s
}

// Record enqueues an entry and returns immediately. When the queue is full
// or the sink is closed the entry is dropped and counted.
func (s *Sink) Record(action Action, actor string, details map[string]string) {
	entry := Entry{
		ID:              uuid.New().String(),
		Action:          action,
		ActorIdentifier: actor,
		Timestamp:       s.nowTime().UTC(),
		Details:         details,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		log.Debug().Str("action", string(action)).Msg("audit sink closed, entry dropped")
		return
	}

	select {
	case s.queue <- entry:
	default:
		metrics.AuditDroppedTotal.Inc()
		log.Warn().Err(errors.ErrAuditQueueFull).Str("action", string(action)).Msg("audit entry dropped")
	}
}

// Close stops accepting entries and waits for queued ones to be written,
// or for ctx to end.
func (s *Sink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "[audit.Sink.Close] drain")
	}
}

func (s *Sink) run() {
	defer close(s.done)
	for entry := range s.queue {
		if err := s.write(entry); err != nil {
			metrics.AuditWriteFailuresTotal.Inc()
			log.Err(err).Str("action", string(entry.Action)).Str("entry_id", entry.ID).Msg("audit write failed")
		}
	}
}

func (s *Sink) write(entry Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", errors.ErrAuditWriteFailure, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()

	if err := s.log.Append(ctx, entry); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrAuditWriteFailure, err)
	}
	return nil
}
