// Package idle ends sessions after a period without user activity.
package idle

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/portal-guard/audit"
	"github.com/jrsteele09/portal-guard/internal/metrics"
	"github.com/jrsteele09/portal-guard/notify"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"
)

const (
	DefaultTimeout   = 20 * time.Minute
	terminateTimeout = 5 * time.Second
)

// SessionHolder is the part of the broker the monitor uses
type SessionHolder interface {
	Current() *sessions.Session
	Terminate(ctx context.Context) error
	Subscribe(fn func()) (cancel func())
}

// Monitor runs one countdown while a session is current. Activity resets
// the countdown; expiry terminates the session and raises one notice.
type Monitor struct {
	holder   SessionHolder
	activity ActivitySource
	clock    clock.WithDelayedExecution
	timeout  time.Duration
	notifier notify.Notifier
	audit    audit.Recorder

	mu             sync.Mutex
	session        *sessions.Session // session the countdown belongs to, nil when disarmed
	timer          clock.Timer
	gen            int
	stopActivity   func()
	cancelSessions func()
	stopped        bool
}

// Option defines a function type to modify the Monitor instance.
type Option func(*Monitor)

// WithClock sets the clock used for the countdown (primarily for testing)
func WithClock(c clock.WithDelayedExecution) Option {
	return func(m *Monitor) {
		m.clock = c
	}
}

// WithTimeout sets the inactivity window
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithNotifier sets where the session-expired notice goes
func WithNotifier(n notify.Notifier) Option {
	return func(m *Monitor) {
		m.notifier = n
	}
}

// WithRecorder audits expiries
func WithRecorder(r audit.Recorder) Option {
	return func(m *Monitor) {
		m.audit = r
	}
}

// New creates a monitor. It does nothing until Start.
func New(holder SessionHolder, activity ActivitySource, options ...Option) *Monitor {
	m := &Monitor{
		holder:   holder,
		activity: activity,
		clock:    clock.RealClock{},
		timeout:  DefaultTimeout,
		notifier: notify.NewLogNotifier(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Start follows session changes, arming the countdown whenever a session
// becomes current.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.cancelSessions != nil || m.stopped {
		m.mu.Unlock()
		return
	}
	m.cancelSessions = m.holder.Subscribe(m.sync)
	m.mu.Unlock()

	m.sync()
}

// Stop cancels the countdown and detaches every listener
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	cancel := m.cancelSessions
	m.cancelSessions = nil
	stopActivity := m.disarmLocked()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stopActivity != nil {
		stopActivity()
	}
}

// Armed reports whether a countdown is running
func (m *Monitor) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Touch restarts the countdown from the full timeout
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || m.stopped {
		return
	}
	m.startTimerLocked()
}

func (m *Monitor) sync() {
	current := m.holder.Current()

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}

	var stopActivity func()
	switch {
	case current == nil && m.session != nil:
		stopActivity = m.disarmLocked()
	case current != nil && m.session != current:
		// A new session lifetime gets a fresh listener set
		stopActivity = m.disarmLocked()
		m.session = current
		m.startTimerLocked()
	}
	arm := current != nil && m.stopActivity == nil
	m.mu.Unlock()

	if stopActivity != nil {
		stopActivity()
	}
	if arm {
		m.listen(current)
	}
}

// listen attaches the activity listener outside the lock, since a source
// may signal synchronously.
func (m *Monitor) listen(s *sessions.Session) {
	stop := m.activity.Listen(m.Touch)

	m.mu.Lock()
	if m.session != s || m.stopActivity != nil || m.stopped {
		m.mu.Unlock()
		stop()
		return
	}
	m.stopActivity = stop
	m.mu.Unlock()
}

func (m *Monitor) startTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	// Expiry signs providers out, which re-enters sync and the clock, so it
	// runs off the timer's goroutine.
	m.timer = m.clock.AfterFunc(m.timeout, func() { go m.expire(gen) })
}

// disarmLocked clears the countdown and returns the activity stop func for
// the caller to run after unlocking.
func (m *Monitor) disarmLocked() func() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
	m.session = nil
	stop := m.stopActivity
	m.stopActivity = nil
	return stop
}

func (m *Monitor) expire(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.session == nil || m.stopped {
		m.mu.Unlock()
		return
	}
	s := m.session
	m.timer = nil
	stopActivity := m.disarmLocked()
	m.mu.Unlock()

	if stopActivity != nil {
		stopActivity()
	}

	ctx, cancel := context.WithTimeout(context.Background(), terminateTimeout)
	defer cancel()
	if err := m.holder.Terminate(ctx); err != nil {
		log.Err(err).Str("identifier", s.Identifier).Msg("failed to terminate idle session")
	}

	metrics.IdleExpiriesTotal.Inc()
	log.Info().Str("identifier", s.Identifier).Str("source", string(s.Source)).Dur("timeout", m.timeout).Msg("session expired after inactivity")
	if m.audit != nil {
		m.audit.Record(audit.ActionSessionExpired, s.Identifier, map[string]string{
			"source":       string(s.Source),
			"idle_timeout": m.timeout.String(),
		})
	}
	m.notifier.Notify(ctx, notify.SessionExpired)
}
