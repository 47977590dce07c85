package broker

import (
	"sync"

	"github.com/jrsteele09/portal-guard/internal/errors"
	"github.com/jrsteele09/portal-guard/internal/metrics"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"
)

type graceState int

const (
	graceUnused graceState = iota
	gracePending
	graceElapsed
	graceDone // ended by a session or by close
)

// Mount is one navigation context's observation of the broker. It is safe
// for concurrent use; onChange may be called from provider and timer
// goroutines and must not call Close.
type Mount struct {
	broker   *Broker
	onChange func()

	mu      sync.Mutex
	grace   graceState
	timer   clock.Timer
	gen     int
	settled bool
	closed  bool
	cancels []func()
}

// Mount starts observing both providers. onChange is called whenever the
// verdict may have changed.
func (b *Broker) Mount(onChange func()) *Mount {
	if onChange == nil {
		onChange = func() {}
	}
	m := &Mount{
		broker:   b,
		onChange: onChange,
	}
	for _, p := range []sessions.Provider{b.local, b.remote} {
		if p == nil {
			continue
		}
		m.cancels = append(m.cancels, p.Subscribe(m.notify))
	}
	return m
}

func (m *Mount) notify() {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()

	if !closed {
		m.onChange()
	}
}

// Resolve returns the current verdict. The first time both providers are
// loaded with no session it starts the grace window and reports not
// settled until a session appears or the window elapses. Once settled,
// a later absence settles immediately.
func (m *Mount) Resolve() Verdict {
	v, loading := m.broker.snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || loading {
		return Verdict{}
	}

	if v.Session != nil {
		if m.grace == gracePending {
			m.stopTimerLocked()
			m.grace = graceDone
			metrics.GraceWindowsTotal.WithLabelValues("session").Inc()
		}
		m.settled = true
		v.Settled = true
		return v
	}

	switch {
	case m.settled, m.grace == graceElapsed:
		m.settled = true
		return Verdict{Settled: true}
	case m.grace == graceUnused:
		m.startTimerLocked()
	}
	return Verdict{}
}

// Tick re-checks the providers while a grace window is pending
func (m *Mount) Tick() {
	m.mu.Lock()
	pending := m.grace == gracePending && !m.closed
	m.mu.Unlock()

	if pending {
		m.onChange()
	}
}

// Close cancels the grace timer and the provider subscriptions
func (m *Mount) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.grace == gracePending {
		m.stopTimerLocked()
		m.grace = graceDone
		metrics.GraceWindowsTotal.WithLabelValues("closed").Inc()
	}
	cancels := m.cancels
	m.cancels = nil
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (m *Mount) startTimerLocked() {
	m.grace = gracePending
	m.gen++
	gen := m.gen
	m.timer = m.broker.clock.AfterFunc(m.broker.grace, func() { m.graceElapsed(gen) })
}

func (m *Mount) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Mount) graceElapsed(gen int) {
	m.mu.Lock()
	if m.closed || gen != m.gen || m.grace != gracePending {
		m.mu.Unlock()
		return
	}
	m.grace = graceElapsed
	m.timer = nil
	m.mu.Unlock()

	metrics.GraceWindowsTotal.WithLabelValues("timeout").Inc()
	log.Debug().Err(errors.ErrHydrationTimeout).Dur("grace", m.broker.grace).Msg("no session after grace window")
	m.onChange()
}
