package guard

import (
	"context"
	"sync"

	"github.com/jrsteele09/portal-guard/broker"
	"github.com/jrsteele09/portal-guard/internal/metrics"
	"github.com/jrsteele09/portal-guard/notify"
	"github.com/rs/zerolog/log"
)

// Guard binds a controller to one broker mount and re-evaluates the current
// route whenever either provider changes.
type Guard struct {
	controller *Controller
	mount      *broker.Mount
	notifier   notify.Notifier
	listener   func(Decision)

	mu        sync.Mutex
	route     Route
	location  string
	navigated bool
	decision  Decision
	closed    bool
}

// Option defines a function type to modify the Guard instance.
type Option func(*Guard)

// WithListener is called with every decision that differs from the last
func WithListener(fn func(Decision)) Option {
	return func(g *Guard) {
		g.listener = fn
	}
}

// New mounts b and returns a guard with no route yet
func New(controller *Controller, b *broker.Broker, notifier notify.Notifier, options ...Option) *Guard {
	if notifier == nil {
		notifier = notify.NewLogNotifier()
	}
	g := &Guard{
		controller: controller,
		notifier:   notifier,
		decision:   Decision{State: Pending},
	}
	for _, opt := range options {
		opt(g)
	}
	g.mount = b.Mount(g.reevaluate)
	return g
}

// Navigate evaluates route from Pending and makes it the current route
func (g *Guard) Navigate(route Route, location string) Decision {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return Decision{State: Pending}
	}
	g.route = route
	g.location = location
	g.navigated = true
	g.decision = Decision{State: Pending}
	d, emit := g.evaluateLocked()
	g.mu.Unlock()

	g.emit(d, emit)
	return d
}

// Decision returns the decision for the current route
func (g *Guard) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decision
}

// Tick forwards an activity signal to the broker mount
func (g *Guard) Tick() {
	g.mount.Tick()
}

// Close releases the broker mount
func (g *Guard) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	g.mount.Close()
}

func (g *Guard) reevaluate() {
	g.mu.Lock()
	if g.closed || !g.navigated {
		g.mu.Unlock()
		return
	}
	d, emit := g.evaluateLocked()
	g.mu.Unlock()

	g.emit(d, emit)
}

// evaluateLocked decides the current route and reports whether the decision
// is a change worth emitting.
func (g *Guard) evaluateLocked() (Decision, bool) {
	d := g.controller.Decide(g.route, g.location, g.mount.Resolve())
	prev := g.decision
	g.decision = d
	return d, d.State != prev.State || d.Target != prev.Target || d.Session != prev.Session
}

func (g *Guard) emit(d Decision, changed bool) {
	if !changed {
		return
	}

	metrics.DecisionsTotal.WithLabelValues(d.State.String()).Inc()
	event := log.Debug().Str("state", d.State.String()).Str("target", d.Target)
	if d.Session != nil {
		event = event.Str("role", string(d.Session.Role)).Str("source", string(d.Session.Source))
	}
	event.Msg("access decision")

	if d.State == RedirectUnauthorized {
		g.notifier.Notify(context.Background(), notify.AccessDenied)
	}
	if g.listener != nil {
		g.listener(d)
	}
}
