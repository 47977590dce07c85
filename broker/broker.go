// Package broker reconciles the local and remote identity providers into
// a single current session.
//
// Each navigation context mounts the broker once. A mount reports
// "not settled" while either provider is still loading, and when both
// finish with no session it waits a bounded grace window before settling
// as unauthenticated. The window absorbs the race where one provider
// clears its loading flag slightly before the other restores its session.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/portal-guard/internal/errors"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/rs/zerolog/log"
	"k8s.io/utils/clock"
)

const DefaultGraceWindow = time.Second

// Verdict is the reconciled view of the two providers
type Verdict struct {
	Session *sessions.Session
	Settled bool

	// Conflict is set when both providers hold non-administrative sessions
	// with different roles. The local session is still returned.
	Conflict bool
}

// Broker holds the two providers. It reads their state and issues SignOut
// commands but never changes their internals.
type Broker struct {
	local  sessions.Provider
	remote sessions.Provider
	clock  clock.WithDelayedExecution
	grace  time.Duration
}

// Option defines a function type to modify the Broker instance.
type Option func(*Broker)

// WithClock sets the clock used for the grace window (primarily for testing)
func WithClock(c clock.WithDelayedExecution) Option {
	return func(b *Broker) {
		b.clock = c
	}
}

// WithGraceWindow sets how long a mount waits before settling with no session
func WithGraceWindow(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.grace = d
		}
	}
}

// New creates a broker over the local and remote providers
func New(local, remote sessions.Provider, options ...Option) *Broker {
	b := &Broker{
		local:  local,
		remote: remote,
		clock:  clock.RealClock{},
		grace:  DefaultGraceWindow,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// observation is one guarded read of a provider
type observation struct {
	session *sessions.Session
	loading bool
}

func observe(name string, p sessions.Provider) (obs observation) {
	if p == nil {
		return observation{}
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("provider", name).Interface("panic", r).Msg("provider read failed, treating as no session")
			obs = observation{}
		}
	}()
	return observation{session: p.CurrentSession(), loading: p.Loading()}
}

// snapshot reads both providers and applies local precedence
func (b *Broker) snapshot() (v Verdict, loading bool) {
	local := observe("local", b.local)
	remote := observe("remote", b.remote)

	if local.loading || remote.loading {
		return Verdict{}, true
	}

	switch {
	case local.session != nil:
		v.Session = local.session
		if remote.session != nil && conflicting(local.session, remote.session) {
			v.Conflict = true
			log.Warn().
				Str("local_identifier", local.session.Identifier).
				Str("local_role", string(local.session.Role)).
				Str("remote_identifier", remote.session.Identifier).
				Str("remote_role", string(remote.session.Role)).
				Msg("providers disagree on a non-administrative role, using local session")
		}
	case remote.session != nil:
		v.Session = remote.session
	}
	return v, false
}

func conflicting(local, remote *sessions.Session) bool {
	return local.Role != remote.Role && !local.Role.IsAdministrative() && !remote.Role.IsAdministrative()
}

// Current returns the reconciled session without any grace window. It is
// for observers that need "who holds a session now", not for routing.
func (b *Broker) Current() *sessions.Session {
	v, _ := b.snapshot()
	return v.Session
}

// Terminate signs out every provider that currently holds a session
func (b *Broker) Terminate(ctx context.Context) error {
	var errs []error
	for _, p := range []struct {
		name     string
		provider sessions.Provider
	}{{"local", b.local}, {"remote", b.remote}} {
		if observe(p.name, p.provider).session == nil {
			continue
		}
		if err := signOut(ctx, p.name, p.provider); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("[broker.Terminate] %w", errors.Join(errs...))
	}
	return nil
}

func signOut(ctx context.Context, name string, p sessions.Provider) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s sign out panicked: %v", errors.ErrProviderUnavailable, name, r)
		}
	}()
	if err := p.SignOut(ctx); err != nil {
		return errors.Wrapf(err, "%s sign out", name)
	}
	return nil
}

// Subscribe calls fn after any change to either provider
func (b *Broker) Subscribe(fn func()) (cancel func()) {
	var cancels []func()
	for _, p := range []sessions.Provider{b.local, b.remote} {
		if p != nil {
			cancels = append(cancels, p.Subscribe(fn))
		}
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}
