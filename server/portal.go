package server

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/portal-guard/broker"
	"github.com/jrsteele09/portal-guard/guard"
	"github.com/jrsteele09/portal-guard/idle"
	"github.com/jrsteele09/portal-guard/localauth"
	"github.com/jrsteele09/portal-guard/notify"
	"github.com/jrsteele09/portal-guard/remoteauth"
	"github.com/jrsteele09/portal-guard/statestore"
	"github.com/rs/zerolog/log"
)

// portal is one browser's navigation context. It owns both providers, the
// broker mount behind its guard and the idle monitor.
type portal struct {
	id      string
	local   *localauth.Provider
	remote  *remoteauth.Provider
	broker  *broker.Broker
	guard   *guard.Guard
	monitor *idle.Monitor
	feed    *idle.Feed
	notices *notify.Recorder
	cancel  context.CancelFunc

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Server) newPortal(id string) (*portal, error) {
	store := statestore.Namespaced(s.deps.Store, id)
	remote := remoteauth.NewProvider(s.deps.Remote, store, remoteauth.WithRecorder(s.deps.Audit))

	localOptions := []localauth.ProviderOption{
		localauth.WithNowTime(s.clock.Now),
		localauth.WithMaxSessionAge(s.config.GetIdleTimeout()),
	}
	if s.deps.Remote != nil {
		// Mirror administrative logins to the hosted auth service
		localOptions = append(localOptions, localauth.WithRemoteSignIn(remote))
	}
	local, err := localauth.NewProvider(s.deps.Accounts, store, s.deps.Audit, localOptions...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &portal{
		id:       id,
		local:    local,
		remote:   remote,
		feed:     idle.NewFeed(),
		notices:  notify.NewRecorder(),
		cancel:   cancel,
		lastSeen: s.clock.Now(),
	}
	notifier := notify.Multi(notify.NewLogNotifier(), p.notices)

	p.broker = broker.New(local, remote,
		broker.WithClock(s.clock),
		broker.WithGraceWindow(s.config.GetGraceWindow()),
	)
	p.guard = guard.New(s.controller, p.broker, notifier)
	p.monitor = idle.New(p.broker, p.feed,
		idle.WithClock(s.clock),
		idle.WithTimeout(s.config.GetIdleTimeout()),
		idle.WithNotifier(notifier),
		idle.WithRecorder(s.deps.Audit),
	)
	p.monitor.Start()

	local.Restore(ctx)
	remote.Start(ctx)

	log.Debug().Str("portal_id", id).Msg("portal context created")
	return p, nil
}

// touch records a request from the browser as user activity
func (p *portal) touch(now time.Time) {
	p.mu.Lock()
	p.lastSeen = now
	p.mu.Unlock()

	p.feed.Signal()
	p.guard.Tick()
}

func (p *portal) idleSince(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return now.Sub(p.lastSeen)
}

// Close cancels hydration and tears down the guard and idle monitor
func (p *portal) Close() {
	p.cancel()
	p.monitor.Stop()
	p.guard.Close()
}
