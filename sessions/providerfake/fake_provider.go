package providerfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/portal-guard/sessions"
)

var _ sessions.Provider = (*FakeProvider)(nil)

// FakeProvider is an in-memory identity provider whose state tests drive directly
type FakeProvider struct {
	sessions.Listeners

	lock       sync.RWMutex
	session    *sessions.Session
	loading    bool
	signOuts   int
	signOutErr error
	panicOnGet bool
}

// NewFakeProvider creates a provider that starts in the given loading state
func NewFakeProvider(loading bool) *FakeProvider {
	return &FakeProvider{loading: loading}
}

func (p *FakeProvider) CurrentSession() *sessions.Session {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.panicOnGet {
		panic("fake provider failure")
	}
	return p.session
}

func (p *FakeProvider) Loading() bool {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.loading
}

func (p *FakeProvider) SignOut(ctx context.Context) error {
	p.lock.Lock()
	p.signOuts++
	p.session = nil
	err := p.signOutErr
	p.lock.Unlock()

	p.Publish()
	return err
}

// SetLoading changes the loading flag and notifies subscribers
func (p *FakeProvider) SetLoading(loading bool) {
	p.lock.Lock()
	p.loading = loading
	p.lock.Unlock()
	p.Publish()
}

// SetSession replaces the session (nil clears it) and notifies subscribers
func (p *FakeProvider) SetSession(s *sessions.Session) {
	p.lock.Lock()
	p.session = s
	p.lock.Unlock()
	p.Publish()
}

// Hydrate finishes loading with the given session in a single change
func (p *FakeProvider) Hydrate(s *sessions.Session) {
	p.lock.Lock()
	p.session = s
	p.loading = false
	p.lock.Unlock()
	p.Publish()
}

// SetSignOutError makes SignOut return err after clearing the session
func (p *FakeProvider) SetSignOutError(err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.signOutErr = err
}

// SetPanicOnGet makes CurrentSession panic, simulating a faulty provider
func (p *FakeProvider) SetPanicOnGet(panicOnGet bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.panicOnGet = panicOnGet
}

// SignOuts returns how many times SignOut was called
func (p *FakeProvider) SignOuts() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.signOuts
}
