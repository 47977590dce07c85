// Package remoteauth provides the session source backed by the hosted auth
// service. It hydrates asynchronously from a persisted token and never
// grants administrative roles.
package remoteauth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/portal-guard/audit"
	"github.com/jrsteele09/portal-guard/internal/errors"
	"github.com/jrsteele09/portal-guard/internal/metrics"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/jrsteele09/portal-guard/statestore"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// DefaultHydrateTimeout bounds restoring the persisted session, after which
// the provider finishes loading with no session.
const DefaultHydrateTimeout = 10 * time.Second

// storedToken is what gets persisted under statestore.KeyRemoteToken
type storedToken struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Provider is one portal context's view of the remote identity
type Provider struct {
	sessions.Listeners

	client *Client
	store  statestore.Store
	audit  audit.Recorder

	hydrateTimeout time.Duration

	mu      sync.RWMutex
	session *sessions.Session
	loading bool
	started bool
}

var _ sessions.Provider = (*Provider)(nil)

// ProviderOption defines a function type to modify the Provider instance.
type ProviderOption func(*Provider)

// WithRecorder audits remote sign-ins and sign-outs
func WithRecorder(recorder audit.Recorder) ProviderOption {
	return func(p *Provider) {
		p.audit = recorder
	}
}

// WithHydrateTimeout overrides DefaultHydrateTimeout
func WithHydrateTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		p.hydrateTimeout = timeout
	}
}

// NewProvider creates a provider that reports Loading until Start finishes.
// A nil client gives a disabled provider that never holds a session.
func NewProvider(client *Client, store statestore.Store, options ...ProviderOption) *Provider {
	p := &Provider{
		client:         client,
		store:          store,
		hydrateTimeout: DefaultHydrateTimeout,
		loading:        true,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *Provider) CurrentSession() *sessions.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

func (p *Provider) Loading() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loading
}

// Start begins hydration in the background. Only the first call has effect.
func (p *Provider) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.hydrate(ctx)
}

// Hydrate restores the persisted session and blocks until done
func (p *Provider) Hydrate(ctx context.Context) {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	p.hydrate(ctx)
}

func (p *Provider) hydrate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.hydrateTimeout)
	defer cancel()

	restored, err := p.restore(ctx)
	switch {
	case err == nil, errors.Is(err, errors.ErrNotFound):
	case ctx.Err() != nil:
		// The token may still be good, keep it for the next hydration
		log.Warn().Err(err).Dur("timeout", p.hydrateTimeout).Msg("remote session hydration timed out")
		restored = nil
	default:
		log.Warn().Err(err).Msg("remote session not restored")
		if err := p.store.Delete(statestore.KeyRemoteToken); err != nil {
			log.Err(err).Msg("failed to delete persisted remote token")
		}
		restored = nil
	}

	p.mu.Lock()
	// A sign-in that completed during hydration wins
	if p.session == nil {
		p.session = restored
	}
	p.loading = false
	p.mu.Unlock()

	if restored != nil && p.audit != nil {
		p.audit.Record(audit.ActionSessionRestored, restored.Identifier, map[string]string{"source": string(sessions.SourceRemote)})
	}
	p.Publish()
}

func (p *Provider) restore(ctx context.Context) (_ *sessions.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", errors.ErrProviderUnavailable, r)
		}
	}()

	if p.client == nil {
		return nil, errors.ErrNotFound
	}

	data, err := p.store.Get(statestore.KeyRemoteToken)
	if err != nil {
		return nil, err
	}
	var stored storedToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrSessionCorrupt, err)
	}

	idToken, verifyErr := p.client.verifier.Verify(ctx, stored.IDToken)
	if verifyErr == nil {
		return sessionFromToken(idToken)
	}
	if stored.RefreshToken == "" {
		return nil, errors.Wrapf(verifyErr, "verify persisted id token")
	}

	token, rawIDToken, err := p.client.refresh(ctx, stored.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh: %w", errors.ErrProviderUnavailable, err)
	}
	return p.accept(ctx, token, rawIDToken)
}

// accept verifies a freshly issued ID token and persists it
func (p *Provider) accept(ctx context.Context, token *oauth2.Token, rawIDToken string) (*sessions.Session, error) {
	idToken, err := p.client.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(err, "verify id token")
	}
	s, err := sessionFromToken(idToken)
	if err != nil {
		return nil, errors.Wrapf(err, "read id token claims")
	}

	data, err := json.Marshal(storedToken{IDToken: rawIDToken, RefreshToken: token.RefreshToken})
	if err != nil {
		return nil, err
	}
	if err := p.store.Put(statestore.KeyRemoteToken, data); err != nil {
		log.Err(err).Msg("failed to persist remote token")
	}
	return s, nil
}

// SignIn establishes a remote session with the password grant
func (p *Provider) SignIn(ctx context.Context, identifier, secret string) (*sessions.Session, error) {
	if p.client == nil {
		return nil, errors.Wrapf(errors.ErrProviderUnavailable, "[remoteauth.SignIn] remote provider disabled")
	}

	s, err := p.signIn(ctx, identifier, secret)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues(string(sessions.SourceRemote), "failure").Inc()
		p.record(audit.ActionLoginFailed, identifier, nil)
		return nil, err
	}

	p.mu.Lock()
	p.session = s
	p.mu.Unlock()

	metrics.AuthAttemptsTotal.WithLabelValues(string(sessions.SourceRemote), "success").Inc()
	p.record(audit.ActionLoginSucceeded, s.Identifier, map[string]string{"role": string(s.Role)})
	p.Publish()
	return s, nil
}

func (p *Provider) signIn(ctx context.Context, identifier, secret string) (*sessions.Session, error) {
	token, rawIDToken, err := p.client.passwordGrant(ctx, identifier, secret)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return nil, errors.Wrapf(errors.ErrInvalidCredentials, "[remoteauth.SignIn]")
		}
		return nil, fmt.Errorf("[remoteauth.SignIn] %w: %w", errors.ErrProviderUnavailable, err)
	}
	s, err := p.accept(ctx, token, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("[remoteauth.SignIn] %w: %w", errors.ErrProviderUnavailable, err)
	}
	return s, nil
}

// SignOut clears the remote session and the persisted token
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	err := p.store.Delete(statestore.KeyRemoteToken)
	if s != nil {
		p.record(audit.ActionLogout, s.Identifier, nil)
		p.Publish()
	}
	return errors.Wrapf(err, "[remoteauth.SignOut]")
}

func (p *Provider) record(action audit.Action, actor string, details map[string]string) {
	if p.audit == nil {
		return
	}
	if details == nil {
		details = make(map[string]string, 1)
	}
	details["source"] = string(sessions.SourceRemote)
	p.audit.Record(action, actor, details)
}
