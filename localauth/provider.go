package localauth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/portal-guard/audit"
	guarderrors "github.com/jrsteele09/portal-guard/internal/errors"
	"github.com/jrsteele09/portal-guard/internal/metrics"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/jrsteele09/portal-guard/statestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const remoteSignInTimeout = 5 * time.Second

// RemoteSignIn is the part of the remote provider used to mirror an
// administrative login there.
type RemoteSignIn interface {
	SignIn(ctx context.Context, identifier, secret string) (*sessions.Session, error)
}

// Provider validates the fixed administrative account table and holds the
// resulting local session.
type Provider struct {
	sessions.Listeners

	accounts map[string]Account
	store    statestore.Store
	audit    audit.Recorder
	remote   RemoteSignIn
	nowTime  func() time.Time
	maxAge   time.Duration

	mu       sync.RWMutex
	session  *sessions.Session
	loading  bool
	restored bool
}

var _ sessions.Provider = (*Provider)(nil)

// ProviderOption defines a function type to modify the Provider instance.
type ProviderOption func(*Provider)

// WithRemoteSignIn mirrors successful logins to the remote provider
func WithRemoteSignIn(remote RemoteSignIn) ProviderOption {
	return func(p *Provider) {
		p.remote = remote
	}
}

// WithMaxSessionAge discards persisted sessions established longer ago than
// maxAge. Zero keeps them regardless of age.
func WithMaxSessionAge(maxAge time.Duration) ProviderOption {
	return func(p *Provider) {
		p.maxAge = maxAge
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.nowTime = nowFunc
	}
}

// NewProvider creates a provider that reports Loading until Restore runs.
func NewProvider(accounts []Account, store statestore.Store, recorder audit.Recorder, options ...ProviderOption) (*Provider, error) {
	if store == nil {
		return nil, errors.New("[localauth.NewProvider] state store is required")
	}
	if recorder == nil {
		return nil, errors.New("[localauth.NewProvider] audit recorder is required")
	}
	accounts, err := normaliseAccounts(accounts)
	if err != nil {
		return nil, errors.Wrap(err, "[localauth.NewProvider]")
	}

	p := &Provider{
		accounts: make(map[string]Account, len(accounts)),
		store:    store,
		audit:    recorder,
		nowTime:  time.Now,
		loading:  true,
	}
	for _, a := range accounts {
		p.accounts[a.Identifier] = a
	}
	for _, opt := range options {
		opt(p)
	}
	return p, nil
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

// Restore reads the persisted session once. Unreadable or stale state is
// deleted and the provider finishes loading with no session.
func (p *Provider) Restore(ctx context.Context) {
	p.mu.Lock()
	if p.restored {
		p.mu.Unlock()
		return
	}
	p.restored = true
	p.mu.Unlock()

	restored, err := p.readPersisted()
	if err != nil {
		if !guarderrors.Is(err, guarderrors.ErrNotFound) {
			log.Warn().Err(err).Msg("discarding persisted admin session")
			if err := p.store.Delete(statestore.KeyAdminSession); err != nil {
				log.Err(err).Msg("failed to delete persisted admin session")
			}
		}
		restored = nil
	}

	p.mu.Lock()
	p.session = restored
	p.loading = false
	p.mu.Unlock()

	if restored != nil {
		p.audit.Record(audit.ActionSessionRestored, restored.Identifier, map[string]string{"source": string(sessions.SourceLocal)})
	}
	p.Publish()
}

func (p *Provider) readPersisted() (*sessions.Session, error) {
	data, err := p.store.Get(statestore.KeyAdminSession)
	if err != nil {
		return nil, err
	}

	var s sessions.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", guarderrors.ErrSessionCorrupt, err)
	}

	account, ok := p.accounts[normaliseIdentifier(s.Identifier)]
	if !ok || account.Role != s.Role || s.Source != sessions.SourceLocal {
		return nil, fmt.Errorf("%w: account %q no longer matches", guarderrors.ErrSessionCorrupt, s.Identifier)
	}
	if p.maxAge > 0 && p.nowTime().Sub(s.EstablishedAt) > p.maxAge {
		return nil, fmt.Errorf("%w: established %s", guarderrors.ErrSessionExpired, s.EstablishedAt.Format(time.RFC3339))
	}
	return &s, nil
}

// Authenticate checks the credentials against the account table. On success
// the local session is established and a remote session is attempted with
// the same credentials; a remote failure is logged, never returned.
func (p *Provider) Authenticate(ctx context.Context, identifier, secret string) (*sessions.Session, error) {
	id := normaliseIdentifier(identifier)

	account, ok := p.accounts[id]
	if !ok {
		// Same bcrypt work as a real comparison
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(secret))
		return nil, p.failed(id, "unknown identifier")
	}
	if !checkSecret(secret, account.SecretHash) {
		return nil, p.failed(id, "secret mismatch")
	}

	s := &sessions.Session{
		Role:          account.Role,
		Source:        sessions.SourceLocal,
		Identifier:    account.Identifier,
		EstablishedAt: p.nowTime().UTC(),
	}
	p.persist(s)

	p.mu.Lock()
	p.session = s
	p.loading = false
	p.mu.Unlock()

	metrics.AuthAttemptsTotal.WithLabelValues(string(sessions.SourceLocal), "success").Inc()
	p.audit.Record(audit.ActionLoginSucceeded, s.Identifier, map[string]string{
		"source": string(sessions.SourceLocal),
		"role":   string(s.Role),
	})
	p.Publish()

	p.mirrorToRemote(ctx, s.Identifier, secret)
	return s, nil
}

func (p *Provider) failed(identifier, reason string) error {
	metrics.AuthAttemptsTotal.WithLabelValues(string(sessions.SourceLocal), "failure").Inc()
	p.audit.Record(audit.ActionLoginFailed, identifier, map[string]string{
		"source": string(sessions.SourceLocal),
		"reason": reason,
	})
	return errors.Wrap(guarderrors.ErrInvalidCredentials, "[localauth.Authenticate]")
}

func (p *Provider) mirrorToRemote(ctx context.Context, identifier, secret string) {
	if p.remote == nil {
		return
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(ctx, remoteSignInTimeout)
		defer cancel()
		_, err = p.remote.SignIn(ctx, identifier, secret)
		return err
	}()
	if err == nil {
		return
	}

	err = fmt.Errorf("%w: %w", guarderrors.ErrProviderUnavailable, err)
	log.Warn().Err(err).Str("identifier", identifier).Msg("remote session not established for local login")
	p.audit.Record(audit.ActionRemoteUnavailable, identifier, map[string]string{"error": err.Error()})
}

func (p *Provider) persist(s *sessions.Session) {
	data, err := json.Marshal(s)
	if err != nil {
		log.Err(err).Msg("failed to encode admin session")
		return
	}
	if err := p.store.Put(statestore.KeyAdminSession, data); err != nil {
		log.Err(err).Msg("failed to persist admin session")
	}
}

// Logout clears the local session and its persisted state
func (p *Provider) Logout(ctx context.Context) error {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	err := p.store.Delete(statestore.KeyAdminSession)
	if err != nil {
		log.Err(err).Msg("failed to delete persisted admin session")
	}

	if s != nil {
		p.audit.Record(audit.ActionLogout, s.Identifier, map[string]string{"source": string(sessions.SourceLocal)})
		p.Publish()
	}
	return errors.Wrap(err, "[localauth.Logout]")
}

// SignOut implements sessions.Provider
func (p *Provider) SignOut(ctx context.Context) error {
	return p.Logout(ctx)
}

var (
	dummyOnce sync.Once
	dummy     []byte
)

func dummyHash() []byte {
	dummyOnce.Do(func() {
		dummy, _ = bcrypt.GenerateFromPassword([]byte("portal-guard-unknown-account"), bcrypt.DefaultCost)
	})
	return dummy
}
