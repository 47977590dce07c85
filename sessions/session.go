package sessions

import (
	"context"
	"time"

	"github.com/jrsteele09/portal-guard/roles"
)

// Source identifies which identity provider produced a session
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// PlanStatus is the subscription state attached to a session
type PlanStatus string

const (
	PlanNone     PlanStatus = ""
	PlanActive   PlanStatus = "active"
	PlanInactive PlanStatus = "inactive"
)

// Session represents one authenticated actor.
type Session struct {
	Role          roles.RoleType `json:"role"`
	Source        Source         `json:"source"`
	Identifier    string         `json:"identifier"`     // Email or remote user id, used for audit and display only
	EstablishedAt time.Time      `json:"established_at"` // When the credential check or restore happened
	Plan          PlanStatus     `json:"plan,omitempty"`
}

// PlanActive reports whether the session's plan grants plan-gated routes
func (s *Session) PlanActive() bool {
	return s != nil && s.Plan == PlanActive
}

// Provider is the boundary every identity source exposes to the broker.
// Implementations own their state; consumers only observe it and issue
// SignOut as a command.
type Provider interface {
	// CurrentSession returns the provider's session or nil
	CurrentSession() *Session

	// Loading is true until the provider finished its own hydration
	Loading() bool

	// SignOut ends the provider's session
	SignOut(ctx context.Context) error

	// Subscribe registers fn to be called after any change to the
	// provider's session or loading state. The returned func removes it.
	Subscribe(fn func()) (cancel func())
}
