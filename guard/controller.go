// Package guard decides, for every navigation, whether a route renders or
// which redirect replaces it.
package guard

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/portal-guard/broker"
	"github.com/jrsteele09/portal-guard/internal/config"
	"github.com/jrsteele09/portal-guard/roles"
	"github.com/jrsteele09/portal-guard/sessions"
)

// ReturnToParam carries the originating location to the login page
const ReturnToParam = "return_to"

// State of one access evaluation
type State int

const (
	Pending State = iota
	Deciding
	Render
	RedirectLogin
	RedirectUnauthorized
	RedirectUpgrade
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Deciding:
		return "deciding"
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect_login"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	case RedirectUpgrade:
		return "redirect_upgrade"
	default:
		return "unknown"
	}
}

// IsRedirect reports whether the state replaces the route with another page
func (s State) IsRedirect() bool {
	return s == RedirectLogin || s == RedirectUnauthorized || s == RedirectUpgrade
}

// Route is what a guarded route declares
type Route struct {
	Path         string
	RequiredRole roles.RoleType
	PlanRequired bool
}

// Decision is the outcome of one evaluation. Target is set for redirects.
type Decision struct {
	State    State
	Target   string
	ReturnTo string
	Session  *sessions.Session
}

// Paths are the redirect destinations
type Paths struct {
	AdminLogin      string
	SubscriberLogin string
	Unauthorized    string
	Upgrade         string

	// AdminPrefixes are the route prefixes whose login is AdminLogin
	AdminPrefixes []string
}

// DefaultPaths returns the portal's standard redirect destinations
func DefaultPaths() Paths {
	return PathsFromConfig(config.Guard{})
}

// PathsFromConfig reads the redirect destinations from configuration
func PathsFromConfig(cfg config.GuardConfig) Paths {
	return Paths{
		AdminLogin:      cfg.GetAdminLoginPath(),
		SubscriberLogin: cfg.GetSubscriberLoginPath(),
		Unauthorized:    cfg.GetUnauthorizedPath(),
		Upgrade:         cfg.GetUpgradePath(),
		AdminPrefixes:   []string{"/admin", "/franquia"},
	}
}

// Controller applies the role policy to a broker verdict. It holds no
// per-navigation state.
type Controller struct {
	policy *roles.Policy
	paths  Paths
}

// NewController creates a controller. A nil policy uses roles.DefaultPolicy.
func NewController(policy *roles.Policy, paths Paths) *Controller {
	if policy == nil {
		policy = roles.DefaultPolicy()
	}
	return &Controller{
		policy: policy,
		paths:  paths,
	}
}

// Decide evaluates one navigation to route from location. It never
// redirects while the verdict is not settled.
func (c *Controller) Decide(route Route, location string, v broker.Verdict) Decision {
	if !v.Settled {
		return Decision{State: Pending}
	}
	if v.Session == nil {
		return Decision{
			State:    RedirectLogin,
			Target:   withReturnTo(c.loginPath(route.Path), location),
			ReturnTo: location,
		}
	}
	return c.decide(route, v.Session)
}

// decide is the Deciding state: a settled verdict with a session
func (c *Controller) decide(route Route, s *sessions.Session) Decision {
	outcome := c.policy.Evaluate(s.Role, roles.Requirement{
		Path:         route.Path,
		RequiredRole: route.RequiredRole,
		PlanRequired: route.PlanRequired,
	})

	switch {
	case outcome == roles.Deny:
		return Decision{State: RedirectUnauthorized, Target: c.paths.Unauthorized, Session: s}
	case outcome == roles.ConditionalAllow && !s.PlanActive():
		return Decision{State: RedirectUpgrade, Target: c.paths.Upgrade, Session: s}
	default:
		return Decision{State: Render, Session: s}
	}
}

func (c *Controller) loginPath(routePath string) string {
	for _, prefix := range c.paths.AdminPrefixes {
		if strings.HasPrefix(routePath, prefix) {
			return c.paths.AdminLogin
		}
	}
	return c.paths.SubscriberLogin
}

func withReturnTo(target, location string) string {
	if location == "" {
		return target
	}
	return target + "?" + url.Values{ReturnToParam: {location}}.Encode()
}
