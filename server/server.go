package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/portal-guard/audit"
	"github.com/jrsteele09/portal-guard/guard"
	"github.com/jrsteele09/portal-guard/internal/config"
	"github.com/jrsteele09/portal-guard/localauth"
	"github.com/jrsteele09/portal-guard/remoteauth"
	"github.com/jrsteele09/portal-guard/roles"
	"github.com/jrsteele09/portal-guard/statestore"
	"k8s.io/utils/clock"
)

// Dependencies are the collaborators shared by every portal context
type Dependencies struct {
	Accounts []localauth.Account
	Store    statestore.Store
	Audit    audit.Recorder
	Remote   *remoteauth.Client // nil disables the remote provider
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	deps       Dependencies
	controller *guard.Controller
	clock      clock.WithDelayedExecution
	portals    *portalRegistry
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithClock sets the clock for grace windows and idle countdowns (primarily for testing)
func WithClock(c clock.WithDelayedExecution) Option {
	return func(s *Server) {
		s.clock = c
	}
}

// WithPolicy replaces the default role policy
func WithPolicy(policy *roles.Policy) Option {
	return func(s *Server) {
		s.controller = guard.NewController(policy, guard.PathsFromConfig(s.config))
	}
}

func New(config config.Config, deps Dependencies, options ...Option) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("[Server New] state store is required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("[Server New] audit recorder is required")
	}

	s := &Server{
		env:        config.GetEnv(),
		mux:        http.NewServeMux(),
		config:     config,
		deps:       deps,
		controller: guard.NewController(roles.DefaultPolicy(), guard.PathsFromConfig(config)),
		clock:      clock.RealClock{},
		portals:    newPortalRegistry(),
	}
	for _, opt := range options {
		opt(s)
	}

	// Fail at startup rather than on the first request
	if _, err := localauth.NewProvider(deps.Accounts, statestore.NewInMemoryStore(), deps.Audit); err != nil {
		return nil, fmt.Errorf("[Server New] invalid account table: %w", err)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close tears down every portal context
func (s *Server) Close() {
	for _, p := range s.portals.DeleteAll() {
		p.Close()
	}
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// portalMaxAge is how long an unused portal context is kept
func (s *Server) portalMaxAge() time.Duration {
	return 2 * s.config.GetIdleTimeout()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

func logDecision(method, path string, d guard.Decision) {
	color := Green
	switch {
	case d.State == guard.Pending:
		color = Gray
	case d.State == guard.RedirectUnauthorized:
		color = Red
	case d.State.IsRedirect():
		color = Yellow
	}
	paddedMethod := fmt.Sprintf(" %-7s", method)
	log.Printf("[%-19s] %s %s%s%s %s\n", methodColors[method]+paddedMethod+ResetColor, path, color, d.State, ResetColor, d.Target)
}
