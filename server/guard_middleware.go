package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/portal-guard/guard"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/rs/zerolog/log"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyPortal stores the request's portal context
	ContextKeyPortal ContextKey = "portal"
	// ContextKeySession stores the session a guarded route rendered for
	ContextKeySession ContextKey = "session"
)

const portalCookieName = "portal_id"

// PortalMiddleware attaches the browser's portal context, creating it on the
// first request, and records the request as user activity.
func (s *Server) PortalMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if cookie, err := r.Cookie(portalCookieName); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				id = cookie.Value
			}
		}
		if id == "" {
			id = uuid.New().String()
			s.setPortalCookie(w, id)
		}

		p, err := s.portal(id)
		if err != nil {
			log.Err(err).Str("portal_id", id).Msg("failed to create portal context")
			http.Error(w, "500 - Internal server error", http.StatusInternalServerError)
			return
		}
		p.touch(s.clock.Now())

		ctx := context.WithValue(r.Context(), ContextKeyPortal, p)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) portal(id string) (*portal, error) {
	if p, ok := s.portals.Get(id); ok {
		return p, nil
	}
	for _, stale := range s.portals.Prune(s.clock.Now(), s.portalMaxAge()) {
		stale.Close()
	}
	return s.portals.GetOrCreate(id, s.newPortal)
}

// RequireRoute runs the access guard for route and only calls next on Render
func (s *Server) RequireRoute(route guard.Route) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p := portalFromContext(r.Context())
			if p == nil {
				http.Error(w, "500 - Internal server error", http.StatusInternalServerError)
				return
			}

			d := p.guard.Navigate(route, r.URL.RequestURI())
			if s.env == "DEV" {
				logDecision(r.Method, r.URL.Path, d)
			}

			switch d.State {
			case guard.Render:
				ctx := context.WithValue(r.Context(), ContextKeySession, d.Session)
				next(w, r.WithContext(ctx))
			case guard.RedirectLogin, guard.RedirectUnauthorized, guard.RedirectUpgrade:
				redirectSuccess(w, r, d.Target)
			default:
				s.renderLoading(w, r)
			}
		}
	}
}

func portalFromContext(ctx context.Context) *portal {
	p, _ := ctx.Value(ContextKeyPortal).(*portal)
	return p
}

// SessionFromContext returns the session a guarded route rendered for
func SessionFromContext(ctx context.Context) *sessions.Session {
	s, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return s
}

func (s *Server) setPortalCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     portalCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.GetEnv() == "PROD", // Only secure in production
		SameSite: http.SameSiteLaxMode,
	})
}
