package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/portal-guard/guard"
	"github.com/jrsteele09/portal-guard/internal/errors"
	"github.com/jrsteele09/portal-guard/notify"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/rs/zerolog/log"
)

const contentTypeHTML = "text/html; charset=utf-8"

var (
	loadingTmpl = mustParseTemplate("loading.html")
	loginTmpl   = mustParseTemplate("login.html")
	pageTmpl    = mustParseTemplate("page.html")
)

// LoginPageData contains data for rendering a login page
type LoginPageData struct {
	Title    string
	Action   string
	ReturnTo string
	Error    string
	Email    string // Preserve email on error
	Notices  []notify.Notice
}

// PageData contains data for rendering a content page
type PageData struct {
	Title       string
	Description string
	Session     *sessions.Session
	Notices     []notify.Notice
}

// HomeHandler serves the public landing page
func (s *Server) HomeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := portalFromContext(r.Context())
		s.renderPage(w, PageData{
			Title:   s.config.GetAppName(),
			Session: p.broker.Current(),
			Notices: p.notices.Drain(),
		})
	}
}

// GuardedPageHandler renders a page the guard allowed
func (s *Server) GuardedPageHandler(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := portalFromContext(r.Context())
		s.renderPage(w, PageData{
			Title:   title,
			Session: SessionFromContext(r.Context()),
			Notices: p.notices.Drain(),
		})
	}
}

// MessagePageHandler renders a static message page such as the redirect targets
func (s *Server) MessagePageHandler(title, description string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := portalFromContext(r.Context())
		s.renderPage(w, PageData{
			Title:       title,
			Description: description,
			Session:     p.broker.Current(),
			Notices:     p.notices.Drain(),
		})
	}
}

// AdminLoginPageHandler displays the administrative login (GET /login-admin)
func (s *Server) AdminLoginPageHandler() http.HandlerFunc {
	return s.loginPageHandler("Acesso administrativo", RouteAdminLogin)
}

// SubscriberLoginPageHandler displays the subscriber login (GET /area-do-assinante)
func (s *Server) SubscriberLoginPageHandler() http.HandlerFunc {
	return s.loginPageHandler("Área do assinante", RouteSubscriberAuth)
}

func (s *Server) loginPageHandler(title, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := portalFromContext(r.Context())
		query := r.URL.Query()

		data := LoginPageData{
			Title:    title,
			Action:   action,
			ReturnTo: query.Get(guard.ReturnToParam),
			Error:    query.Get("error"),
			Email:    query.Get("email"),
			Notices:  p.notices.Drain(),
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		if err := loginTmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("Failed to render login template")
			http.Error(w, "Failed to render login page", http.StatusInternalServerError)
		}
	}
}

// AdminLoginSubmissionHandler authenticates against the local account table
func (s *Server) AdminLoginSubmissionHandler() http.HandlerFunc {
	return s.loginSubmissionHandler(RouteAdminLogin, RouteAdminDashboard,
		func(ctx context.Context, p *portal, email, password string) (*sessions.Session, error) {
			return p.local.Authenticate(ctx, email, password)
		})
}

// SubscriberLoginSubmissionHandler authenticates against the hosted auth service
func (s *Server) SubscriberLoginSubmissionHandler() http.HandlerFunc {
	return s.loginSubmissionHandler(RouteSubscriberLogin, RouteSubscriberProfile,
		func(ctx context.Context, p *portal, email, password string) (*sessions.Session, error) {
			return p.remote.SignIn(ctx, email, password)
		})
}

type authenticateFunc func(ctx context.Context, p *portal, email, password string) (*sessions.Session, error)

func (s *Server) loginSubmissionHandler(loginPath, defaultTarget string, authenticate authenticateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := portalFromContext(r.Context())

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		email := r.FormValue("email")
		password := r.FormValue("password")
		returnTo := r.FormValue(guard.ReturnToParam)

		if email == "" || password == "" {
			redirectWithErrorAndEmail(w, r, loginPath, "E-mail e senha são obrigatórios", email, returnTo)
			return
		}

		if _, err := authenticate(r.Context(), p, email, password); err != nil {
			p.notices.Notify(r.Context(), notify.LoginFailed)
			msg := notify.LoginFailed.Description
			if !errors.Is(err, errors.ErrInvalidCredentials) {
				log.Err(err).Msg("login failed")
				msg = "Serviço de autenticação indisponível"
			}
			redirectWithErrorAndEmail(w, r, loginPath, msg, email, returnTo)
			return
		}

		redirectSuccess(w, r, safeReturnTo(returnTo, defaultTarget))
	}
}

// LogoutHandler ends whichever sessions the portal holds
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := portalFromContext(r.Context())
		if err := p.broker.Terminate(r.Context()); err != nil {
			log.Err(err).Str("portal_id", p.id).Msg("Logout: failed to end session")
		}
		redirectSuccess(w, r, RouteHome)
	}
}

func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", contentTypeHTML)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Refresh", "1")
	if err := loadingTmpl.Execute(w, nil); err != nil {
		log.Err(err).Msg("Failed to render loading template")
	}
}

func (s *Server) renderPage(w http.ResponseWriter, data PageData) {
	w.Header().Set("Content-Type", contentTypeHTML)
	if err := pageTmpl.Execute(w, data); err != nil {
		log.Err(err).Msg("Failed to render page template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// safeReturnTo only follows local paths, never another host
func safeReturnTo(returnTo, fallback string) string {
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") || strings.HasPrefix(returnTo, "/\\") {
		return fallback
	}
	return returnTo
}

// redirectWithErrorAndEmail helper for htmx-aware error redirects that preserves email and return_to
func redirectWithErrorAndEmail(w http.ResponseWriter, r *http.Request, path, errorMsg, email, returnTo string) {
	query := url.Values{"error": {errorMsg}}
	if email != "" {
		query.Set("email", email)
	}
	if returnTo != "" {
		query.Set(guard.ReturnToParam, returnTo)
	}
	redirectSuccess(w, r, path+"?"+query.Encode())
}

// redirectSuccess helper for htmx-aware redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}
