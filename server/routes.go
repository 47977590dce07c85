package server

import (
	"github.com/jrsteele09/portal-guard/internal/metrics"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.HomeHandler(), s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteAdminLogin, ChainMiddleware(s.AdminLoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAdminLogin, ChainMiddleware(s.AdminLoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteSubscriberLogin, ChainMiddleware(s.SubscriberLoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteSubscriberAuth, ChainMiddleware(s.SubscriberLoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))

	s.RegisterRouteHandler("GET "+RouteUnauthorized, ChainMiddleware(s.MessagePageHandler("Acesso negado", "Você não tem permissão para acessar esta página."), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteUpgrade, ChainMiddleware(s.MessagePageHandler("Planos", "Este conteúdo exige um plano ativo."), s.HTMLMiddleWare()...))

	// Guarded routes
	for _, route := range guardedRoutes {
		s.RegisterRouteHandler("GET "+route.Path, ChainMiddleware(s.GuardedPageHandler(route.Title), s.HTMLMiddleWare(s.NoStoreMiddleware, s.RequireRoute(route.Route))...))
	}

	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
}
