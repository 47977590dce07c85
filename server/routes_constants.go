package server

import (
	"github.com/jrsteele09/portal-guard/guard"
	"github.com/jrsteele09/portal-guard/roles"
)

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHome = "/"

	// Auth Routes - Login & Logout
	RouteAdminLogin      = "/login-admin"
	RouteSubscriberLogin = "/area-do-assinante"
	RouteSubscriberAuth  = "/area-do-assinante/login"
	RouteLogout          = "/logout"

	// Redirect destinations
	RouteUnauthorized = "/acesso-negado"
	RouteUpgrade      = "/planos"

	// Admin Routes
	RouteAdminDashboard   = "/admin/dashboard"
	RouteAdminReports     = "/admin/relatorios"
	RouteAdminNews        = "/admin/noticias"
	RouteAdminTeam        = "/admin/equipe"
	RouteAdminFranchises  = "/admin/franquias"
	RouteAdminSubscribers = "/admin/assinantes"
	RouteAdminAI          = "/admin/ai"

	// Franchisee Routes
	RouteFranchisePanel = "/franquia/painel"

	// Subscriber Routes
	RouteSubscriberProfile = "/area-do-assinante/perfil"
	RouteSubscriberPremium = "/area-do-assinante/premium"

	// Observability
	RouteMetrics = "/metrics"
)

// guardedRoute is a route declaration plus its page title
type guardedRoute struct {
	guard.Route
	Title string
}

// guardedRoutes is the route tree. Every entry is served by the guard.
var guardedRoutes = []guardedRoute{
	{Route: guard.Route{Path: RouteAdminDashboard, RequiredRole: roles.RequireAdmin}, Title: "Painel administrativo"},
	{Route: guard.Route{Path: RouteAdminReports, RequiredRole: roles.RequireAdmin}, Title: "Relatórios"},
	{Route: guard.Route{Path: RouteAdminNews, RequiredRole: roles.RequireAdmin}, Title: "Notícias"},
	{Route: guard.Route{Path: RouteAdminTeam, RequiredRole: roles.RequireAdmin}, Title: "Equipe e permissões"},
	{Route: guard.Route{Path: RouteAdminFranchises, RequiredRole: roles.RequireAdmin}, Title: "Franquias"},
	{Route: guard.Route{Path: RouteAdminSubscribers, RequiredRole: roles.RequireAdmin}, Title: "Assinantes"},
	{Route: guard.Route{Path: RouteAdminAI, RequiredRole: roles.RequireAdmin}, Title: "Administração de IA"},
	{Route: guard.Route{Path: RouteFranchisePanel, RequiredRole: roles.RoleFranchisee}, Title: "Painel da franquia"},
	{Route: guard.Route{Path: RouteSubscriberProfile, RequiredRole: roles.RoleSubscriber}, Title: "Meu perfil"},
	{Route: guard.Route{Path: RouteSubscriberPremium, RequiredRole: roles.RoleSubscriber, PlanRequired: true}, Title: "Conteúdo premium"},
}
