package guard_test

import (
	"testing"

	"github.com/jrsteele09/portal-guard/broker"
	"github.com/jrsteele09/portal-guard/guard"
	"github.com/jrsteele09/portal-guard/roles"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/stretchr/testify/require"
)

func settledWith(role roles.RoleType, plan sessions.PlanStatus) broker.Verdict {
	return broker.Verdict{
		Settled: true,
		Session: &sessions.Session{Role: role, Source: sessions.SourceLocal, Identifier: string(role), Plan: plan},
	}
}

func TestDecide_MasterAlwaysRenders(t *testing.T) {
	c := guard.NewController(nil, guard.DefaultPaths())
	paths := []string{"/admin/dashboard", "/admin/equipe", "/admin/ai/modelos", "/admin/franquias", "/admin/assinantes", "/franquia/painel", "/area-do-assinante/premium"}
	required := []roles.RoleType{roles.RequireAdmin, roles.RoleMaster, roles.RoleGeneralAdmin, roles.RoleContentAdmin, roles.RoleFranchisee, roles.RoleSubscriber}

	for _, path := range paths {
		for _, req := range required {
			for _, planRequired := range []bool{false, true} {
				d := c.Decide(guard.Route{Path: path, RequiredRole: req, PlanRequired: planRequired}, path, settledWith(roles.RoleMaster, sessions.PlanNone))
				require.Equal(t, guard.Render, d.State, "%s %s plan=%v", path, req, planRequired)
			}
		}
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		route    guard.Route
		location string
		verdict  broker.Verdict
		want     guard.Decision
	}{
		{
			name:    "pending while unsettled",
			route:   guard.Route{Path: "/admin/dashboard", RequiredRole: roles.RequireAdmin},
			verdict: broker.Verdict{},
			want:    guard.Decision{State: guard.Pending},
		},
		{
			name:     "pending even with a session while unsettled",
			route:    guard.Route{Path: "/admin/dashboard", RequiredRole: roles.RequireAdmin},
			location: "/admin/dashboard",
			verdict:  broker.Verdict{Session: &sessions.Session{Role: roles.RoleSubscriber}},
			want:     guard.Decision{State: guard.Pending},
		},
		{
			name:     "unauthenticated admin route",
			route:    guard.Route{Path: "/admin/dashboard", RequiredRole: roles.RequireAdmin},
			location: "/admin/dashboard",
			verdict:  broker.Verdict{Settled: true},
			want: guard.Decision{
				State:    guard.RedirectLogin,
				Target:   "/login-admin?return_to=%2Fadmin%2Fdashboard",
				ReturnTo: "/admin/dashboard",
			},
		},
		{
			name:     "unauthenticated franchise route",
			route:    guard.Route{Path: "/franquia/painel", RequiredRole: roles.RoleFranchisee},
			location: "/franquia/painel?aba=leads",
			verdict:  broker.Verdict{Settled: true},
			want: guard.Decision{
				State:    guard.RedirectLogin,
				Target:   "/login-admin?return_to=%2Ffranquia%2Fpainel%3Faba%3Dleads",
				ReturnTo: "/franquia/painel?aba=leads",
			},
		},
		{
			name:     "unauthenticated subscriber route",
			route:    guard.Route{Path: "/area-do-assinante/perfil", RequiredRole: roles.RoleSubscriber},
			location: "/area-do-assinante/perfil",
			verdict:  broker.Verdict{Settled: true},
			want: guard.Decision{
				State:    guard.RedirectLogin,
				Target:   "/area-do-assinante?return_to=%2Farea-do-assinante%2Fperfil",
				ReturnTo: "/area-do-assinante/perfil",
			},
		},
		{
			name:    "subscriber on admin route",
			route:   guard.Route{Path: "/admin/dashboard", RequiredRole: roles.RequireAdmin},
			verdict: settledWith(roles.RoleSubscriber, sessions.PlanActive),
			want:    guard.Decision{State: guard.RedirectUnauthorized, Target: "/acesso-negado"},
		},
		{
			name:    "franchisee on subscriber route",
			route:   guard.Route{Path: "/area-do-assinante/perfil", RequiredRole: roles.RoleSubscriber},
			verdict: settledWith(roles.RoleFranchisee, sessions.PlanActive),
			want:    guard.Decision{State: guard.RedirectUnauthorized, Target: "/acesso-negado"},
		},
		{
			name:    "subscriber with inactive plan",
			route:   guard.Route{Path: "/area-do-assinante/premium", RequiredRole: roles.RoleSubscriber, PlanRequired: true},
			verdict: settledWith(roles.RoleSubscriber, sessions.PlanInactive),
			want:    guard.Decision{State: guard.RedirectUpgrade, Target: "/planos"},
		},
		{
			name:    "subscriber with no plan",
			route:   guard.Route{Path: "/area-do-assinante/premium", RequiredRole: roles.RoleSubscriber, PlanRequired: true},
			verdict: settledWith(roles.RoleSubscriber, sessions.PlanNone),
			want:    guard.Decision{State: guard.RedirectUpgrade, Target: "/planos"},
		},
		{
			name:    "subscriber with active plan",
			route:   guard.Route{Path: "/area-do-assinante/premium", RequiredRole: roles.RoleSubscriber, PlanRequired: true},
			verdict: settledWith(roles.RoleSubscriber, sessions.PlanActive),
			want:    guard.Decision{State: guard.Render},
		},
		{
			name:    "general admin skips plan check",
			route:   guard.Route{Path: "/area-do-assinante/premium", RequiredRole: roles.RoleSubscriber, PlanRequired: true},
			verdict: settledWith(roles.RoleGeneralAdmin, sessions.PlanNone),
			want:    guard.Decision{State: guard.Render},
		},
	}

	c := guard.NewController(roles.DefaultPolicy(), guard.DefaultPaths())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Decide(tt.route, tt.location, tt.verdict)
			require.Equal(t, tt.want.State, d.State)
			require.Equal(t, tt.want.Target, d.Target)
			require.Equal(t, tt.want.ReturnTo, d.ReturnTo)
			if d.State == guard.Pending {
				require.Nil(t, d.Session)
			} else {
				require.Same(t, tt.verdict.Session, d.Session)
			}
		})
	}
}

func TestDecide_GeneralAdminScenario(t *testing.T) {
	c := guard.NewController(nil, guard.DefaultPaths())
	v := settledWith(roles.RoleGeneralAdmin, sessions.PlanNone)

	d := c.Decide(guard.Route{Path: "/admin/relatorios", RequiredRole: roles.RequireAdmin}, "/admin/relatorios", v)
	require.Equal(t, guard.Render, d.State)

	d = c.Decide(guard.Route{Path: "/admin/equipe", RequiredRole: roles.RequireAdmin}, "/admin/equipe", v)
	require.Equal(t, guard.RedirectUnauthorized, d.State)
}

func TestDecide_MasterOnlyOverrides(t *testing.T) {
	c := guard.NewController(nil, guard.DefaultPaths())
	reserved := []string{"/admin/franquias", "/admin/equipe/permissoes", "/admin/ai", "/admin/ai/prompts", "/admin/assinantes"}

	for _, role := range []roles.RoleType{roles.RoleGeneralAdmin, roles.RoleContentAdmin} {
		for _, path := range reserved {
			d := c.Decide(guard.Route{Path: path, RequiredRole: roles.RequireAdmin}, path, settledWith(role, sessions.PlanNone))
			require.Equal(t, guard.RedirectUnauthorized, d.State, "%s on %s", role, path)
		}
	}
}

func TestState_String(t *testing.T) {
	require.Equal(t, "redirect_login", guard.RedirectLogin.String())
	require.True(t, guard.RedirectUpgrade.IsRedirect())
	require.False(t, guard.Render.IsRedirect())
	require.False(t, guard.Pending.IsRedirect())
}
