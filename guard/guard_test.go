package guard_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/portal-guard/broker"
	"github.com/jrsteele09/portal-guard/guard"
	"github.com/jrsteele09/portal-guard/notify"
	"github.com/jrsteele09/portal-guard/roles"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/jrsteele09/portal-guard/sessions/providerfake"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

const grace = time.Second

var (
	adminDashboard = guard.Route{Path: "/admin/dashboard", RequiredRole: roles.RequireAdmin}
	adminTeam      = guard.Route{Path: "/admin/equipe", RequiredRole: roles.RequireAdmin}
)

type testFixture struct {
	local   *providerfake.FakeProvider
	remote  *providerfake.FakeProvider
	clock   *testingclock.FakeClock
	notices *notify.Recorder
	guard   *guard.Guard

	mu      sync.Mutex
	emitted []guard.Decision
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		local:   providerfake.NewFakeProvider(true),
		remote:  providerfake.NewFakeProvider(true),
		clock:   testingclock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		notices: notify.NewRecorder(),
	}
	b := broker.New(f.local, f.remote, broker.WithClock(f.clock), broker.WithGraceWindow(grace))
	f.guard = guard.New(guard.NewController(nil, guard.DefaultPaths()), b, f.notices, guard.WithListener(func(d guard.Decision) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.emitted = append(f.emitted, d)
	}))
	t.Cleanup(f.guard.Close)
	return f
}

func (f *testFixture) states() []guard.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	var states []guard.State
	for _, d := range f.emitted {
		states = append(states, d.State)
	}
	return states
}

func TestGuard_NoRedirectWhileLoading(t *testing.T) {
	f := setupTestFixture(t)

	d := f.guard.Navigate(adminDashboard, "/admin/dashboard")
	require.Equal(t, guard.Pending, d.State)

	// Remote finishes first with nothing; local is still loading
	f.remote.Hydrate(nil)
	f.clock.Step(10 * grace)
	require.Equal(t, guard.Pending, f.guard.Decision().State)
	require.Empty(t, f.states())
}

func TestGuard_UnauthenticatedRedirectsToLoginOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.guard.Navigate(adminDashboard, "/admin/dashboard")

	f.local.Hydrate(nil)
	f.remote.Hydrate(nil)
	require.Equal(t, guard.Pending, f.guard.Decision().State, "grace window absorbs the empty hydration")

	f.clock.Step(grace)
	require.Eventually(t, func() bool {
		return f.guard.Decision().State == guard.RedirectLogin
	}, time.Second, time.Millisecond)

	d := f.guard.Decision()
	require.Equal(t, "/login-admin?return_to=%2Fadmin%2Fdashboard", d.Target)
	require.Equal(t, "/admin/dashboard", d.ReturnTo)
	require.Equal(t, []guard.State{guard.RedirectLogin}, f.states())
}

func TestGuard_LoginOnMountedGuardRendersImmediately(t *testing.T) {
	f := setupTestFixture(t)
	f.guard.Navigate(adminDashboard, "/admin/dashboard")
	f.local.Hydrate(nil)
	f.remote.Hydrate(nil)
	f.clock.Step(grace)
	require.Eventually(t, func() bool {
		return f.guard.Decision().State == guard.RedirectLogin
	}, time.Second, time.Millisecond)

	f.local.SetSession(&sessions.Session{Role: roles.RoleGeneralAdmin, Source: sessions.SourceLocal})
	require.Equal(t, guard.Render, f.guard.Decision().State)

	// Logout settles immediately without a second grace window
	f.local.SetSession(nil)
	require.Equal(t, guard.RedirectLogin, f.guard.Decision().State)
	require.Equal(t, []guard.State{guard.RedirectLogin, guard.Render, guard.RedirectLogin}, f.states())
}

func TestGuard_AccessDeniedNotifiesOncePerTransition(t *testing.T) {
	f := setupTestFixture(t)
	admin := &sessions.Session{Role: roles.RoleGeneralAdmin, Source: sessions.SourceLocal}
	f.local.Hydrate(admin)
	f.remote.Hydrate(nil)

	require.Equal(t, guard.Render, f.guard.Navigate(adminDashboard, "/admin/dashboard").State)
	require.Zero(t, f.notices.Count(notify.AccessDenied.Title))

	require.Equal(t, guard.RedirectUnauthorized, f.guard.Navigate(adminTeam, "/admin/equipe").State)
	require.Equal(t, 1, f.notices.Count(notify.AccessDenied.Title))

	// Provider churn re-evaluates to the same decision without a new notice
	f.remote.SetSession(nil)
	f.local.SetSession(admin)
	require.Equal(t, 1, f.notices.Count(notify.AccessDenied.Title))

	// A new navigation is a new transition
	f.guard.Navigate(adminTeam, "/admin/equipe")
	require.Equal(t, 2, f.notices.Count(notify.AccessDenied.Title))
}

func TestGuard_PlanGatedRoute(t *testing.T) {
	f := setupTestFixture(t)
	f.local.Hydrate(nil)
	f.remote.Hydrate(&sessions.Session{Role: roles.RoleSubscriber, Source: sessions.SourceRemote, Plan: sessions.PlanInactive})

	premium := guard.Route{Path: "/area-do-assinante/premium", RequiredRole: roles.RoleSubscriber, PlanRequired: true}
	d := f.guard.Navigate(premium, "/area-do-assinante/premium")
	require.Equal(t, guard.RedirectUpgrade, d.State)
	require.Equal(t, "/planos", d.Target)

	f.remote.SetSession(&sessions.Session{Role: roles.RoleSubscriber, Source: sessions.SourceRemote, Plan: sessions.PlanActive})
	require.Equal(t, guard.Render, f.guard.Decision().State)
}

func TestGuard_CloseStopsReevaluation(t *testing.T) {
	f := setupTestFixture(t)
	f.guard.Navigate(adminDashboard, "/admin/dashboard")
	f.guard.Close()

	f.local.Hydrate(&sessions.Session{Role: roles.RoleMaster, Source: sessions.SourceLocal})
	f.remote.Hydrate(nil)
	require.Equal(t, guard.Pending, f.guard.Decision().State)
	require.Empty(t, f.states())
	require.Zero(t, f.local.Len())
}
