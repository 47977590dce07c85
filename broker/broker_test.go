package broker_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/portal-guard/broker"
	"github.com/jrsteele09/portal-guard/internal/errors"
	"github.com/jrsteele09/portal-guard/roles"
	"github.com/jrsteele09/portal-guard/sessions"
	"github.com/jrsteele09/portal-guard/sessions/providerfake"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

const grace = time.Second

type testFixture struct {
	local   *providerfake.FakeProvider
	remote  *providerfake.FakeProvider
	clock   *testingclock.FakeClock
	broker  *broker.Broker
	changes atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		local:  providerfake.NewFakeProvider(true),
		remote: providerfake.NewFakeProvider(true),
		clock:  testingclock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	f.broker = broker.New(f.local, f.remote, broker.WithClock(f.clock), broker.WithGraceWindow(grace))
	return f
}

func (f *testFixture) mount(t *testing.T) *broker.Mount {
	t.Helper()
	m := f.broker.Mount(func() { f.changes.Add(1) })
	t.Cleanup(m.Close)
	return m
}

func session(role roles.RoleType, source sessions.Source) *sessions.Session {
	return &sessions.Session{Role: role, Source: source, Identifier: fmt.Sprintf("%s@%s", role, source)}
}

func TestResolve_UnsettledWhileLoading(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)

	require.Equal(t, broker.Verdict{}, m.Resolve())

	// One provider done is not enough, even with a session
	f.remote.Hydrate(session(roles.RoleSubscriber, sessions.SourceRemote))
	require.False(t, m.Resolve().Settled)
	require.False(t, f.clock.HasWaiters(), "no grace window while loading")
}

func TestResolve_LocalTakesPrecedence(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)
	local := session(roles.RoleGeneralAdmin, sessions.SourceLocal)
	f.local.Hydrate(local)
	f.remote.Hydrate(session(roles.RoleSubscriber, sessions.SourceRemote))

	v := m.Resolve()
	require.True(t, v.Settled)
	require.Same(t, local, v.Session)
	require.False(t, v.Conflict)
}

func TestResolve_RemoteSession(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)
	remote := session(roles.RoleFranchisee, sessions.SourceRemote)
	f.local.Hydrate(nil)
	f.remote.Hydrate(remote)

	v := m.Resolve()
	require.True(t, v.Settled)
	require.Same(t, remote, v.Session)
}

func TestResolve_FlagsNonAdministrativeConflict(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)
	local := session(roles.RoleFranchisee, sessions.SourceLocal)
	f.local.Hydrate(local)
	f.remote.Hydrate(session(roles.RoleSubscriber, sessions.SourceRemote))

	v := m.Resolve()
	require.True(t, v.Settled)
	require.True(t, v.Conflict)
	require.Same(t, local, v.Session)
}

func TestResolve_GraceWindowElapses(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)
	f.local.Hydrate(nil)
	f.remote.Hydrate(nil)

	require.False(t, m.Resolve().Settled)
	require.True(t, f.clock.HasWaiters())

	f.clock.Step(grace - time.Millisecond)
	require.False(t, m.Resolve().Settled)

	before := f.changes.Load()
	f.clock.Step(time.Millisecond)
	require.Eventually(t, func() bool { return f.changes.Load() > before }, time.Second, time.Millisecond)

	v := m.Resolve()
	require.True(t, v.Settled)
	require.Nil(t, v.Session)

	// Later resolutions stay settled and never restart the window
	require.Equal(t, v, m.Resolve())
	require.False(t, f.clock.HasWaiters())
}

func TestResolve_SessionDuringGraceWindow(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)
	f.local.Hydrate(nil)
	f.remote.Hydrate(nil)
	require.False(t, m.Resolve().Settled)

	// The slower provider restores its session inside the window
	f.clock.Step(grace / 2)
	remote := session(roles.RoleSubscriber, sessions.SourceRemote)
	f.remote.SetSession(remote)

	v := m.Resolve()
	require.True(t, v.Settled)
	require.Same(t, remote, v.Session)
	require.False(t, f.clock.HasWaiters(), "grace timer is cancelled")

	before := f.changes.Load()
	f.clock.Step(grace)
	require.Never(t, func() bool { return f.changes.Load() != before }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestResolve_LoginAfterSettlingSkipsGraceWindow(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)
	f.local.Hydrate(nil)
	f.remote.Hydrate(nil)
	m.Resolve()
	f.clock.Step(grace)
	require.Eventually(t, func() bool { return m.Resolve().Settled }, time.Second, time.Millisecond)

	local := session(roles.RoleMaster, sessions.SourceLocal)
	f.local.SetSession(local)
	v := m.Resolve()
	require.True(t, v.Settled)
	require.Same(t, local, v.Session)

	// Logout or idle expiry settles immediately
	f.local.SetSession(nil)
	v = m.Resolve()
	require.True(t, v.Settled)
	require.Nil(t, v.Session)
	require.False(t, f.clock.HasWaiters())
}

func TestResolve_AbsenceAfterSessionSettlesImmediately(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)
	f.local.Hydrate(session(roles.RoleContentAdmin, sessions.SourceLocal))
	f.remote.Hydrate(nil)
	require.NotNil(t, m.Resolve().Session)

	f.local.SetSession(nil)
	v := m.Resolve()
	require.True(t, v.Settled)
	require.Nil(t, v.Session)
}

func TestResolve_FaultyProviderReadsAsNoSession(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)
	f.local.Hydrate(session(roles.RoleMaster, sessions.SourceLocal))
	f.remote.Hydrate(nil)
	f.local.SetPanicOnGet(true)

	require.NotPanics(t, func() { m.Resolve() })
	f.clock.Step(grace)
	require.Eventually(t, func() bool {
		v := m.Resolve()
		return v.Settled && v.Session == nil
	}, time.Second, time.Millisecond)
}

func TestMount_ProviderChangesNotify(t *testing.T) {
	f := setupTestFixture(t)
	f.mount(t)

	f.local.Hydrate(nil)
	f.remote.Hydrate(nil)
	require.EqualValues(t, 2, f.changes.Load())
}

func TestMount_TickOnlyDuringGraceWindow(t *testing.T) {
	f := setupTestFixture(t)
	m := f.mount(t)
	f.local.Hydrate(nil)
	f.remote.Hydrate(nil)
	before := f.changes.Load()

	m.Tick()
	require.Equal(t, before, f.changes.Load())

	m.Resolve()
	m.Tick()
	require.Equal(t, before+1, f.changes.Load())
}

func TestMount_CloseCancelsEverything(t *testing.T) {
	f := setupTestFixture(t)
	m := f.broker.Mount(func() { f.changes.Add(1) })
	f.local.Hydrate(nil)
	f.remote.Hydrate(nil)
	m.Resolve()
	require.Equal(t, 1, f.local.Len())

	m.Close()
	m.Close()
	require.Zero(t, f.local.Len())
	require.Zero(t, f.remote.Len())
	require.False(t, f.clock.HasWaiters())

	before := f.changes.Load()
	f.clock.Step(grace)
	f.remote.SetSession(session(roles.RoleSubscriber, sessions.SourceRemote))
	require.Never(t, func() bool { return f.changes.Load() != before }, 50*time.Millisecond, 5*time.Millisecond)
	require.False(t, m.Resolve().Settled)
}

func TestMount_GraceWindowPerMount(t *testing.T) {
	f := setupTestFixture(t)
	first := f.mount(t)
	f.local.Hydrate(nil)
	f.remote.Hydrate(nil)
	first.Resolve()
	f.clock.Step(grace)
	require.Eventually(t, func() bool { return first.Resolve().Settled }, time.Second, time.Millisecond)

	second := f.mount(t)
	require.False(t, second.Resolve().Settled, "a new mount observes its own grace window")
}

func TestTerminate(t *testing.T) {
	f := setupTestFixture(t)
	f.local.Hydrate(session(roles.RoleMaster, sessions.SourceLocal))
	f.remote.Hydrate(nil)

	require.NoError(t, f.broker.Terminate(context.Background()))
	require.Equal(t, 1, f.local.SignOuts())
	require.Zero(t, f.remote.SignOuts())
	require.Nil(t, f.broker.Current())
}

func TestTerminate_ReportsSignOutErrors(t *testing.T) {
	f := setupTestFixture(t)
	f.local.Hydrate(session(roles.RoleMaster, sessions.SourceLocal))
	f.remote.Hydrate(session(roles.RoleSubscriber, sessions.SourceRemote))
	f.remote.SetSignOutError(errors.ErrProviderUnavailable)

	err := f.broker.Terminate(context.Background())
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)
	require.Equal(t, 1, f.local.SignOuts())
	require.Equal(t, 1, f.remote.SignOuts())
}
