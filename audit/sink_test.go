package audit_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/portal-guard/audit"
	"github.com/stretchr/testify/require"
)

func TestSink_WritesEntries(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	memLog := audit.NewInMemoryLog()
	sink := audit.NewSink(memLog, 8, audit.WithNowTime(func() time.Time { return fixed }))

	sink.Record(audit.ActionLoginSucceeded, "master@portal.com", map[string]string{"role": "master"})
	sink.Record(audit.ActionLogout, "master@portal.com", nil)
	require.NoError(t, sink.Close(context.Background()))

	entries := memLog.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, audit.ActionLoginSucceeded, entries[0].Action)
	require.Equal(t, "master@portal.com", entries[0].ActorIdentifier)
	require.Equal(t, fixed, entries[0].Timestamp)
	require.NotEmpty(t, entries[0].ID)
	require.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestSink_RecordDoesNotBlockOnSlowLog(t *testing.T) {
	release := make(chan struct{})
	var written atomic.Int32
	slow := audit.LogFunc(func(ctx context.Context, entry audit.Entry) error {
		<-release
		written.Add(1)
		return nil
	})
	sink := audit.NewSink(slow, 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			sink.Record(audit.ActionLoginFailed, "someone", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Record blocked on a slow audit log")
	}

	close(release)
	require.NoError(t, sink.Close(context.Background()))
	// One entry in flight plus a full queue of two, the rest are dropped
	require.LessOrEqual(t, written.Load(), int32(3))
	require.GreaterOrEqual(t, written.Load(), int32(1))
}

func TestSink_WriteFailuresAreSwallowed(t *testing.T) {
	var attempts atomic.Int32
	failing := audit.LogFunc(func(ctx context.Context, entry audit.Entry) error {
		attempts.Add(1)
		if entry.Action == audit.ActionLogout {
			panic("log exploded")
		}
		return errors.New("disk full")
	})
	sink := audit.NewSink(failing, 8)

	sink.Record(audit.ActionLoginSucceeded, "a", nil)
	sink.Record(audit.ActionLogout, "a", nil)
	sink.Record(audit.ActionLoginFailed, "a", nil)

	require.NoError(t, sink.Close(context.Background()))
	require.Equal(t, int32(3), attempts.Load())
}

func TestSink_RecordAfterCloseIsDropped(t *testing.T) {
	memLog := audit.NewInMemoryLog()
	sink := audit.NewSink(memLog, 8)
	require.NoError(t, sink.Close(context.Background()))
	require.NoError(t, sink.Close(context.Background()))

	sink.Record(audit.ActionLoginSucceeded, "late", nil)
	require.Empty(t, memLog.Entries())
}

func TestSink_CloseHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	blocked := audit.LogFunc(func(ctx context.Context, entry audit.Entry) error {
		<-release
		return nil
	})
	sink := audit.NewSink(blocked, 8)
	sink.Record(audit.ActionLoginSucceeded, "a", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, sink.Close(ctx), context.DeadlineExceeded)
}

func TestSQLiteLog_Append(t *testing.T) {
	sqliteLog, err := audit.NewSQLiteLog(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer sqliteLog.Close()

	sink := audit.NewSink(sqliteLog, 8)
	sink.Record(audit.ActionLoginFailed, "intruder@example.com", map[string]string{"reason": "invalid credentials"})
	sink.Record(audit.ActionLoginFailed, "intruder@example.com", nil)
	sink.Record(audit.ActionLoginSucceeded, "master@portal.com", nil)
	require.NoError(t, sink.Close(context.Background()))

	n, err := sqliteLog.Count(context.Background(), audit.ActionLoginFailed)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
