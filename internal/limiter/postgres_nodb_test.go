package limiter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

/************ fake pgx ************/
type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakePool struct {
	qrErr  error
	qrLast time.Time

	lastQuerySQL string
	lastArgs     []any

	lastExecSQL  string
	lastExecArgs []any
	execErr      error
}

func (f *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastExecSQL = sql
	f.lastExecArgs = args
	return pgconn.CommandTag{}, f.execErr
}

func (f *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.lastQuerySQL = sql
	f.lastArgs = args
	if !strings.Contains(sql, "SELECT created_at") {
		return fakeRow{scan: func(dest ...any) error { return errors.New("unexpected query") }}
	}
	return fakeRow{scan: func(dest ...any) error {
		if f.qrErr != nil {
			return f.qrErr
		}
		*(dest[0].(*time.Time)) = f.qrLast
		return nil
	}}
}

var clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestPG(fp *fakePool) *PG {
	l := NewPGWithQuerier(fp, RegistrationWindow, SubmissionWindow)
	l.now = func() time.Time { return clock }
	return l
}

func TestAllowRegistration_NoRow_Allows(t *testing.T) {
	fp := &fakePool{qrErr: pgx.ErrNoRows}
	l := newTestPG(fp)

	ok, dur, err := l.AllowRegistration(context.Background(), "203.0.113.7")
	if err != nil || !ok || dur != 0 {
		t.Fatalf("AllowRegistration no-row: ok=%v dur=%v err=%v", ok, dur, err)
	}
	if !strings.Contains(fp.lastQuerySQL, "FROM registration_attempts") {
		t.Fatalf("unexpected query: %s", fp.lastQuerySQL)
	}
	if got := fp.lastArgs[1].(time.Time); !got.Equal(clock.Add(-24 * time.Hour)) {
		t.Fatalf("cutoff=%v", got)
	}
}

func TestAllowRegistration_RecentAttempt_Blocks(t *testing.T) {
	fp := &fakePool{qrLast: clock.Add(-2 * time.Hour)}
	l := newTestPG(fp)

	ok, dur, err := l.AllowRegistration(context.Background(), "203.0.113.7")
	if err != nil || ok || dur != 22*time.Hour {
		t.Fatalf("AllowRegistration blocked: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestAllowRegistration_UnknownOriginExempt(t *testing.T) {
	fp := &fakePool{qrLast: clock}
	l := newTestPG(fp)

	for _, origin := range []string{UnknownOrigin, ""} {
		ok, dur, err := l.AllowRegistration(context.Background(), origin)
		if err != nil || !ok || dur != 0 {
			t.Fatalf("origin %q: ok=%v dur=%v err=%v", origin, ok, dur, err)
		}
	}
	if fp.lastQuerySQL != "" {
		t.Fatalf("exempt origin must not hit the store, got %s", fp.lastQuerySQL)
	}
}

func TestAllowRegistration_DBError_Propagates(t *testing.T) {
	fp := &fakePool{qrErr: errors.New("db boom")}
	l := newTestPG(fp)

	ok, _, err := l.AllowRegistration(context.Background(), "203.0.113.7")
	if err == nil || ok {
		t.Fatalf("want error propagate, got ok=%v err=%v", ok, err)
	}
}

func TestRecordRegistration(t *testing.T) {
	fp := &fakePool{}
	l := newTestPG(fp)

	if err := l.RecordRegistration(context.Background(), "203.0.113.7"); err != nil {
		t.Fatalf("record err: %v", err)
	}
	if !strings.Contains(fp.lastExecSQL, "INSERT INTO registration_attempts") {
		t.Fatalf("unexpected exec: %s", fp.lastExecSQL)
	}
	if fp.lastExecArgs[0] != "203.0.113.7" {
		t.Fatalf("origin arg=%v", fp.lastExecArgs[0])
	}
}

func TestRecordRegistration_ExecError_Propagates(t *testing.T) {
	fp := &fakePool{execErr: errors.New("exec fail")}
	l := newTestPG(fp)

	if err := l.RecordRegistration(context.Background(), "o"); err == nil {
		t.Fatalf("want exec error")
	}
}

func TestAllowSubmission_FiveMinutesAgo_WaitsTwentyFive(t *testing.T) {
	fp := &fakePool{qrLast: clock.Add(-5 * time.Minute)}
	l := newTestPG(fp)
	bot := uuid.Must(uuid.NewV4())

	ok, dur, err := l.AllowSubmission(context.Background(), bot)
	if err != nil || ok || dur != 25*time.Minute {
		t.Fatalf("AllowSubmission: ok=%v dur=%v err=%v", ok, dur, err)
	}
	if !strings.Contains(fp.lastQuerySQL, "status='published'") {
		t.Fatalf("only published submissions count: %s", fp.lastQuerySQL)
	}
	if fp.lastArgs[0] != bot {
		t.Fatalf("bot arg=%v", fp.lastArgs[0])
	}
}

func TestAllowSubmission_WindowElapsed_Allows(t *testing.T) {
	fp := &fakePool{qrLast: clock.Add(-30 * time.Minute)}
	l := newTestPG(fp)

	ok, dur, err := l.AllowSubmission(context.Background(), uuid.Must(uuid.NewV4()))
	if err != nil || !ok || dur != 0 {
		t.Fatalf("AllowSubmission elapsed: ok=%v dur=%v err=%v", ok, dur, err)
	}
}

func TestAllowSubmission_NoRow_Allows(t *testing.T) {
	fp := &fakePool{qrErr: pgx.ErrNoRows}
	l := newTestPG(fp)

	ok, _, err := l.AllowSubmission(context.Background(), uuid.Must(uuid.NewV4()))
	if err != nil || !ok {
		t.Fatalf("AllowSubmission no-row: ok=%v err=%v", ok, err)
	}
}
