package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/jrsteele09/portal-session-server/store"
	"github.com/jrsteele09/portal-session-server/store/memory"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Unix(1_700_000_000, 0)

// recordingKV wraps a memory.KV and records the TTL of every write.
type recordingKV struct {
	*memory.KV
	ttls   map[string]time.Duration
	getErr error
}

func (r *recordingKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.ttls[key] = ttl
	return r.KV.Set(ctx, key, value, ttl)
}

func (r *recordingKV) Get(ctx context.Context, key string) ([]byte, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.KV.Get(ctx, key)
}

type fixture struct {
	now   time.Time
	kv    *recordingKV
	store *store.SessionStore
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: baseTime}
	nowFunc := func() time.Time { return f.now }
	f.kv = &recordingKV{KV: memory.New(memory.WithNowFunc(nowFunc)), ttls: map[string]time.Duration{}}
	f.store = store.New(f.kv, store.WithNowFunc(nowFunc))
	return f
}

func testSession(exp int64) sessions.TokenData {
	return sessions.TokenData{
		OrgID:       "org",
		TenantID:    "tenant",
		Environment: sessions.EnvironmentTest,
		Exp:         exp,
		State:       sessions.StateCreated,
	}
}

func TestSessionStore_SetAndGet(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	data := testSession(baseTime.Add(time.Hour).Unix())
	require.NoError(t, f.store.SetSession(ctx, "abc", data))
	require.Equal(t, time.Hour, f.kv.ttls["session:abc"])

	got, err := f.store.GetSession(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, data, *got)
}

func TestSessionStore_GetMissing(t *testing.T) {
	f := setupFixture(t)
	got, err := f.store.GetSession(context.Background(), "sess_missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStore_DefaultTTLWithoutExp(t *testing.T) {
	f := setupFixture(t)
	require.NoError(t, f.store.SetSession(context.Background(), "abc", testSession(0)))
	require.Equal(t, store.DefaultSessionTTL, f.kv.ttls["session:abc"])

	got, err := f.store.GetSession(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestSessionStore_LazyExpiryOnRead(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SetSession(ctx, "old", testSession(baseTime.Add(-time.Minute).Unix())))
	require.Equal(t, time.Second, f.kv.ttls["session:old"], "ttl is clamped to one second")
	require.True(t, f.kv.Contains("session:old"))

	got, err := f.store.GetSession(ctx, "old")
	require.NoError(t, err)
	require.Nil(t, got)
	require.False(t, f.kv.Contains("session:old"), "expired record is deleted on read")
}

func TestSessionStore_ExpiryPassesWhileStored(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SetSession(ctx, "abc", testSession(baseTime.Add(2*time.Second).Unix())))
	f.now = baseTime.Add(3 * time.Second)

	got, err := f.store.GetSession(ctx, "abc")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStore_Delete(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SetSession(ctx, "abc", testSession(baseTime.Add(time.Hour).Unix())))
	require.NoError(t, f.store.DeleteSession(ctx, "abc"))
	got, err := f.store.GetSession(ctx, "abc")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStore_BackendErrorPropagates(t *testing.T) {
	f := setupFixture(t)
	boom := errors.New("connection refused")
	f.kv.getErr = boom

	_, err := f.store.GetSession(context.Background(), "abc")
	require.ErrorIs(t, err, boom)
}

func TestSessionStore_CorruptRecord(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, "session:bad", []byte("{not json"), time.Minute))

	_, err := f.store.GetSession(ctx, "bad")
	require.Error(t, err)
}

func TestSessionStore_KeyPrefix(t *testing.T) {
	kv := memory.New()
	s := store.New(kv, store.WithKeyPrefix("portal:"))
	require.NoError(t, s.SetSession(context.Background(), "abc", testSession(time.Now().Add(time.Hour).Unix())))
	require.True(t, kv.Contains("portal:session:abc"))
}

func TestSessionStore_RawPassThrough(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Set(ctx, "raw", []byte("v"), time.Minute))
	v, err := f.store.Get(ctx, "raw")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, f.store.Delete(ctx, "raw"))
	v, err = f.store.Get(ctx, "raw")
	require.NoError(t, err)
	require.Nil(t, v)
}

func testChallenge(expiresAt int64) sessions.OTCChallenge {
	return sessions.OTCChallenge{
		MethodID:    "phone-number-test-1",
		Method:      sessions.OTCMethodSMS,
		Destination: "+15555550100",
		MaxAttempts: 3,
		ExpiresAt:   expiresAt,
	}
}

func TestSessionStore_OTCChallenge(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	ch := testChallenge(baseTime.Add(10 * time.Minute).Unix())
	require.NoError(t, f.store.SetOTCChallenge(ctx, "abc", ch))
	require.Equal(t, 10*time.Minute, f.kv.ttls["otc:abc"])

	got, err := f.store.GetOTCChallenge(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, ch, *got)

	updated, err := f.store.IncrementOTCAttempts(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, 1, updated.Attempts)

	got, err = f.store.GetOTCChallenge(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, 1, got.Attempts)

	require.NoError(t, f.store.DeleteOTCChallenge(ctx, "abc"))
	got, err = f.store.GetOTCChallenge(ctx, "abc")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSessionStore_OTCLazyExpiry(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SetOTCChallenge(ctx, "abc", testChallenge(baseTime.Add(-time.Second).Unix())))
	got, err := f.store.GetOTCChallenge(ctx, "abc")
	require.NoError(t, err)
	require.Nil(t, got)
	require.False(t, f.kv.Contains("otc:abc"))
}

func TestSessionStore_IncrementMissingChallenge(t *testing.T) {
	f := setupFixture(t)
	got, err := f.store.IncrementOTCAttempts(context.Background(), "none")
	require.NoError(t, err)
	require.Nil(t, got)
}
