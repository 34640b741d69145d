package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq-io/tally-client/internal/auth"
	"github.com/tallyhq-io/tally-client/internal/store"
	"github.com/tallyhq-io/tally-client/pkg/tally"
)

var errRefreshRejected = errors.New("refresh rejected")

type stubRefresher struct {
	calls int32
	pair  *tally.TokenPair
	err   error
	delay time.Duration
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (*tally.TokenPair, error) {
	atomic.AddInt32(&s.calls, 1)

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	if s.err != nil {
		return nil, s.err
	}

	return s.pair, nil
}

type stubReauth struct {
	calls  int32
	result bool
	apply  func()
}

func (s *stubReauth) EnsureAuthenticated(ctx context.Context) bool {
	atomic.AddInt32(&s.calls, 1)

	if s.apply != nil {
		s.apply()
	}

	return s.result
}

func newStoreWithTokens(t *testing.T, access, refresh string) *store.CredentialStore {
	t.Helper()

	creds := store.NewCredentialStore(store.NewMemoryKeyring(), nil)
	if access != "" || refresh != "" {
		creds.SetTokens(access, refresh)
	}

	return creds
}

func TestRecover_RefreshSucceeds(t *testing.T) {
	t.Parallel()

	creds := newStoreWithTokens(t, "stale", "rtk")
	refresher := &stubRefresher{pair: &tally.TokenPair{Token: "fresh", RefreshToken: "rtk2"}}
	reauth := &stubReauth{result: true}

	flow := auth.NewRecoveryFlow(creds, refresher, reauth, nil)

	state := flow.Recover(context.Background())

	assert.Equal(t, auth.StateRecovered, state)
	assert.Equal(t, "fresh", creds.AccessToken())
	assert.Equal(t, "rtk2", creds.RefreshToken())
	assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.calls))
	// Re-auth is never consulted when the refresh succeeds.
	assert.Zero(t, atomic.LoadInt32(&reauth.calls))
}

func TestRecover_RefreshFailsReauthSucceeds(t *testing.T) {
	t.Parallel()

	creds := newStoreWithTokens(t, "stale", "bad-rtk")
	refresher := &stubRefresher{err: errRefreshRejected}
	reauth := &stubReauth{result: true, apply: func() {
		creds.SetTokens("relogin-access", "relogin-refresh")
	}}

	flow := auth.NewRecoveryFlow(creds, refresher, reauth, nil)

	state := flow.Recover(context.Background())

	assert.Equal(t, auth.StateRecovered, state)
	assert.Equal(t, "relogin-access", creds.AccessToken())
	assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&reauth.calls))
}

func TestRecover_BothFail(t *testing.T) {
	t.Parallel()

	creds := newStoreWithTokens(t, "stale", "bad-rtk")
	refresher := &stubRefresher{err: errRefreshRejected}
	reauth := &stubReauth{result: false}

	flow := auth.NewRecoveryFlow(creds, refresher, reauth, nil)

	state := flow.Recover(context.Background())

	assert.Equal(t, auth.StateFailed, state)
	// The known-bad refresh token is discarded so the failing call is not
	// repeated on every future 401.
	assert.Empty(t, creds.RefreshToken())
}

func TestRecover_NoRefreshTokenGoesStraightToReauth(t *testing.T) {
	t.Parallel()

	creds := newStoreWithTokens(t, "", "")
	refresher := &stubRefresher{}
	reauth := &stubReauth{result: true}

	flow := auth.NewRecoveryFlow(creds, refresher, reauth, nil)

	state := flow.Recover(context.Background())

	assert.Equal(t, auth.StateRecovered, state)
	assert.Zero(t, atomic.LoadInt32(&refresher.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&reauth.calls))
}

func TestRecover_NoReauthConfigured(t *testing.T) {
	t.Parallel()

	creds := newStoreWithTokens(t, "stale", "")
	flow := auth.NewRecoveryFlow(creds, &stubRefresher{}, nil, nil)

	state := flow.Recover(context.Background())
	assert.Equal(t, auth.StateFailed, state)
}

func TestRecover_ConcurrentCallersShareOneFlight(t *testing.T) {
	t.Parallel()

	creds := newStoreWithTokens(t, "stale", "rtk")
	refresher := &stubRefresher{
		pair:  &tally.TokenPair{Token: "fresh"},
		delay: 100 * time.Millisecond,
	}

	flow := auth.NewRecoveryFlow(creds, refresher, nil, nil)

	const callers = 8

	var wg sync.WaitGroup

	states := make([]auth.State, callers)

	for i := 0; i < callers; i++ {
		i := i

		wg.Add(1)

		go func() {
			defer wg.Done()

			states[i] = flow.Recover(context.Background())
		}()
	}

	wg.Wait()

	for _, state := range states {
		require.Equal(t, auth.StateRecovered, state)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&refresher.calls))
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no_issue", auth.StateNoIssue.String())
	assert.Equal(t, "refresh_attempted", auth.StateRefreshAttempted.String())
	assert.Equal(t, "reauth_attempted", auth.StateReauthAttempted.String())
	assert.Equal(t, "recovered", auth.StateRecovered.String())
	assert.Equal(t, "failed", auth.StateFailed.String())
}
