package auth

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/tallyhq-io/tally-client/internal/store"
	"github.com/tallyhq-io/tally-client/pkg/tally"
)

// State is the outcome position of one recovery run.
type State int

// Recovery states. A run moves NoIssue → RefreshAttempted →
// {Recovered, ReauthAttempted} → {Recovered, Failed}.
const (
	StateNoIssue State = iota
	StateRefreshAttempted
	StateReauthAttempted
	StateRecovered
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNoIssue:
		return "no_issue"
	case StateRefreshAttempted:
		return "refresh_attempted"
	case StateReauthAttempted:
		return "reauth_attempted"
	case StateRecovered:
		return "recovered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TokenRefresher exchanges a refresh token for a new pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*tally.TokenPair, error)
}

// RecoveryFlow repairs a 401: at most one refresh call and at most one
// re-auth call per triggering failure, never recursive. Concurrent 401
// handlers share a single in-flight run through the singleflight group
// instead of each refreshing on their own.
type RecoveryFlow struct {
	creds  *store.CredentialStore
	tokens TokenRefresher
	reauth tally.Reauthenticator
	logger tally.Logger
	group  singleflight.Group
}

// NewRecoveryFlow creates a recovery flow. reauth and logger may be nil.
func NewRecoveryFlow(creds *store.CredentialStore, tokens TokenRefresher, reauth tally.Reauthenticator, logger tally.Logger) *RecoveryFlow {
	return &RecoveryFlow{
		creds:  creds,
		tokens: tokens,
		reauth: reauth,
		logger: logger,
	}
}

// Recover runs the state machine once, deduplicating concurrent callers.
// StateRecovered tells the dispatcher to replay the original request with
// fresh headers; StateFailed tells it to surface the original 401.
func (f *RecoveryFlow) Recover(ctx context.Context) State {
	result, _, _ := f.group.Do("recover", func() (interface{}, error) {
		return f.recover(ctx), nil
	})

	state, ok := result.(State)
	if !ok {
		return StateFailed
	}

	return state
}

func (f *RecoveryFlow) recover(ctx context.Context) State {
	state := StateNoIssue

	refreshToken := f.creds.RefreshToken()
	if refreshToken != "" {
		state = StateRefreshAttempted

		pair, err := f.tokens.Refresh(ctx, refreshToken)
		if err == nil {
			f.creds.SetTokens(pair.Token, pair.RefreshToken)
			f.logState(StateRecovered, state)

			return StateRecovered
		}

		// The refresh token is known-bad now; keeping it would make
		// every future 401 repeat this failing call.
		f.creds.ClearRefreshToken()

		if f.logger != nil {
			f.logger.Debug("token refresh failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	state = StateReauthAttempted

	if f.reauth != nil && f.reauth.EnsureAuthenticated(ctx) {
		f.logState(StateRecovered, state)

		return StateRecovered
	}

	f.logState(StateFailed, state)

	return StateFailed
}

func (f *RecoveryFlow) logState(final, via State) {
	if f.logger == nil {
		return
	}

	f.logger.Debug("auth recovery finished", map[string]interface{}{
		"state": final.String(),
		"via":   via.String(),
	})
}
