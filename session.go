package apiclient

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Tokens is the credential pair held by a session.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// User is the authenticated principal of a session.
type User struct {
	ID       string
	Email    string
	TenantID string
}

// SessionProvider supplies credentials to a Dispatcher and refreshes them
// when the backend answers 401.
type SessionProvider interface {
	Tokens() Tokens
	IsAuthenticated() bool
	// User returns nil when no user is known.
	User() *User
	// RefreshToken obtains new tokens. A nil result or an empty access
	// token means the session could not be refreshed.
	RefreshToken(ctx context.Context) (*Tokens, error)
}

// StaticSession is a SessionProvider with a fixed token that cannot be refreshed.
type StaticSession struct {
	AccessToken string
	TenantID    string
}

func (s StaticSession) Tokens() Tokens {
	return Tokens{AccessToken: s.AccessToken}
}

func (s StaticSession) IsAuthenticated() bool {
	return s.AccessToken != ""
}

func (s StaticSession) User() *User {
	if s.TenantID == "" {
		return nil
	}
	return &User{TenantID: s.TenantID}
}

func (s StaticSession) RefreshToken(context.Context) (*Tokens, error) {
	return nil, nil
}

// refresher coalesces concurrent refreshes of one session into a single
// RefreshToken call.
type refresher struct {
	session SessionProvider
	group   singleflight.Group
}

func newRefresher(session SessionProvider) *refresher {
	return &refresher{session: session}
}

// refresh returns the new access token, or "" when the session produced none.
func (r *refresher) refresh(ctx context.Context) (string, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		// shared by every waiter, so one caller giving up must not fail the others
		tokens, err := r.session.RefreshToken(context.WithoutCancel(ctx))
		if err != nil || tokens == nil {
			return "", err
		}
		return tokens.AccessToken, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	case <-ctx.Done():
		return "", context.Cause(ctx)
	}
}
