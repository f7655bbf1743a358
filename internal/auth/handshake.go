package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tictactoe-lobby/internal/store"

	"github.com/rs/zerolog/log"
)

const defaultLookupTimeout = 3 * time.Second

// Identity is attached to a connection once the handshake succeeds.
type Identity struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*store.User, error)
}

type Authenticator struct {
	verifier TokenVerifier
	users    UserDirectory
	timeout  time.Duration
}

func NewAuthenticator(verifier TokenVerifier, users UserDirectory, timeout time.Duration) *Authenticator {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &Authenticator{verifier: verifier, users: users, timeout: timeout}
}

// Authenticate resolves token to an identity. Every failure is one of
// ErrTokenRequired, ErrInvalidToken, ErrUserNotFound or ErrAuthFailed.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (id Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("auth_handshake_panic")
			id, err = Identity{}, ErrAuthFailed
		}
	}()

	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrTokenRequired
	}
	userID, err := a.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := a.lookup(ctx, userID)
	switch {
	case err == nil && user != nil:
		return Identity{
			UserID:    user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		}, nil
	case err == nil, errors.Is(err, store.ErrNotFound):
		return Identity{}, ErrUserNotFound
	default:
		log.Warn().Err(err).Str("user_id", userID).Msg("auth_user_lookup_failed")
		return Identity{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
}

type lookupResult struct {
	user *store.User
	err  error
}

// lookup bounds the directory call by a.timeout even when the directory
// ignores its context.
func (a *Authenticator) lookup(ctx context.Context, userID string) (*store.User, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- lookupResult{err: fmt.Errorf("user lookup panic: %v", r)}
			}
		}()
		u, err := a.users.FindByID(ctx, userID)
		done <- lookupResult{user: u, err: err}
	}()

	select {
	case res := <-done:
		return res.user, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BearerToken reads the token from the query string, the Authorization
// header or the access_token cookie, in that order.
func BearerToken(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("token")); v != "" {
		return v
	}
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
	}
	if c, err := r.Cookie("access_token"); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
