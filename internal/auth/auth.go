// Package auth manages the OAuth 2.0 session used for calendar calls.
//
// An Authorizer moves through three states: Unauthenticated, Authenticating
// (while the interactive consent flow runs) and Authorized. Tokens are
// persisted through a TokenStore so later runs start Authorized.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// State is the authorization state of an Authorizer.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authorized
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authorized:
		return "authorized"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrNotAuthorized is returned when a token is requested outside the
// Authorized state.
var ErrNotAuthorized = errors.New("not authorized: sign in required")

// AuthError reports a failed sign-in or token refresh.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ConsentFunc runs the interactive part of the OAuth flow and returns the
// authorization code. It may adjust cfg (for example its RedirectURL) before
// building the consent URL.
type ConsentFunc func(ctx context.Context, cfg *oauth2.Config) (string, error)

// Authorizer owns the OAuth token for the calendar provider.
type Authorizer struct {
	mu      sync.Mutex
	config  *oauth2.Config
	store   TokenStore
	consent ConsentFunc
	state   State
	token   *oauth2.Token
	logger  *slog.Logger
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithConsent sets the interactive consent flow used by SignIn. The default
// is LocalServerConsent writing to stdout.
func WithConsent(consent ConsentFunc) Option {
	return func(a *Authorizer) {
		a.consent = consent
	}
}

// WithLogger sets the logger for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) {
		a.logger = logger
	}
}

// NewAuthorizer creates an Authorizer in the Unauthenticated state.
func NewAuthorizer(cfg *oauth2.Config, store TokenStore, opts ...Option) *Authorizer {
	a := &Authorizer{
		config:  cfg,
		store:   store,
		consent: LocalServerConsent(nil),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State returns the current authorization state.
func (a *Authorizer) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Restore loads a previously persisted token. When one exists the
// Authorizer becomes Authorized without any interaction.
func (a *Authorizer) Restore(ctx context.Context) error {
	token, err := a.store.LoadToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = token
	a.transition(Authorized)
	return nil
}

// SignIn runs the interactive consent flow, exchanges the code for a token
// and persists it.
func (a *Authorizer) SignIn(ctx context.Context) error {
	a.mu.Lock()
	if a.state == Authenticating {
		a.mu.Unlock()
		return &AuthError{Op: "sign-in", Err: errors.New("sign-in already in progress")}
	}
	a.transition(Authenticating)
	a.mu.Unlock()

	token, err := a.acquire(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.transition(Unauthenticated)
		return &AuthError{Op: "sign-in", Err: err}
	}
	a.token = token
	a.transition(Authorized)
	return nil
}

func (a *Authorizer) acquire(ctx context.Context) (*oauth2.Token, error) {
	code, err := a.consent(ctx, a.config)
	if err != nil {
		return nil, fmt.Errorf("failed to receive authorization code: %w", err)
	}
	if code == "" {
		return nil, errors.New("no authorization code received")
	}

	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	if err := a.store.SaveToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	return token, nil
}

// Refresh forces a refresh-token grant and persists the new token. It is
// the recovery step taken after the provider rejects a token.
func (a *Authorizer) Refresh(ctx context.Context) error {
	a.mu.Lock()
	current := a.token
	state := a.state
	a.mu.Unlock()

	if state != Authorized || current == nil {
		return &AuthError{Op: "refresh", Err: ErrNotAuthorized}
	}
	if current.RefreshToken == "" {
		return &AuthError{Op: "refresh", Err: errors.New("no refresh token available")}
	}

	// A token carrying only the refresh token is invalid, so the source
	// always performs the grant.
	token, err := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
	if err != nil {
		return &AuthError{Op: "refresh", Err: err}
	}
	if token.RefreshToken == "" {
		token.RefreshToken = current.RefreshToken
	}
	if err := a.store.SaveToken(ctx, token); err != nil {
		return &AuthError{Op: "refresh", Err: fmt.Errorf("failed to save refreshed token: %w", err)}
	}

	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
	a.logger.Info("token refreshed")
	return nil
}

// Expire drops the in-memory session after the provider rejected it even
// after a refresh. The persisted token is kept so a later SignIn can
// replace it; until then the Authorizer is Unauthenticated.
func (a *Authorizer) Expire() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = nil
	a.transition(Unauthenticated)
}

// SignOut forgets the token both in memory and in the token store.
func (a *Authorizer) SignOut(ctx context.Context) error {
	a.mu.Lock()
	a.token = nil
	a.transition(Unauthenticated)
	a.mu.Unlock()

	if err := a.store.ClearToken(ctx); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// Token implements oauth2.TokenSource. It hands out the current token as
// is: expiry is handled by the explicit Refresh step, not silently.
func (a *Authorizer) Token() (*oauth2.Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Authorized || a.token == nil {
		return nil, ErrNotAuthorized
	}
	return a.token, nil
}

// HTTPClient returns a client that authorizes every request with the
// Authorizer's current token. Unlike oauth2.NewClient it does not cache the
// token, so a Refresh takes effect on the very next request.
func (a *Authorizer) HTTPClient(ctx context.Context) *http.Client {
	base := http.DefaultTransport
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && c != nil && c.Transport != nil {
		base = c.Transport
	}
	return &http.Client{Transport: &oauth2.Transport{Source: a, Base: base}}
}

// transition MUST be called while holding a.mu.
func (a *Authorizer) transition(to State) {
	if a.state == to {
		return
	}
	a.logger.Debug("authorization state change", "from", a.state.String(), "to", to.String())
	a.state = to
}
