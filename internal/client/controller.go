// Package client implements the application-side session controller: it holds
// the current token, drives re-authentication at startup, opens and closes
// the presence subscription, and exposes the online set to the rest of the
// program.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/domain"
)

// State enumerates the controller's lifecycle.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

var (
	// ErrNotAuthenticated is returned for operations requiring a session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrBusy is returned when a transition is already in flight.
	ErrBusy = errors.New("operation in progress")
	// ErrAborted is returned when a logout completed while the
	// authentication attempt was still in flight; its result is discarded.
	ErrAborted = errors.New("authentication aborted by logout")
)

// Controller is the per-client session state machine. All exported methods
// are safe for concurrent use; transitions are serialized by the mutex.
type Controller struct {
	api    API
	dialer Dialer
	store  TokenStore
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	token  string
	user   *domain.PublicUser
	online []string
	stream Stream
	// gen is bumped by Logout; an auth attempt commits its result only if
	// the generation it started under is still current.
	gen uint64
}

// NewController starts in the Anonymous state.
func NewController(api API, dialer Dialer, store TokenStore, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{api: api, dialer: dialer, store: store, logger: logger}
}

// Signup registers a new account and opens the presence subscription.
func (c *Controller) Signup(ctx context.Context, fullName, email, password, bio string) error {
	return c.authenticate(ctx, func(ctx context.Context) (*domain.PublicUser, string, error) {
		return c.api.Signup(ctx, fullName, email, password, bio)
	})
}

// Login authenticates with existing credentials and opens the presence
// subscription.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	return c.authenticate(ctx, func(ctx context.Context) (*domain.PublicUser, string, error) {
		return c.api.Login(ctx, email, password)
	})
}

func (c *Controller) authenticate(ctx context.Context, fn func(context.Context) (*domain.PublicUser, string, error)) error {
	c.mu.Lock()
	if c.state != StateAnonymous {
		state := c.state
		c.mu.Unlock()
		if state == StateAuthenticated {
			return nil
		}
		return ErrBusy
	}
	c.state = StateAuthenticating
	gen := c.gen
	c.mu.Unlock()

	user, token, err := fn(ctx)

	c.mu.Lock()
	if c.gen != gen || c.state != StateAuthenticating {
		// A logout finished while the call was in flight; the user asked to
		// be logged out, so the late result must not resurrect the session.
		c.mu.Unlock()
		return ErrAborted
	}
	if err != nil {
		c.state = StateAnonymous
		c.mu.Unlock()
		return err
	}
	// Persisting inside the critical section keeps the stored token atomic
	// with the state commit relative to Logout's clear.
	if err := c.store.Save(token, time.Time{}); err != nil {
		c.logger.Warn("failed to persist token", zap.Error(err))
	}
	c.token = token
	c.user = user
	c.online = nil
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.connect(ctx)
	return nil
}

// Restore re-validates a durably stored token at startup. A missing token
// leaves the controller Anonymous without error; a rejected token is cleared
// and the rejection reason returned.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateAnonymous {
		c.mu.Unlock()
		return nil
	}
	c.state = StateAuthenticating
	gen := c.gen
	c.mu.Unlock()

	fail := func(err error) error {
		c.mu.Lock()
		if c.gen == gen && c.state == StateAuthenticating {
			c.state = StateAnonymous
		}
		c.mu.Unlock()
		return err
	}

	token, err := c.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return fail(nil)
		}
		return fail(err)
	}

	user, err := c.api.Check(ctx, token)
	if err != nil {
		_ = c.store.Clear()
		return fail(err)
	}

	c.mu.Lock()
	if c.gen != gen || c.state != StateAuthenticating {
		c.mu.Unlock()
		return ErrAborted
	}
	c.token = token
	c.user = user
	c.online = nil
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.connect(ctx)
	return nil
}

// connect opens the presence subscription. Opening while one is already open
// is a no-op. A transport failure is logged but does not revoke the
// authenticated state; the token is still valid for request/response calls.
func (c *Controller) connect(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateAuthenticated || c.stream != nil {
		c.mu.Unlock()
		return
	}
	token := c.token
	c.mu.Unlock()

	stream, err := c.dialer.Dial(ctx, token)
	if err != nil {
		c.logger.Warn("presence connection failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.state != StateAuthenticated || c.stream != nil {
		c.mu.Unlock()
		_ = stream.Close()
		return
	}
	c.stream = stream
	c.mu.Unlock()

	go c.consume(stream)
}

// consume applies pushed online sets until the stream ends. Frames arriving
// after the stream was detached (logout, replacement) are dropped.
func (c *Controller) consume(stream Stream) {
	for ids := range stream.Updates() {
		c.mu.Lock()
		if c.stream == stream && c.state == StateAuthenticated {
			c.online = ids
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	if c.stream == stream {
		c.stream = nil
	}
	c.mu.Unlock()
}

// Logout discards the durable token, closes the subscription, and returns to
// Anonymous. Safe to call in any state.
func (c *Controller) Logout(_ context.Context) error {
	c.mu.Lock()
	if c.state == StateAnonymous {
		c.mu.Unlock()
		return nil
	}
	c.gen++
	c.state = StateDisconnecting
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear stored token", zap.Error(err))
	}
	if stream != nil {
		_ = stream.Close()
	}

	c.mu.Lock()
	c.token = ""
	c.user = nil
	c.online = nil
	c.state = StateAnonymous
	c.mu.Unlock()
	return nil
}

// UpdateProfile is available only while Authenticated; failure leaves all
// state unchanged.
func (c *Controller) UpdateProfile(ctx context.Context, fullName, bio, profilePic string) error {
	c.mu.Lock()
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	token := c.token
	c.mu.Unlock()

	user, err := c.api.UpdateProfile(ctx, token, fullName, bio, profilePic)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == StateAuthenticated {
		c.user = user
	}
	c.mu.Unlock()
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentUser returns the authenticated profile, or nil.
func (c *Controller) CurrentUser() *domain.PublicUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// OnlineUsers returns a copy of the last pushed online set.
func (c *Controller) OnlineUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.online))
	copy(out, c.online)
	return out
}

// Connected reports whether a presence subscription is open.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}
