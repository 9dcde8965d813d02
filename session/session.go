package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/parley/chat"
	"github.com/mbeoliero/parley/realtime"
	"github.com/mbeoliero/parley/rest"
)

// ErrSessionExpired is returned by Resume when the stored token is already
// past its expiry, before any network call is made
var ErrSessionExpired = errors.New("session: credential expired")

// ErrNotAuthenticated is returned by operations that need a live session
var ErrNotAuthenticated = errors.New("session: not authenticated")

// Options configures a Session
type Options struct {
	// BaseURL of the REST API, e.g. http://host:port/api
	BaseURL string
	// SocketURL of the realtime endpoint, e.g. ws://host:port/ws
	SocketURL string

	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectDelayMax time.Duration

	TypingTimeout time.Duration
	PageSize      int
	MaxUploadSize int64
}

// Session is the explicit lifecycle context for one authenticated identity:
// it owns the credential, the REST client, the realtime manager and the
// sync engine, and tears them all down together.
type Session struct {
	opts Options

	api     *rest.Client
	channel *realtime.Manager

	mu     sync.Mutex
	token  string
	user   *rest.User
	engine *chat.Engine
}

// New builds the component graph in the logged-out state
func New(opts Options) (*Session, error) {
	s := &Session{opts: opts}

	api, err := rest.NewClient(opts.BaseURL, rest.WithUnauthorizedHook(s.expire))
	if err != nil {
		return nil, err
	}
	s.api = api
	s.channel = realtime.NewManager(realtime.Options{
		URL:           opts.SocketURL,
		MaxAttempts:   opts.ReconnectAttempts,
		RetryDelay:    opts.ReconnectDelay,
		RetryDelayMax: opts.ReconnectDelayMax,
	})
	return s, nil
}

// API returns the REST client
func (s *Session) API() *rest.Client { return s.api }

// Channel returns the realtime manager
func (s *Session) Channel() *realtime.Manager { return s.channel }

// Engine returns the sync engine for the current identity, or nil when
// logged out
func (s *Session) Engine() *chat.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// User returns the authenticated user, or nil
func (s *Session) User() *rest.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Token returns the current session credential, or ""
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Authenticated reports whether a session is live
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != ""
}

// Login authenticates with email and password and starts the session
func (s *Session) Login(ctx context.Context, email, password string) (*rest.User, error) {
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.start(ctx, resp.Token, resp.User)
	return resp.User, nil
}

// Register creates an account and starts the session
func (s *Session) Register(ctx context.Context, req *rest.RegisterRequest) (*rest.User, error) {
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	s.start(ctx, resp.Token, resp.User)
	return resp.User, nil
}

// Resume restores a session from a stored token. An obviously expired token
// is rejected locally; otherwise the token is validated against the server
// by fetching the bound user record.
func (s *Session) Resume(ctx context.Context, token string) (*rest.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	if tokenExpired(token) {
		return nil, ErrSessionExpired
	}

	s.api.SetToken(token)
	user, err := s.api.Me(ctx)
	if err != nil {
		s.api.SetToken("")
		return nil, err
	}
	s.start(ctx, token, user)
	return user, nil
}

// Logout ends the session: best-effort server-side invalidation, then full
// local teardown. Never fails.
func (s *Session) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		log.Warn("session: server logout failed: %v", err)
	}
	s.teardown()
}

// UpdateProfile updates the authenticated user's profile
func (s *Session) UpdateProfile(ctx context.Context, req *rest.UpdateProfileRequest) (*rest.User, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	user, err := s.api.UpdateProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

// ChangePassword changes the authenticated user's password
func (s *Session) ChangePassword(ctx context.Context, current, newPassword string) error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}
	return s.api.ChangePassword(ctx, current, newPassword)
}

// UploadAvatar replaces the authenticated user's avatar image
func (s *Session) UploadAvatar(ctx context.Context, filename string, file io.Reader) (*rest.User, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	user, err := s.api.UploadAvatar(ctx, filename, file)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
	return user, nil
}

// start wires a live identity: token on the REST client, realtime connect,
// and a fresh engine bound to the channel
func (s *Session) start(ctx context.Context, token string, user *rest.User) {
	s.mu.Lock()
	if s.engine != nil {
		s.engine.Close()
	}
	s.token = token
	s.user = user
	engine := chat.NewEngine(chat.Options{
		API:           s.api,
		Channel:       s.channel,
		LocalUserId:   user.Id,
		PageSize:      s.opts.PageSize,
		TypingTimeout: s.opts.TypingTimeout,
		MaxUploadSize: s.opts.MaxUploadSize,
	})
	s.engine = engine
	s.mu.Unlock()

	s.api.SetToken(token)
	engine.Bind()

	if err := s.channel.Connect(ctx, token); err != nil {
		// The session stays usable over REST; the channel keeps its own
		// lifecycle and can be reconnected by the caller
		log.Warn("session: realtime connect failed: %v", err)
	}
}

// expire is fired by the REST client when the server rejects the
// credential: full teardown instead of a localized error
func (s *Session) expire() {
	log.Info("session: credential rejected by server, tearing down")
	s.teardown()
}

// teardown clears credential, user, engine state and the realtime channel
func (s *Session) teardown() {
	s.mu.Lock()
	engine := s.engine
	s.engine = nil
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if engine != nil {
		engine.Close()
	}
	s.channel.Disconnect()
	s.api.SetToken("")
}

// tokenExpired inspects the token's registered claims without verifying the
// signature; verification is the server's job, this only short-circuits
// tokens that are already past their expiry.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
