package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/arthaus/storefront/internal/api"
	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/platform/localstore"
	"github.com/arthaus/storefront/internal/platform/observability"
)

// AuthState is the session's position in its lifecycle.
type AuthState int

const (
	// Unauthenticated means no valid token is held.
	Unauthenticated AuthState = iota
	// Loading means a restored token is being validated against the backend.
	Loading
	// Authenticated means a token and profile are active.
	Authenticated
)

func (s AuthState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

var (
	errSessionStoreRequired  = errors.New("session: local store is required")
	errSessionClientRequired = errors.New("session: api client is required")

	// ErrSessionInvalidInput indicates a validation failure surfaced before
	// any remote call or state mutation.
	ErrSessionInvalidInput = errors.New("session: invalid input")
)

// SessionClient is the slice of the remote API the session store depends on.
type SessionClient interface {
	Login(ctx context.Context, in api.LoginInput) (api.Credentials, error)
	Register(ctx context.Context, in api.RegisterInput) (api.Credentials, error)
	CurrentUser(ctx context.Context) (domain.User, error)
	UpdateProfile(ctx context.Context, in api.UpdateProfileInput) (domain.User, error)
	ChangePassword(ctx context.Context, in api.ChangePasswordInput) error
}

// SessionDeps wires the session store's dependencies.
type SessionDeps struct {
	Store  localstore.Store
	Client SessionClient
	Logger *zap.Logger
	Clock  func() time.Time
}

// Session holds the current authentication token and profile, persists both,
// and notifies dependents when the authentication state transitions. Any
// remote call that is rejected with a 401 funnels into HandleUnauthorized,
// which applies the application-wide reset policy at most once per session.
type Session struct {
	notifier

	mu     sync.Mutex
	store  localstore.Store
	client SessionClient
	logger *zap.Logger
	now    func() time.Time

	state AuthState
	token string
	user  domain.User
}

// NewSession constructs the store without touching the network; call Restore
// to recover a persisted session.
func NewSession(deps SessionDeps) (*Session, error) {
	if deps.Store == nil {
		return nil, errSessionStoreRequired
	}
	if deps.Client == nil {
		return nil, errSessionClientRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}

	return &Session{
		store:  deps.Store,
		client: deps.Client,
		logger: logger,
		now:    now,
	}, nil
}

// Restore recovers a persisted session. A cached, unexpired token is trusted
// optimistically while the profile is revalidated in the same call; a token
// the backend rejects clears the session. Transport failures keep the cached
// profile so the user is not logged out by a flaky connection.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	token, ok := s.store.Get(localstore.KeyToken)
	if !ok || strings.TrimSpace(token) == "" {
		s.state = Unauthenticated
		s.mu.Unlock()
		return nil
	}

	var cached domain.User
	if raw, ok := s.store.Get(localstore.KeyUser); ok {
		if err := json.Unmarshal([]byte(raw), &cached); err != nil {
			// Corrupt cached profile: drop it, keep the token, revalidate.
			s.logger.Warn("discarding corrupt persisted profile", zap.Error(err))
			s.store.Remove(localstore.KeyUser)
			cached = domain.User{}
		}
	}

	s.token = token
	s.user = cached
	if cached.ID != 0 && !s.tokenExpired(token) {
		s.state = Authenticated
	} else {
		s.state = Loading
	}
	s.mu.Unlock()
	s.publish(Event{Kind: EventSessionChanged})

	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			// HandleUnauthorized already ran via the client hook when wired;
			// calling it again is a safe no-op.
			s.HandleUnauthorized()
			return err
		}
		s.mu.Lock()
		if s.state == Loading {
			s.state = Unauthenticated
			s.token = ""
			s.mu.Unlock()
			s.publish(Event{Kind: EventSessionChanged})
		} else {
			s.mu.Unlock()
		}
		s.logger.Warn("session validation unreachable, keeping cached profile", zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.user = user
	s.state = Authenticated
	s.persistLocked()
	s.mu.Unlock()
	s.publish(Event{Kind: EventSessionChanged})
	return nil
}

// Login exchanges credentials for a session. On failure nothing is persisted
// and the state is unchanged.
func (s *Session) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fmt.Errorf("%w: email and password are required", ErrSessionInvalidInput)
	}

	creds, err := s.client.Login(ctx, api.LoginInput{Email: email, Password: password})
	if err != nil {
		return err
	}

	s.adopt(creds)
	return nil
}

// Register creates an account and adopts its first session.
func (s *Session) Register(ctx context.Context, in api.RegisterInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return fmt.Errorf("%w: email and password are required", ErrSessionInvalidInput)
	}

	creds, err := s.client.Register(ctx, in)
	if err != nil {
		return err
	}

	s.adopt(creds)
	return nil
}

func (s *Session) adopt(creds api.Credentials) {
	s.mu.Lock()
	s.token = creds.Token
	s.user = creds.User
	s.state = Authenticated
	s.persistLocked()
	s.mu.Unlock()

	s.logger.Info("session established",
		zap.String("token", observability.RedactToken(creds.Token)),
		zap.String("user", observability.SanitizeUserID(creds.User.Email)))
	s.publish(Event{Kind: EventSessionChanged})
}

// Logout tears the session down synchronously, regardless of any in-flight
// requests.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.state == Unauthenticated && s.token == "" {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	s.mu.Unlock()

	s.publish(Event{Kind: EventSessionChanged})
}

// Refresh re-fetches the profile for the current token.
func (s *Session) Refresh(ctx context.Context) error {
	if _, ok := s.Token(); !ok {
		return fmt.Errorf("%w: no active session", ErrSessionInvalidInput)
	}

	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			s.HandleUnauthorized()
		}
		return err
	}

	s.mu.Lock()
	s.user = user
	s.persistLocked()
	s.mu.Unlock()
	s.publish(Event{Kind: EventSessionChanged})
	return nil
}

// UpdateProfile persists profile changes remotely and adopts the result.
func (s *Session) UpdateProfile(ctx context.Context, in api.UpdateProfileInput) error {
	if _, ok := s.Token(); !ok {
		return fmt.Errorf("%w: no active session", ErrSessionInvalidInput)
	}

	user, err := s.client.UpdateProfile(ctx, in)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.user = user
	s.persistLocked()
	s.mu.Unlock()
	s.publish(Event{Kind: EventSessionChanged})
	return nil
}

// ChangePassword rotates the password after local validation.
func (s *Session) ChangePassword(ctx context.Context, current, next, confirm string) error {
	if current == "" || next == "" {
		return fmt.Errorf("%w: current and new password are required", ErrSessionInvalidInput)
	}
	if next != confirm {
		return fmt.Errorf("%w: password confirmation does not match", ErrSessionInvalidInput)
	}
	if _, ok := s.Token(); !ok {
		return fmt.Errorf("%w: no active session", ErrSessionInvalidInput)
	}

	return s.client.ChangePassword(ctx, api.ChangePasswordInput{
		CurrentPassword: current,
		NewPassword:     next,
	})
}

// HandleUnauthorized applies the global 401 policy: clear the persisted
// token and profile and transition to Unauthenticated, exactly once even
// when several concurrent calls fail together. Wire it as the api client's
// OnUnauthorized hook.
func (s *Session) HandleUnauthorized() {
	s.mu.Lock()
	if s.state == Unauthenticated {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	s.mu.Unlock()

	s.logger.Info("session reset after authorization failure")
	s.publish(Event{Kind: EventSessionChanged})
}

// Token returns the bearer token while authenticated or validating. Pass it
// to the api client as its TokenSource.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", false
	}
	return s.token, true
}

// State reports the current authentication state.
func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the current profile while authenticated.
func (s *Session) User() (domain.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Authenticated {
		return domain.User{}, false
	}
	return s.user, true
}

// Subscribe registers a listener for session transitions.
func (s *Session) Subscribe(fn func(Event)) func() {
	return s.subscribe(fn)
}

// tokenExpired peeks at the unverified exp claim. Opaque (non-JWT) tokens
// never report expired; the backend remains the authority either way.
func (s *Session) tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	// required=false: a token without an exp claim verifies as unexpired.
	return !claims.VerifyExpiresAt(s.now().Unix(), false)
}

func (s *Session) persistLocked() {
	if err := s.store.Set(localstore.KeyToken, s.token); err != nil {
		s.logger.Warn("token persistence failed", zap.Error(err))
	}
	encoded, err := json.Marshal(s.user)
	if err != nil {
		s.logger.Warn("profile serialisation failed", zap.Error(err))
		return
	}
	if err := s.store.Set(localstore.KeyUser, string(encoded)); err != nil {
		s.logger.Warn("profile persistence failed", zap.Error(err))
	}
}

func (s *Session) clearLocked() {
	s.token = ""
	s.user = domain.User{}
	s.state = Unauthenticated
	s.store.Remove(localstore.KeyToken)
	s.store.Remove(localstore.KeyUser)
}
