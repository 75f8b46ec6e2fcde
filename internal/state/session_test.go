package state

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/arthaus/storefront/internal/api"
	"github.com/arthaus/storefront/internal/domain"
	"github.com/arthaus/storefront/internal/platform/localstore"
)

type sessionClientStub struct {
	loginFn          func(ctx context.Context, in api.LoginInput) (api.Credentials, error)
	registerFn       func(ctx context.Context, in api.RegisterInput) (api.Credentials, error)
	currentUserFn    func(ctx context.Context) (domain.User, error)
	updateProfileFn  func(ctx context.Context, in api.UpdateProfileInput) (domain.User, error)
	changePasswordFn func(ctx context.Context, in api.ChangePasswordInput) error
}

func (s *sessionClientStub) Login(ctx context.Context, in api.LoginInput) (api.Credentials, error) {
	if s.loginFn == nil {
		return api.Credentials{}, errors.New("login not stubbed")
	}
	return s.loginFn(ctx, in)
}

func (s *sessionClientStub) Register(ctx context.Context, in api.RegisterInput) (api.Credentials, error) {
	if s.registerFn == nil {
		return api.Credentials{}, errors.New("register not stubbed")
	}
	return s.registerFn(ctx, in)
}

func (s *sessionClientStub) CurrentUser(ctx context.Context) (domain.User, error) {
	if s.currentUserFn == nil {
		return domain.User{}, errors.New("current user not stubbed")
	}
	return s.currentUserFn(ctx)
}

func (s *sessionClientStub) UpdateProfile(ctx context.Context, in api.UpdateProfileInput) (domain.User, error) {
	if s.updateProfileFn == nil {
		return domain.User{}, errors.New("update profile not stubbed")
	}
	return s.updateProfileFn(ctx, in)
}

func (s *sessionClientStub) ChangePassword(ctx context.Context, in api.ChangePasswordInput) error {
	if s.changePasswordFn == nil {
		return errors.New("change password not stubbed")
	}
	return s.changePasswordFn(ctx, in)
}

func newTestSession(t *testing.T, store localstore.Store, client SessionClient) *Session {
	t.Helper()
	if client == nil {
		client = &sessionClientStub{}
	}
	s, err := NewSession(SessionDeps{Store: store, Client: client})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func seedSession(t *testing.T, store localstore.Store, token string, user domain.User) {
	t.Helper()
	if err := store.Set(localstore.KeyToken, token); err != nil {
		t.Fatalf("seed token: %v", err)
	}
	encoded, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("marshal user: %v", err)
	}
	if err := store.Set(localstore.KeyUser, string(encoded)); err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "42",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestSessionLoginAdoptsCredentials(t *testing.T) {
	store := localstore.NewMemoryStore()
	user := domain.User{ID: 42, Email: "claire@example.fr", FirstName: "Claire"}
	client := &sessionClientStub{
		loginFn: func(_ context.Context, in api.LoginInput) (api.Credentials, error) {
			if in.Email != "claire@example.fr" {
				t.Fatalf("unexpected login email %q", in.Email)
			}
			return api.Credentials{Token: "tok_abc", User: user}, nil
		},
	}
	s := newTestSession(t, store, client)

	if err := s.Login(context.Background(), "claire@example.fr", "tournesols"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if s.State() != Authenticated {
		t.Fatalf("expected Authenticated, got %v", s.State())
	}
	if token, ok := s.Token(); !ok || token != "tok_abc" {
		t.Fatalf("Token() = %q, %v", token, ok)
	}
	if persisted, ok := store.Get(localstore.KeyToken); !ok || persisted != "tok_abc" {
		t.Fatalf("expected persisted token, got %q, %v", persisted, ok)
	}
}

func TestSessionLoginFailureLeavesStateUntouched(t *testing.T) {
	store := localstore.NewMemoryStore()
	client := &sessionClientStub{
		loginFn: func(context.Context, api.LoginInput) (api.Credentials, error) {
			return api.Credentials{}, &api.Error{Status: http.StatusUnauthorized, Code: "invalid_credentials"}
		},
	}
	s := newTestSession(t, store, client)

	if err := s.Login(context.Background(), "claire@example.fr", "wrong"); err == nil {
		t.Fatal("expected login error")
	}
	if s.State() != Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", s.State())
	}
	if _, ok := store.Get(localstore.KeyToken); ok {
		t.Fatal("expected no persisted token after failed login")
	}
}

func TestSessionLoginValidatesInput(t *testing.T) {
	s := newTestSession(t, localstore.NewMemoryStore(), nil)
	err := s.Login(context.Background(), "  ", "")
	if !errors.Is(err, ErrSessionInvalidInput) {
		t.Fatalf("expected ErrSessionInvalidInput, got %v", err)
	}
}

func TestSessionRestoreOptimisticThenRevalidated(t *testing.T) {
	store := localstore.NewMemoryStore()
	cached := domain.User{ID: 42, Email: "claire@example.fr", FirstName: "Claire"}
	seedSession(t, store, signedToken(t, time.Now().Add(time.Hour)), cached)

	var sawLoading atomic.Bool
	refreshed := cached
	refreshed.Phone = "+33 6 12 34 56 78"
	client := &sessionClientStub{
		currentUserFn: func(context.Context) (domain.User, error) {
			return refreshed, nil
		},
	}
	s := newTestSession(t, store, client)
	s.Subscribe(func(Event) {
		if s.State() == Loading {
			sawLoading.Store(true)
		}
	})

	if err := s.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if s.State() != Authenticated {
		t.Fatalf("expected Authenticated, got %v", s.State())
	}
	user, ok := s.User()
	if !ok || user.Phone != refreshed.Phone {
		t.Fatalf("expected revalidated profile, got %+v, %v", user, ok)
	}
	if sawLoading.Load() {
		t.Fatal("expected optimistic restore to skip the loading state")
	}
}

func TestSessionRestoreClearsOnRejectedToken(t *testing.T) {
	store := localstore.NewMemoryStore()
	seedSession(t, store, "tok_revoked", domain.User{ID: 42, Email: "claire@example.fr"})
	client := &sessionClientStub{
		currentUserFn: func(context.Context) (domain.User, error) {
			return domain.User{}, &api.Error{Status: http.StatusUnauthorized, Code: "unauthorized"}
		},
	}
	s := newTestSession(t, store, client)

	if err := s.Restore(context.Background()); err == nil {
		t.Fatal("expected restore error")
	}
	if s.State() != Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", s.State())
	}
	if _, ok := store.Get(localstore.KeyToken); ok {
		t.Fatal("expected persisted token to be cleared")
	}
	if _, ok := store.Get(localstore.KeyUser); ok {
		t.Fatal("expected persisted profile to be cleared")
	}
}

func TestSessionRestoreTransportFailureKeepsCachedProfile(t *testing.T) {
	store := localstore.NewMemoryStore()
	cached := domain.User{ID: 42, Email: "claire@example.fr", FirstName: "Claire"}
	seedSession(t, store, signedToken(t, time.Now().Add(time.Hour)), cached)
	client := &sessionClientStub{
		currentUserFn: func(context.Context) (domain.User, error) {
			return domain.User{}, &api.Error{Status: 0}
		},
	}
	s := newTestSession(t, store, client)

	if err := s.Restore(context.Background()); err == nil {
		t.Fatal("expected restore error")
	}
	if s.State() != Authenticated {
		t.Fatalf("expected cached session to survive, got %v", s.State())
	}
	user, ok := s.User()
	if !ok || user.Email != cached.Email {
		t.Fatalf("expected cached profile, got %+v, %v", user, ok)
	}
}

func TestSessionRestoreOpaqueTokenTrustedOptimistically(t *testing.T) {
	store := localstore.NewMemoryStore()
	cached := domain.User{ID: 42, Email: "claire@example.fr", FirstName: "Claire"}
	seedSession(t, store, "tok_opaque_not_a_jwt", cached)
	client := &sessionClientStub{
		currentUserFn: func(context.Context) (domain.User, error) {
			return domain.User{}, &api.Error{Status: 0}
		},
	}
	s := newTestSession(t, store, client)

	if err := s.Restore(context.Background()); err == nil {
		t.Fatal("expected restore error")
	}
	if s.State() != Authenticated {
		t.Fatalf("expected opaque token to be trusted optimistically, got %v", s.State())
	}
	if user, ok := s.User(); !ok || user.Email != cached.Email {
		t.Fatalf("expected cached profile, got %+v, %v", user, ok)
	}
}

func TestSessionRestoreExpiredTokenRequiresRevalidation(t *testing.T) {
	store := localstore.NewMemoryStore()
	seedSession(t, store, signedToken(t, time.Now().Add(-time.Hour)), domain.User{ID: 42, Email: "claire@example.fr"})
	client := &sessionClientStub{
		currentUserFn: func(context.Context) (domain.User, error) {
			return domain.User{}, &api.Error{Status: 0}
		},
	}
	s := newTestSession(t, store, client)

	if err := s.Restore(context.Background()); err == nil {
		t.Fatal("expected restore error")
	}
	if s.State() != Unauthenticated {
		t.Fatalf("expected expired token without revalidation to end Unauthenticated, got %v", s.State())
	}
}

func TestSessionLogoutIsSynchronous(t *testing.T) {
	store := localstore.NewMemoryStore()
	client := &sessionClientStub{
		loginFn: func(context.Context, api.LoginInput) (api.Credentials, error) {
			return api.Credentials{Token: "tok_abc", User: domain.User{ID: 42, Email: "claire@example.fr"}}, nil
		},
	}
	s := newTestSession(t, store, client)
	if err := s.Login(context.Background(), "claire@example.fr", "tournesols"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	s.Logout()
	if s.State() != Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", s.State())
	}
	if _, ok := s.Token(); ok {
		t.Fatal("expected no token after logout")
	}
	if _, ok := store.Get(localstore.KeyToken); ok {
		t.Fatal("expected persisted token removed on logout")
	}
}

func TestSessionHandleUnauthorizedResetsOnce(t *testing.T) {
	store := localstore.NewMemoryStore()
	client := &sessionClientStub{
		loginFn: func(context.Context, api.LoginInput) (api.Credentials, error) {
			return api.Credentials{Token: "tok_abc", User: domain.User{ID: 42, Email: "claire@example.fr"}}, nil
		},
	}
	s := newTestSession(t, store, client)
	if err := s.Login(context.Background(), "claire@example.fr", "tournesols"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	var resets atomic.Int32
	s.Subscribe(func(Event) { resets.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.HandleUnauthorized()
		}()
	}
	wg.Wait()

	if got := resets.Load(); got != 1 {
		t.Fatalf("expected exactly one reset notification, got %d", got)
	}
	if s.State() != Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", s.State())
	}
}

func TestSessionChangePasswordValidation(t *testing.T) {
	store := localstore.NewMemoryStore()
	client := &sessionClientStub{
		loginFn: func(context.Context, api.LoginInput) (api.Credentials, error) {
			return api.Credentials{Token: "tok_abc", User: domain.User{ID: 42, Email: "claire@example.fr"}}, nil
		},
		changePasswordFn: func(context.Context, api.ChangePasswordInput) error { return nil },
	}
	s := newTestSession(t, store, client)
	if err := s.Login(context.Background(), "claire@example.fr", "tournesols"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := s.ChangePassword(context.Background(), "tournesols", "iris2024", "nope"); !errors.Is(err, ErrSessionInvalidInput) {
		t.Fatalf("expected mismatch to fail validation, got %v", err)
	}
	if err := s.ChangePassword(context.Background(), "tournesols", "iris2024", "iris2024"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
}

func TestSessionRefreshHandles401(t *testing.T) {
	store := localstore.NewMemoryStore()
	client := &sessionClientStub{
		loginFn: func(context.Context, api.LoginInput) (api.Credentials, error) {
			return api.Credentials{Token: "tok_abc", User: domain.User{ID: 42, Email: "claire@example.fr"}}, nil
		},
		currentUserFn: func(context.Context) (domain.User, error) {
			return domain.User{}, &api.Error{Status: http.StatusUnauthorized}
		},
	}
	s := newTestSession(t, store, client)
	if err := s.Login(context.Background(), "claire@example.fr", "tournesols"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := s.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if s.State() != Unauthenticated {
		t.Fatalf("expected session reset after 401, got %v", s.State())
	}
}
