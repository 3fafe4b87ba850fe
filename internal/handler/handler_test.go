package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/manabi-dev/manabi/internal/config"
	"github.com/manabi-dev/manabi/internal/domain"
	"github.com/manabi-dev/manabi/internal/middleware"
	"github.com/manabi-dev/manabi/internal/service"
)

// --- Mocks ---

type MockAuthService struct {
	RegisterFunc             func(ctx context.Context, email domain.Email, password string) error
	VerifyEmailFunc          func(ctx context.Context, email domain.Email, code string) error
	LoginFunc                func(ctx context.Context, email domain.Email, password string) (service.TokenPair, error)
	LogoutFunc               func(ctx context.Context, accessToken, refreshToken string)
	RefreshFunc              func(ctx context.Context, refreshToken string) (string, error)
	RequestPasswordResetFunc func(ctx context.Context, email domain.Email) error
	ResetPasswordFunc        func(ctx context.Context, email domain.Email, resetToken, newPassword string) error
}

func (m *MockAuthService) Register(ctx context.Context, email domain.Email, password string) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, email, password)
	}
	return nil
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, email domain.Email, code string) error {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, email, code)
	}
	return nil
}

func (m *MockAuthService) Login(ctx context.Context, email domain.Email, password string) (service.TokenPair, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return service.TokenPair{Access: "test_access", Refresh: "test_refresh"}, nil
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken, refreshToken string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, accessToken, refreshToken)
	}
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return "test_access", nil
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email domain.Email) error {
	if m.RequestPasswordResetFunc != nil {
		return m.RequestPasswordResetFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) ResetPassword(ctx context.Context, email domain.Email, resetToken, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, email, resetToken, newPassword)
	}
	return nil
}

type MockAccountService struct {
	ChangePasswordFunc     func(ctx context.Context, userId domain.UserId, currentPassword, newPassword string) error
	DeleteAccountFunc      func(ctx context.Context, userId domain.UserId, password string) error
	RequestEmailChangeFunc func(ctx context.Context, userId domain.UserId, newEmail domain.Email, currentPassword string) error
	VerifyEmailChangeFunc  func(ctx context.Context, token string) error
	UpdateUserRoleFunc     func(ctx context.Context, userId domain.UserId, role domain.Role) error
	SetUserActiveFunc      func(ctx context.Context, userId domain.UserId, active bool) error
}

func (m *MockAccountService) ChangePassword(ctx context.Context, userId domain.UserId, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userId, currentPassword, newPassword)
	}
	return nil
}

func (m *MockAccountService) DeleteAccount(ctx context.Context, userId domain.UserId, password string) error {
	if m.DeleteAccountFunc != nil {
		return m.DeleteAccountFunc(ctx, userId, password)
	}
	return nil
}

func (m *MockAccountService) RequestEmailChange(ctx context.Context, userId domain.UserId, newEmail domain.Email, currentPassword string) error {
	if m.RequestEmailChangeFunc != nil {
		return m.RequestEmailChangeFunc(ctx, userId, newEmail, currentPassword)
	}
	return nil
}

func (m *MockAccountService) VerifyEmailChange(ctx context.Context, token string) error {
	if m.VerifyEmailChangeFunc != nil {
		return m.VerifyEmailChangeFunc(ctx, token)
	}
	return nil
}

func (m *MockAccountService) UpdateUserRole(ctx context.Context, userId domain.UserId, role domain.Role) error {
	if m.UpdateUserRoleFunc != nil {
		return m.UpdateUserRoleFunc(ctx, userId, role)
	}
	return nil
}

func (m *MockAccountService) SetUserActive(ctx context.Context, userId domain.UserId, active bool) error {
	if m.SetUserActiveFunc != nil {
		return m.SetUserActiveFunc(ctx, userId, active)
	}
	return nil
}

// --- Helpers ---

func testConfig() *config.Config {
	return &config.Config{
		Public: config.Public{
			SecureCookies:   false,
			AccessTokenTTL:  "15m",
			RefreshTokenTTL: "7d",
		},
	}
}

func newTestHandler(auth *MockAuthService, account *MockAccountService) *Handler {
	if auth == nil {
		auth = &MockAuthService{}
	}
	if account == nil {
		account = &MockAccountService{}
	}
	return New(auth, account, testConfig())
}

func createRequest(t *testing.T, method, target string, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// withContextUser attaches an authenticated user the way the gateway does.
func withContextUser(req *http.Request, user *domain.User) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, user))
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
