package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/wasteman/internal/auth"
	"github.com/hitoshi/wasteman/internal/middleware"
	"github.com/hitoshi/wasteman/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn                   func(ctx context.Context, email, password string) (*model.User, *auth.TokenPair, error)
	logoutFn                  func(ctx context.Context, userID, rawRefreshToken string) error
	refreshFn                 func(ctx context.Context, rawRefreshToken string) (*model.User, *auth.TokenPair, error)
	requestActivationOTPFn    func(ctx context.Context, email string) error
	confirmActivationFn       func(ctx context.Context, email, code, newPassword string) error
	requestPasswordResetOTPFn func(ctx context.Context, email string) error
	confirmPasswordResetFn    func(ctx context.Context, email, code, newPassword string) error
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.User, *auth.TokenPair, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, userID, rawRefreshToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, userID, rawRefreshToken)
	}
	return nil
}

func (m *mockAuthService) Refresh(ctx context.Context, rawRefreshToken string) (*model.User, *auth.TokenPair, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, rawRefreshToken)
	}
	return nil, nil, nil
}

func (m *mockAuthService) RequestActivationOTP(ctx context.Context, email string) error {
	if m.requestActivationOTPFn != nil {
		return m.requestActivationOTPFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) ConfirmActivation(ctx context.Context, email, code, newPassword string) error {
	if m.confirmActivationFn != nil {
		return m.confirmActivationFn(ctx, email, code, newPassword)
	}
	return nil
}

func (m *mockAuthService) RequestPasswordResetOTP(ctx context.Context, email string) error {
	if m.requestPasswordResetOTPFn != nil {
		return m.requestPasswordResetOTPFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if m.confirmPasswordResetFn != nil {
		return m.confirmPasswordResetFn(ctx, email, code, newPassword)
	}
	return nil
}

type mockUserGetter struct {
	getUserFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserGetter) GetUser(ctx context.Context, id string) (*model.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, id)
	}
	return nil, nil
}

func testAuthHandlerConfig() AuthHandlerConfig {
	return AuthHandlerConfig{
		CookieDomain:       "",
		CookieSecure:       false,
		AccessTokenMaxAge:  900,
		RefreshTokenMaxAge: 86400,
	}
}

func testUser() *model.User {
	return &model.User{
		ID:       "user-1",
		Email:    "planner@example.com",
		Username: "planner",
		Role:     model.RolePlanner,
		IsActive: true,
	}
}

func findCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- ログイン ---

func TestAuthHandler_Login_Success_SetsBothCookies(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, *auth.TokenPair, error) {
			if email != "planner@example.com" || password != "secret123" {
				t.Errorf("unexpected credentials: %s / %s", email, password)
			}
			return testUser(), &auth.TokenPair{AccessToken: "access-abc", RefreshToken: "refresh-xyz"}, nil
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	body := strings.NewReader(`{"email":"planner@example.com","password":"secret123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	access := findCookie(t, resp, middleware.AccessTokenCookie)
	if access == nil {
		t.Fatal("expected access_token cookie")
	}
	if access.Value != "access-abc" {
		t.Errorf("access cookie = %q, want %q", access.Value, "access-abc")
	}
	if !access.HttpOnly {
		t.Error("access cookie should be HttpOnly")
	}

	refresh := findCookie(t, resp, middleware.RefreshTokenCookie)
	if refresh == nil {
		t.Fatal("expected refresh_token cookie")
	}
	if refresh.Value != "refresh-xyz" {
		t.Errorf("refresh cookie = %q, want %q", refresh.Value, "refresh-xyz")
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want %q", user.ID, "user-1")
	}
	if user.Role != string(model.RolePlanner) {
		t.Errorf("user.Role = %q, want %q", user.Role, model.RolePlanner)
	}
	if !user.IsActive {
		t.Error("user.IsActive should be true")
	}
}

func TestAuthHandler_Login_InvalidCredentials_Returns401(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, *auth.TokenPair, error) {
			return nil, nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	body := strings.NewReader(`{"email":"planner@example.com","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if c := findCookie(t, resp, middleware.AccessTokenCookie); c != nil {
		t.Error("access cookie should not be set on failed login")
	}

	var errBody apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if errBody.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", errBody.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestAuthHandler_Login_ArchivedAccount_Returns403(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.User, *auth.TokenPair, error) {
			return nil, nil, model.NewAccountArchivedError()
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	body := strings.NewReader(`{"email":"archived@example.com","password":"secret123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", body)
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestAuthHandler_Login_MalformedBody_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// --- トークン更新 ---

func TestAuthHandler_Refresh_Success_RotatesCookies(t *testing.T) {
	svc := &mockAuthService{
		refreshFn: func(ctx context.Context, rawRefreshToken string) (*model.User, *auth.TokenPair, error) {
			if rawRefreshToken != "old-refresh" {
				t.Errorf("refresh token = %q, want %q", rawRefreshToken, "old-refresh")
			}
			return testUser(), &auth.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: "old-refresh"})
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	access := findCookie(t, resp, middleware.AccessTokenCookie)
	if access == nil || access.Value != "new-access" {
		t.Errorf("expected new access cookie, got %+v", access)
	}
	refresh := findCookie(t, resp, middleware.RefreshTokenCookie)
	if refresh == nil || refresh.Value != "new-refresh" {
		t.Errorf("expected new refresh cookie, got %+v", refresh)
	}
}

func TestAuthHandler_Refresh_InvalidToken_Returns401AndClearsCookies(t *testing.T) {
	svc := &mockAuthService{
		refreshFn: func(ctx context.Context, rawRefreshToken string) (*model.User, *auth.TokenPair, error) {
			return nil, nil, auth.ErrInvalidRefreshToken
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: "revoked-token"})
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	access := findCookie(t, resp, middleware.AccessTokenCookie)
	if access == nil || access.MaxAge != -1 {
		t.Error("access cookie should be cleared")
	}
	refresh := findCookie(t, resp, middleware.RefreshTokenCookie)
	if refresh == nil || refresh.MaxAge != -1 {
		t.Error("refresh cookie should be cleared")
	}
}

func TestAuthHandler_Refresh_MissingCookie_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	w := httptest.NewRecorder()

	h.Refresh(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- ログアウト ---

func TestAuthHandler_Logout_ClearsCookiesAndRevokesToken(t *testing.T) {
	logoutCalled := false
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, userID, rawRefreshToken string) error {
			logoutCalled = true
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			if rawRefreshToken != "refresh-xyz" {
				t.Errorf("refresh token = %q, want %q", rawRefreshToken, "refresh-xyz")
			}
			return nil
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), "user-1", model.RolePlanner))
	req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: "refresh-xyz"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if !logoutCalled {
		t.Error("logout service should have been called")
	}

	access := findCookie(t, resp, middleware.AccessTokenCookie)
	if access == nil || access.MaxAge != -1 {
		t.Error("access cookie should be cleared")
	}
}

func TestAuthHandler_Logout_WithoutSession_StillSucceeds(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

func TestAuthHandler_Logout_ServiceError_StillClearsCookies(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, userID, rawRefreshToken string) error {
			return model.NewUserNotFoundError(userID)
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), "user-1", model.RolePlanner))
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if c := findCookie(t, resp, middleware.AccessTokenCookie); c == nil || c.MaxAge != -1 {
		t.Error("access cookie should be cleared even when revocation fails")
	}
}

// --- 現在ユーザー ---

func TestAuthHandler_Me_ReturnsCurrentUser(t *testing.T) {
	users := &mockUserGetter{
		getUserFn: func(ctx context.Context, id string) (*model.User, error) {
			if id != "user-1" {
				t.Errorf("id = %q, want %q", id, "user-1")
			}
			return testUser(), nil
		},
	}
	h := NewAuthHandler(&mockAuthService{}, users, testAuthHandlerConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(middleware.ContextWithUser(req.Context(), "user-1", model.RolePlanner))
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if user.Email != "planner@example.com" {
		t.Errorf("email = %q, want %q", user.Email, "planner@example.com")
	}
}

func TestAuthHandler_Me_Unauthenticated_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- ワンタイムコード ---

func TestAuthHandler_RequestActivation_Returns204(t *testing.T) {
	requested := ""
	svc := &mockAuthService{
		requestActivationOTPFn: func(ctx context.Context, email string) error {
			requested = email
			return nil
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	body := strings.NewReader(`{"email":"new@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/activate/request", body)
	w := httptest.NewRecorder()

	h.RequestActivation(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if requested != "new@example.com" {
		t.Errorf("requested email = %q, want %q", requested, "new@example.com")
	}
}

func TestAuthHandler_ConfirmActivation_InvalidCode_Returns401(t *testing.T) {
	svc := &mockAuthService{
		confirmActivationFn: func(ctx context.Context, email, code, newPassword string) error {
			return model.NewInvalidOTPError()
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	body := strings.NewReader(`{"email":"new@example.com","code":"000000","password":"secret123"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/activate/confirm", body)
	w := httptest.NewRecorder()

	h.ConfirmActivation(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthHandler_ConfirmPasswordReset_WeakPassword_Returns400FieldMap(t *testing.T) {
	svc := &mockAuthService{
		confirmPasswordResetFn: func(ctx context.Context, email, code, newPassword string) error {
			verr := model.NewValidationError()
			verr.Add("password", "パスワードは8文字以上で入力してください。")
			return verr
		},
	}
	h := NewAuthHandler(svc, &mockUserGetter{}, testAuthHandlerConfig(), nil)

	body := strings.NewReader(`{"email":"new@example.com","code":"123456","password":"short"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/reset/confirm", body)
	w := httptest.NewRecorder()

	h.ConfirmPasswordReset(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var fields map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(fields["password"]) == 0 {
		t.Error("expected password field errors")
	}
}
