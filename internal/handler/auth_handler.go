package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/wasteman/internal/auth"
	"github.com/hitoshi/wasteman/internal/metrics"
	"github.com/hitoshi/wasteman/internal/middleware"
	"github.com/hitoshi/wasteman/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*model.User, *auth.TokenPair, error)
	Logout(ctx context.Context, userID, rawRefreshToken string) error
	Refresh(ctx context.Context, rawRefreshToken string) (*model.User, *auth.TokenPair, error)
	RequestActivationOTP(ctx context.Context, email string) error
	ConfirmActivation(ctx context.Context, email, code, newPassword string) error
	RequestPasswordResetOTP(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
}

// UserGetter は現在ユーザー取得のためのインターフェース。
// account.Serviceの部分集合として定義する。
type UserGetter interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain       string
	CookieSecure       bool
	AccessTokenMaxAge  int // アクセストークンCookieの有効期間（秒）
	RefreshTokenMaxAge int // リフレッシュトークンCookieの有効期間（秒）
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	users   UserGetter
	config  AuthHandlerConfig
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnil可。
func NewAuthHandler(service AuthServiceInterface, users UserGetter, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service: service,
		users:   users,
		config:  config,
		metrics: collector,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// otpRequestBody はワンタイムコード要求リクエストのボディ。
type otpRequestBody struct {
	Email string `json:"email"`
}

// otpConfirmBody はワンタイムコード検証リクエストのボディ。
type otpConfirmBody struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードでログインする。
// 成功時にアクセストークンとリフレッシュトークンをHTTP Only Cookieで発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLogin(false)
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLogin(true)
	}
	h.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout はトークンを失効させCookieをクリアする。
// リフレッシュトークンの失効に失敗してもCookieはクリアし、常に成功として扱う。
// 未認証グループに属するため認証コンテキストは通常空であり、
// 本人の特定はサービス側がリフレッシュトークンのレコードから行う。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var rawRefresh string
	if cookie, err := r.Cookie(middleware.RefreshTokenCookie); err == nil {
		rawRefresh = cookie.Value
	}

	if userID != "" || rawRefresh != "" {
		if err := h.service.Logout(r.Context(), userID, rawRefresh); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	h.clearAuthCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

// Refresh はリフレッシュトークンを使ってトークンペアを再発行する。
// 古いリフレッシュトークンは失効し、新しいペアがCookieで発行される（ローテーション）。
// 無効なリフレッシュトークンには401を返し、Cookieをクリアする。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		h.clearAuthCookies(w)
		middleware.WriteUnauthorized(w)
		return
	}

	user, pair, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordTokenRefresh(false)
		}
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			h.clearAuthCookies(w)
			middleware.WriteUnauthorized(w)
			return
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTokenRefresh(true)
	}
	h.setAuthCookies(w, pair)
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// RequestActivation はアカウント有効化用のワンタイムコードを発行する。
// メールアドレスの存在有無を漏らさないため、未知のアドレスでも200を返す。
// POST /api/auth/activate/request
func (h *AuthHandler) RequestActivation(w http.ResponseWriter, r *http.Request) {
	var req otpRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.RequestActivationOTP(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ConfirmActivation はワンタイムコードを検証し初回パスワードを設定する。
// POST /api/auth/activate/confirm
func (h *AuthHandler) ConfirmActivation(w http.ResponseWriter, r *http.Request) {
	var req otpConfirmBody
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ConfirmActivation(r.Context(), req.Email, req.Code, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RequestPasswordReset はパスワードリセット用のワンタイムコードを発行する。
// POST /api/auth/reset/request
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req otpRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordResetOTP(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ConfirmPasswordReset はワンタイムコードを検証しパスワードを再設定する。
// リセット完了時は既存のリフレッシュトークンが全て失効する。
// POST /api/auth/reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req otpConfirmBody
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), req.Email, req.Code, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// setAuthCookies はアクセストークンとリフレッシュトークンをHTTP Only Cookieで設定する。
func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, pair *auth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.AccessTokenMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.RefreshTokenMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookies は認証Cookieを両方クリアする。
func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   h.config.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
