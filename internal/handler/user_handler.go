package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/wasteman/internal/account"
	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/repository"
)

// UserServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, opts repository.UserListOptions) ([]*model.User, int, error)
	CreateUser(ctx context.Context, input account.UserInput) (*model.User, error)
	UpdateUser(ctx context.Context, id string, input account.UserInput) (*model.User, error)
	ArchiveUser(ctx context.Context, id string) error
	RestoreUser(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}

// UserHandler はユーザー管理（管理者専用）のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// userRequest はユーザー作成・更新リクエストのボディ。
type userRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Username   string     `json:"username"`
	Phone      string     `json:"phone"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	IsArchived bool       `json:"is_archived"`
	HasImage   bool       `json:"has_image"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastLogin  *time.Time `json:"last_login_at,omitempty"`
	LastLogout *time.Time `json:"last_logout_at,omitempty"`
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
// プロフィール画像のバイナリは含めず、専用エンドポイントで配信する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:         user.ID,
		Email:      user.Email,
		Username:   user.Username,
		Phone:      user.Phone,
		Role:       string(user.Role),
		IsActive:   user.IsActive,
		IsArchived: user.IsArchived,
		HasImage:   len(user.ImageProfileData) > 0,
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
		LastLogin:  user.LastLoginAt,
		LastLogout: user.LastLogoutAt,
	}
}

func toUserResponses(users []*model.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

// ListUsers はユーザー一覧を返す。
// GET /api/users?page=&page_size=&role=&include_archived=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	opts := repository.UserListOptions{
		ListOptions:     listOptionsFromQuery(r),
		Role:            model.Role(r.URL.Query().Get("role")),
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	}

	users, count, err := h.service.ListUsers(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeList(w, opts.ListOptions, toUserResponses(users), count)
}

// GetUser はユーザー詳細を返す。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// CreateUser はユーザーを作成する。
// 作成直後のユーザーは未有効化状態で、ワンタイムコードによる
// アカウント有効化フローを経てログイン可能になる。
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), account.UserInput{
		Email:    req.Email,
		Username: req.Username,
		Phone:    req.Phone,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// UpdateUser はユーザー情報を更新する。
// PUT /api/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), account.UserInput{
		Email:    req.Email,
		Username: req.Username,
		Phone:    req.Phone,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ArchiveUser はユーザーをアーカイブ（ソフトデリート）する。
// アーカイブされたユーザーはログインできない。
// POST /api/users/{id}/archive
func (h *UserHandler) ArchiveUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ArchiveUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RestoreUser はアーカイブ済みユーザーを復帰させる。
// POST /api/users/{id}/restore
func (h *UserHandler) RestoreUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RestoreUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteUser はユーザーを完全に削除する。
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
