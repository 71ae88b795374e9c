package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/repository"
	"github.com/hitoshi/wasteman/internal/stats"
)

// StatsServiceInterface はダッシュボード統計ハンドラーが必要とするインターフェース。
type StatsServiceInterface interface {
	Dashboard(ctx context.Context) (*stats.DashboardStats, error)
}

// AdminHandler は管理者向けダッシュボードのHTTPハンドラー。
type AdminHandler struct {
	stats StatsServiceInterface
	users UserServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(statsService StatsServiceInterface, users UserServiceInterface) *AdminHandler {
	return &AdminHandler{
		stats: statsService,
		users: users,
	}
}

// activityEntry はユーザーごとの認証アクティビティ。
type activityEntry struct {
	UserID                   string     `json:"user_id"`
	Username                 string     `json:"username"`
	Email                    string     `json:"email"`
	Role                     string     `json:"role"`
	LastLoginAt              *time.Time `json:"last_login_at,omitempty"`
	LastLogoutAt             *time.Time `json:"last_logout_at,omitempty"`
	LastPasswordChangeAt     *time.Time `json:"last_password_change_at,omitempty"`
	LastPasswordChangeReason string     `json:"last_password_change_reason,omitempty"`
}

// Dashboard はダッシュボードの集計統計を返す。
// GET /api/admin/stats
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.stats.Dashboard(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Activity はユーザーごとの認証アクティビティ一覧を返す。
// アーカイブ済みユーザーも含む。
// GET /api/admin/activity?page=&page_size=
func (h *AdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	opts := repository.UserListOptions{
		ListOptions:     listOptionsFromQuery(r),
		IncludeArchived: true,
	}

	users, count, err := h.users.ListUsers(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]activityEntry, 0, len(users))
	for _, u := range users {
		out = append(out, toActivityEntry(u))
	}
	writeList(w, opts.ListOptions, out, count)
}

func toActivityEntry(u *model.User) activityEntry {
	return activityEntry{
		UserID:                   u.ID,
		Username:                 u.Username,
		Email:                    u.Email,
		Role:                     string(u.Role),
		LastLoginAt:              u.LastLoginAt,
		LastLogoutAt:             u.LastLogoutAt,
		LastPasswordChangeAt:     u.LastPasswordChangeAt,
		LastPasswordChangeReason: string(u.LastPasswordChangeReason),
	}
}
