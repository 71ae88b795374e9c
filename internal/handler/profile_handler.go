package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/hitoshi/wasteman/internal/account"
	"github.com/hitoshi/wasteman/internal/model"
)

// maxProfileImageSize はmultipartアップロードで受け付ける画像の上限サイズ。
const maxProfileImageSize = 2 << 20 // 2MB

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, input account.ProfileInput) (*model.User, error)
	SetProfileImage(ctx context.Context, userID string, data []byte, mime string) (*model.User, error)
}

// PasswordChanger はパスワード変更のためのインターフェース。
// auth.Serviceの部分集合として定義する。
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

// ProfileHandler は本人プロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service  ProfileServiceInterface
	password PasswordChanger
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface, password PasswordChanger) *ProfileHandler {
	return &ProfileHandler{
		service:  service,
		password: password,
	}
}

// profileRequest はプロフィール更新リクエストのボディ。
type profileRequest struct {
	Username string `json:"username"`
	Phone    string `json:"phone"`
	ImageURL string `json:"image_url"`
}

// changePasswordRequest はパスワード変更リクエストのボディ。
type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// GetProfile は本人のプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateProfile は本人のプロフィールを更新する。
// image_urlが指定された場合はそのURLから画像を取得しプロフィール画像を差し替える。
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, account.ProfileInput{
		Username: req.Username,
		Phone:    req.Phone,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ChangePassword は本人のパスワードを変更する。
// PUT /api/profile/password
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.password.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage はmultipartフォームでプロフィール画像をアップロードする。
// フォームフィールド名は "image"。
// POST /api/profile/image
func (h *ProfileHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	if err := r.ParseMultipartForm(maxProfileImageSize); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "multipartフォームの解析に失敗しました。",
			Category: "validation",
			Action:   "画像はmultipart/form-dataで送信してください。",
		})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "imageフィールドが見つかりません。",
			Category: "validation",
			Action:   "imageフィールドに画像ファイルを指定してください。",
		})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxProfileImageSize+1))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(data) > maxProfileImageSize {
		writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, &model.APIError{
			Code:     "IMAGE_TOO_LARGE",
			Message:  "画像サイズが上限を超えています。",
			Category: "validation",
			Action:   "2MB以下の画像を指定してください。",
		})
		return
	}

	user, err := h.service.SetProfileImage(r.Context(), userID, data, header.Header.Get("Content-Type"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// GetImage は本人のプロフィール画像バイナリを返す。
// 画像が未設定の場合は404を返す。
// GET /api/profile/image
func (h *ProfileHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if len(user.ImageProfileData) == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "IMAGE_NOT_FOUND",
			Message:  "プロフィール画像が設定されていません。",
			Category: "validation",
			Action:   "プロフィール画像を設定してください。",
		})
		return
	}

	w.Header().Set("Content-Type", user.ImageProfileMime)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(user.ImageProfileData)
}
