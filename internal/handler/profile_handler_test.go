package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/wasteman/internal/account"
	"github.com/hitoshi/wasteman/internal/middleware"
	"github.com/hitoshi/wasteman/internal/model"
)

type mockProfileService struct {
	getUserFn         func(ctx context.Context, id string) (*model.User, error)
	updateProfileFn   func(ctx context.Context, userID string, input account.ProfileInput) (*model.User, error)
	setProfileImageFn func(ctx context.Context, userID string, data []byte, mime string) (*model.User, error)
}

func (m *mockProfileService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, id)
	}
	return nil, nil
}

func (m *mockProfileService) UpdateProfile(ctx context.Context, userID string, input account.ProfileInput) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, input)
	}
	return nil, nil
}

func (m *mockProfileService) SetProfileImage(ctx context.Context, userID string, data []byte, mime string) (*model.User, error) {
	if m.setProfileImageFn != nil {
		return m.setProfileImageFn(ctx, userID, data, mime)
	}
	return nil, nil
}

type mockPasswordChanger struct {
	changePasswordFn func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *mockPasswordChanger) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

func authenticatedProfileRequest(method, target string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.ContextWithUser(req.Context(), "user-1", model.RolePlanner))
}

func TestProfileHandler_UpdateProfile_Success(t *testing.T) {
	svc := &mockProfileService{
		updateProfileFn: func(ctx context.Context, userID string, input account.ProfileInput) (*model.User, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q", userID)
			}
			if input.Username != "新しい名前" {
				t.Errorf("username = %q", input.Username)
			}
			if input.ImageURL != "https://example.com/avatar.png" {
				t.Errorf("image_url = %q", input.ImageURL)
			}
			u := testUser()
			u.Username = input.Username
			return u, nil
		},
	}
	h := NewProfileHandler(svc, &mockPasswordChanger{})

	body := bytes.NewBufferString(`{"username":"新しい名前","phone":"090-1111-2222","image_url":"https://example.com/avatar.png"}`)
	req := authenticatedProfileRequest(http.MethodPut, "/api/profile", body)
	w := httptest.NewRecorder()

	h.UpdateProfile(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got userResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if got.Username != "新しい名前" {
		t.Errorf("username = %q", got.Username)
	}
}

func TestProfileHandler_UpdateProfile_InvalidImageURL_Returns400(t *testing.T) {
	svc := &mockProfileService{
		updateProfileFn: func(ctx context.Context, userID string, input account.ProfileInput) (*model.User, error) {
			return nil, model.NewInvalidImageURLError("プライベートアドレスへのアクセスは許可されていません")
		},
	}
	h := NewProfileHandler(svc, &mockPasswordChanger{})

	body := bytes.NewBufferString(`{"image_url":"http://169.254.169.254/latest"}`)
	req := authenticatedProfileRequest(http.MethodPut, "/api/profile", body)
	w := httptest.NewRecorder()

	h.UpdateProfile(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestProfileHandler_ChangePassword_Returns204(t *testing.T) {
	changer := &mockPasswordChanger{
		changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			if currentPassword != "old-password" || newPassword != "new-password" {
				t.Errorf("passwords = %q / %q", currentPassword, newPassword)
			}
			return nil
		},
	}
	h := NewProfileHandler(&mockProfileService{}, changer)

	body := bytes.NewBufferString(`{"current_password":"old-password","new_password":"new-password"}`)
	req := authenticatedProfileRequest(http.MethodPut, "/api/profile/password", body)
	w := httptest.NewRecorder()

	h.ChangePassword(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

func TestProfileHandler_ChangePassword_WrongCurrent_Returns401(t *testing.T) {
	changer := &mockPasswordChanger{
		changePasswordFn: func(ctx context.Context, userID, currentPassword, newPassword string) error {
			return model.NewInvalidCredentialsError()
		},
	}
	h := NewProfileHandler(&mockProfileService{}, changer)

	body := bytes.NewBufferString(`{"current_password":"wrong","new_password":"new-password"}`)
	req := authenticatedProfileRequest(http.MethodPut, "/api/profile/password", body)
	w := httptest.NewRecorder()

	h.ChangePassword(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func newImageUploadRequest(t *testing.T, imageData []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "avatar.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(imageData); err != nil {
		t.Fatalf("failed to write image data: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := authenticatedProfileRequest(http.MethodPost, "/api/profile/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestProfileHandler_UploadImage_Success(t *testing.T) {
	imageData := []byte("fake-png-bytes")
	svc := &mockProfileService{
		setProfileImageFn: func(ctx context.Context, userID string, data []byte, mime string) (*model.User, error) {
			if !bytes.Equal(data, imageData) {
				t.Error("image data mismatch")
			}
			u := testUser()
			u.ImageProfileData = data
			return u, nil
		},
	}
	h := NewProfileHandler(svc, &mockPasswordChanger{})

	req := newImageUploadRequest(t, imageData)
	w := httptest.NewRecorder()

	h.UploadImage(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got userResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !got.HasImage {
		t.Error("has_image should be true after upload")
	}
}

func TestProfileHandler_UploadImage_TooLarge_Returns413(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{}, &mockPasswordChanger{})

	req := newImageUploadRequest(t, bytes.Repeat([]byte("x"), maxProfileImageSize+1))
	w := httptest.NewRecorder()

	h.UploadImage(w, req)

	if w.Result().StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusRequestEntityTooLarge)
	}
}

func TestProfileHandler_UploadImage_NotMultipart_Returns400(t *testing.T) {
	h := NewProfileHandler(&mockProfileService{}, &mockPasswordChanger{})

	body := bytes.NewBufferString(`{"image":"not-a-file"}`)
	req := authenticatedProfileRequest(http.MethodPost, "/api/profile/image", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.UploadImage(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestProfileHandler_GetImage_NotSet_Returns404(t *testing.T) {
	svc := &mockProfileService{
		getUserFn: func(ctx context.Context, id string) (*model.User, error) {
			return testUser(), nil
		},
	}
	h := NewProfileHandler(svc, &mockPasswordChanger{})

	req := authenticatedProfileRequest(http.MethodGet, "/api/profile/image", nil)
	w := httptest.NewRecorder()

	h.GetImage(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestProfileHandler_GetImage_ServesBinary(t *testing.T) {
	svc := &mockProfileService{
		getUserFn: func(ctx context.Context, id string) (*model.User, error) {
			u := testUser()
			u.ImageProfileData = []byte("png-bytes")
			u.ImageProfileMime = "image/png"
			return u, nil
		},
	}
	h := NewProfileHandler(svc, &mockPasswordChanger{})

	req := authenticatedProfileRequest(http.MethodGet, "/api/profile/image", nil)
	w := httptest.NewRecorder()

	h.GetImage(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if w.Body.String() != "png-bytes" {
		t.Errorf("body = %q", w.Body.String())
	}
	if !strings.Contains(resp.Header.Get("Cache-Control"), "private") {
		t.Errorf("Cache-Control = %q, want private", resp.Header.Get("Cache-Control"))
	}
}
