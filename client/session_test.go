package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

const sessionUserJSON = `{
	"id": "user-1",
	"email": "planner@example.com",
	"username": "planner1",
	"role": "planner",
	"is_active": true
}`

// sessionBackend はログイン・ログアウト・プロフィール取得を模擬する。
type sessionBackend struct {
	mu           sync.Mutex
	loggedIn     bool
	loginStatus  int
	meStatus     int
	logoutStatus int
	requestCount int32
}

func newSessionBackend() *sessionBackend {
	return &sessionBackend{
		loginStatus:  http.StatusOK,
		meStatus:     http.StatusOK,
		logoutStatus: http.StatusNoContent,
	}
}

func (b *sessionBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.requestCount, 1)
		b.mu.Lock()
		status := b.loginStatus
		if status == http.StatusOK {
			b.loggedIn = true
		}
		b.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"code":"INVALID_CREDENTIALS","message":"invalid credentials"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "access_token", Value: "granted", Path: "/"})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sessionUserJSON))
	})

	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.requestCount, 1)
		b.mu.Lock()
		status := b.meStatus
		authed := b.loggedIn
		b.mu.Unlock()

		if status != http.StatusOK || !authed {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sessionUserJSON))
	})

	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.requestCount, 1)
		b.mu.Lock()
		status := b.logoutStatus
		b.loggedIn = false
		b.mu.Unlock()
		w.WriteHeader(status)
	})

	// セッション復元失敗時のリフレッシュ試行も失敗させる
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	return mux
}

func newTestSession(t *testing.T, backend *sessionBackend) (*Session, *Client) {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return NewSession(c), c
}

func TestSession_LoginSuccess(t *testing.T) {
	backend := newSessionBackend()
	s, _ := newTestSession(t, backend)

	result := s.Login(context.Background(), "planner@example.com", "secret")

	if !result.Success {
		t.Fatalf("expected login to succeed, got error %q", result.Err)
	}
	if result.User == nil || result.User.Email != "planner@example.com" {
		t.Errorf("unexpected user in result: %+v", result.User)
	}

	snap := s.Snapshot()
	if !snap.Authenticated {
		t.Error("expected authenticated session")
	}
	if snap.User == nil || snap.User.Role != "planner" {
		t.Errorf("unexpected session user: %+v", snap.User)
	}
	if snap.Err != "" {
		t.Errorf("expected error message to be cleared, got %q", snap.Err)
	}
	if snap.Loading {
		t.Error("loading should be false after login completes")
	}
}

func TestSession_LoginInvalidCredentials(t *testing.T) {
	backend := newSessionBackend()
	backend.loginStatus = http.StatusUnauthorized
	s, _ := newTestSession(t, backend)

	result := s.Login(context.Background(), "planner@example.com", "wrong")

	if result.Success {
		t.Fatal("expected login to fail")
	}
	if result.Err != "メールアドレスまたはパスワードが正しくありません。" {
		t.Errorf("unexpected error message: %q", result.Err)
	}

	snap := s.Snapshot()
	if snap.Authenticated || snap.User != nil {
		t.Error("failed login must not leave an authenticated session")
	}
	if snap.Err == "" {
		t.Error("expected error message to be retained in the snapshot")
	}
}

func TestSession_LoginArchivedAccount(t *testing.T) {
	backend := newSessionBackend()
	backend.loginStatus = http.StatusForbidden
	s, _ := newTestSession(t, backend)

	result := s.Login(context.Background(), "archived@example.com", "secret")

	if result.Success {
		t.Fatal("expected login to fail")
	}
	if result.Err != "このアカウントは利用できません。" {
		t.Errorf("unexpected error message: %q", result.Err)
	}
}

func TestSession_LoginProfileFetchFailure(t *testing.T) {
	// ログイン自体は成功するがプロフィール取得が失敗するケース。
	// 両方成功して初めて認証状態になる。
	backend := newSessionBackend()
	backend.meStatus = http.StatusInternalServerError
	s, _ := newTestSession(t, backend)

	result := s.Login(context.Background(), "planner@example.com", "secret")

	if result.Success {
		t.Fatal("expected login to fail when profile fetch fails")
	}

	snap := s.Snapshot()
	if snap.Authenticated {
		t.Error("session must never be authenticated without a user profile")
	}
}

func TestSession_InitializeRestoresSession(t *testing.T) {
	backend := newSessionBackend()
	backend.loggedIn = true
	s, _ := newTestSession(t, backend)

	s.Initialize(context.Background())

	snap := s.Snapshot()
	if !snap.Authenticated || snap.User == nil {
		t.Fatal("expected session to be restored from cookies")
	}
	if snap.User.Username != "planner1" {
		t.Errorf("unexpected username %q", snap.User.Username)
	}
}

func TestSession_InitializeAnonymousIsSilent(t *testing.T) {
	backend := newSessionBackend()
	s, _ := newTestSession(t, backend)

	s.Initialize(context.Background())

	snap := s.Snapshot()
	if snap.Authenticated {
		t.Error("expected anonymous session")
	}
	if snap.Err != "" {
		t.Errorf("anonymous visitor is not an error, got %q", snap.Err)
	}
	if snap.Loading {
		t.Error("loading should be false after initialize completes")
	}
}

func TestSession_LogoutClearsStateEvenOnServerError(t *testing.T) {
	backend := newSessionBackend()
	s, _ := newTestSession(t, backend)

	if result := s.Login(context.Background(), "planner@example.com", "secret"); !result.Success {
		t.Fatalf("login failed: %q", result.Err)
	}

	backend.mu.Lock()
	backend.logoutStatus = http.StatusInternalServerError
	backend.mu.Unlock()

	s.Logout(context.Background())

	snap := s.Snapshot()
	if snap.Authenticated || snap.User != nil {
		t.Error("logout must clear local state even if the server call fails")
	}
}

func TestSession_SubscribeAndUnsubscribe(t *testing.T) {
	backend := newSessionBackend()
	s, _ := newTestSession(t, backend)

	var mu sync.Mutex
	var snapshots []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		snapshots = append(snapshots, snap)
		mu.Unlock()
	})

	s.Initialize(context.Background())

	mu.Lock()
	count := len(snapshots)
	sawLoading := false
	for _, snap := range snapshots {
		if snap.Loading {
			sawLoading = true
		}
	}
	mu.Unlock()

	if count == 0 {
		t.Fatal("expected subscriber to be notified")
	}
	if !sawLoading {
		t.Error("expected a loading snapshot during initialize")
	}

	unsubscribe()
	s.SetProfile(User{ID: "user-1"})

	mu.Lock()
	after := len(snapshots)
	mu.Unlock()
	if after != count {
		t.Error("unsubscribed callback must not be notified")
	}
}

func TestSession_SetProfileIsLocal(t *testing.T) {
	backend := newSessionBackend()
	s, _ := newTestSession(t, backend)

	before := atomic.LoadInt32(&backend.requestCount)
	s.SetProfile(User{ID: "user-1", Username: "renamed", Role: "planner", IsActive: true})
	after := atomic.LoadInt32(&backend.requestCount)

	if before != after {
		t.Error("SetProfile must not perform network calls")
	}

	snap := s.Snapshot()
	if snap.User == nil || snap.User.Username != "renamed" {
		t.Errorf("expected local profile update, got %+v", snap.User)
	}
}

func TestSession_FetchProfileError(t *testing.T) {
	backend := newSessionBackend()
	backend.loggedIn = true
	s, _ := newTestSession(t, backend)
	s.Initialize(context.Background())

	backend.mu.Lock()
	backend.meStatus = http.StatusInternalServerError
	backend.mu.Unlock()

	if _, err := s.FetchProfile(context.Background()); err == nil {
		t.Fatal("expected fetch profile to fail")
	}
	if snap := s.Snapshot(); snap.Err == "" {
		t.Error("expected error message after failed profile fetch")
	}
}

func TestSession_InvalidatedOnRefreshFailure(t *testing.T) {
	// アクセストークン失効後、リフレッシュも失敗すると
	// セッションは自動的に未認証状態へ遷移する。
	backend := newSessionBackend()
	backend.loggedIn = true
	s, c := newTestSession(t, backend)
	s.Initialize(context.Background())

	if !s.Snapshot().Authenticated {
		t.Fatal("expected restored session")
	}

	backend.mu.Lock()
	backend.loggedIn = false
	backend.mu.Unlock()

	// 任意のAPI呼び出しが401→リフレッシュ失敗→セッション無効化を引き起こす
	if _, err := c.fetchCurrentUser(context.Background()); err == nil {
		t.Fatal("expected request to fail")
	}

	if s.Snapshot().Authenticated {
		t.Error("expected session to be invalidated after refresh failure")
	}
}
