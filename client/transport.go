package client

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"sync"
)

// refreshPath はトークン更新エンドドポイントのパス。
// このパスへのリクエスト自身は失敗してもリトライされない。
const refreshPath = "/api/auth/refresh"

type replayKey struct{}

// refreshTransport は401レスポンスを検出してトークンを透過的に更新し、
// 元のリクエストを1回だけ再送するRoundTripper。
//
//   - 再送は元のリクエストごとに最大1回。再送後の401は再試行しない。
//   - リフレッシュエンドポイント自身の401は再帰しない。
//   - 403（権限不足）はセッション無効を意味しないためリトライしない。
//   - 同時多発の401は1つの進行中リフレッシュに合流する。
type refreshTransport struct {
	base http.RoundTripper
	jar  *cookiejar.Jar

	// refreshClient はリフレッシュ呼び出し専用のクライアント。
	// 自身を経由させないことで再帰を防ぐ。
	refreshClient *http.Client
	refreshURL    string

	// onExpired はリフレッシュ失敗時に呼び出される。セッションのログアウトに使う。
	onExpired func()

	csrfMu    sync.RWMutex
	csrfToken string

	mu      sync.Mutex
	pending chan struct{}
	lastErr error
}

var _ http.RoundTripper = (*refreshTransport)(nil)

// SetCSRFToken は状態変更リクエストに付与するCSRFトークンを設定する。
func (t *refreshTransport) SetCSRFToken(token string) {
	t.csrfMu.Lock()
	defer t.csrfMu.Unlock()
	t.csrfToken = token
}

func (t *refreshTransport) currentCSRFToken() string {
	t.csrfMu.RLock()
	defer t.csrfMu.RUnlock()
	return t.csrfToken
}

func (t *refreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !isSafeMethod(req.Method) {
		if token := t.currentCSRFToken(); token != "" && req.Header.Get("X-CSRF-Token") == "" {
			req = req.Clone(req.Context())
			req.Header.Set("X-CSRF-Token", token)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// リフレッシュエンドポイント自身は再試行しない
	if req.URL.Path == refreshPath {
		return resp, nil
	}

	// 再送済みリクエストの401はそのまま返す
	if req.Context().Value(replayKey{}) != nil {
		return resp, nil
	}

	// ボディを再生成できないリクエストは再送できない
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	if err := t.refresh(req.Context()); err != nil {
		if t.onExpired != nil {
			t.onExpired()
		}
		// 元の401をそのまま伝播する
		return resp, nil
	}

	resp.Body.Close()

	replay := req.Clone(context.WithValue(req.Context(), replayKey{}, true))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		replay.Body = body
	}

	// Cookieヘッダーは外側のhttp.Clientが旧トークンで設定済みのため、
	// jarの最新Cookieで差し替える
	replay.Header.Del("Cookie")
	for _, c := range t.jar.Cookies(replay.URL) {
		replay.AddCookie(c)
	}

	return t.RoundTrip(replay)
}

// refresh はトークン更新を実行する。進行中のリフレッシュがあれば
// 新たに発行せず、その完了を待って結果を共有する。
func (t *refreshTransport) refresh(ctx context.Context) error {
	t.mu.Lock()
	if t.pending != nil {
		ch := t.pending
		t.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		t.mu.Lock()
		err := t.lastErr
		t.mu.Unlock()
		return err
	}

	ch := make(chan struct{})
	t.pending = ch
	t.mu.Unlock()

	err := t.doRefresh(ctx)

	t.mu.Lock()
	t.lastErr = err
	t.pending = nil
	t.mu.Unlock()
	close(ch)

	return err
}

func (t *refreshTransport) doRefresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.refreshURL, nil)
	if err != nil {
		return err
	}
	if token := t.currentCSRFToken(); token != "" {
		req.Header.Set("X-CSRF-Token", token)
	}

	resp, err := t.refreshClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode}
	}
	return nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
