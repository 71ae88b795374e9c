package client

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// Snapshot はある時点のセッション状態の読み取り専用コピー。
type Snapshot struct {
	// Authenticated はプロフィール取得に成功した後にのみtrueになる。
	// trueのときUserは必ず非nil。
	Authenticated bool
	User          *User
	// Loading は認証に関わる操作（Initialize/Login/Logout/FetchProfile）の
	// 実行中にtrueになる。Loading中は役割ゲートの判定を保留すべき。
	Loading bool
	// Err は直近の人間可読な失敗メッセージ。成功時にクリアされる。
	Err string
}

// Session は「誰がログインしているか」の単一の情報源。
// プロセス内に1つだけ生成し、再生成せず内部状態のみ更新する。
type Session struct {
	client *Client

	mu      sync.RWMutex
	user    *User
	loading bool
	errMsg  string

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// LoginResult はLoginの結果を表す。
type LoginResult struct {
	Success bool
	User    *User
	Err     string
}

// NewSession はSessionを生成し、トークン更新失敗時に
// 自動でログアウト状態に遷移するようクライアントに接続する。
func NewSession(c *Client) *Session {
	s := &Session{
		client: c,
		subs:   make(map[int]func(Snapshot)),
	}
	c.transport.onExpired = s.invalidate
	return s
}

// Snapshot は現在のセッション状態のコピーを返す。
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Authenticated: s.user != nil,
		User:          s.user,
		Loading:       s.loading,
		Err:           s.errMsg,
	}
}

// Subscribe は状態変化の通知先を登録し、解除関数を返す。
// 通知は状態更新後にロック外で同期的に呼ばれる。
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Session) notify() {
	snap := s.Snapshot()

	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Initialize は起動時に保存済み認証情報（Cookie）でのセッション復元を試みる。
// 匿名訪問者は想定内の状態であるため、失敗してもエラーは保持せず
// 未認証状態に落とすだけで、エラーも返さない。
func (s *Session) Initialize(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.client.fetchCurrentUser(ctx)

	s.mu.Lock()
	if err != nil {
		s.user = nil
	} else {
		s.user = user
		s.errMsg = ""
	}
	s.mu.Unlock()
	s.notify()
}

// Login はメールアドレスとパスワードでログインし、続けてプロフィールを取得する。
// ログイン呼び出しとプロフィール取得の両方が成功して初めて認証状態になる。
// どちらかが失敗した場合は未認証状態のままエラーメッセージを保持する。
func (s *Session) Login(ctx context.Context, email, password string) LoginResult {
	s.setLoading(true)
	defer s.setLoading(false)

	err := s.client.login(ctx, email, password)
	if err == nil {
		var user *User
		user, err = s.client.fetchCurrentUser(ctx)
		if err == nil {
			s.mu.Lock()
			s.user = user
			s.errMsg = ""
			s.mu.Unlock()
			s.notify()
			return LoginResult{Success: true, User: user}
		}
	}

	msg := loginErrorMessage(err)
	s.mu.Lock()
	s.user = nil
	s.errMsg = msg
	s.mu.Unlock()
	s.notify()
	return LoginResult{Success: false, Err: msg}
}

// Logout はログアウトエンドポイントを呼び出し、ローカル状態を無条件にクリアする。
// サーバー呼び出しはベストエフォートであり、失敗してもログのみで
// ローカルのログアウトは必ず完了する。呼び出し元にエラーを返すことはない。
func (s *Session) Logout(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.client.logout(ctx); err != nil {
		slog.Warn("logout request failed, clearing local session anyway",
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	s.user = nil
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
}

// FetchProfile はプロフィールを再取得してセッションを同期する。
func (s *Session) FetchProfile(ctx context.Context) (*User, error) {
	s.setLoading(true)
	defer s.setLoading(false)

	user, err := s.client.fetchCurrentUser(ctx)
	if err != nil {
		s.mu.Lock()
		s.errMsg = "プロフィールの取得に失敗しました。"
		s.mu.Unlock()
		s.notify()
		return nil, err
	}

	s.mu.Lock()
	s.user = user
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()
	return user, nil
}

// SetProfile は外部で更新されたプロフィールをローカルにマージする。
// ネットワーク呼び出しは発生しない。プロフィール編集画面の保存後に使う。
func (s *Session) SetProfile(user User) {
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	s.notify()
}

// invalidate はトークン更新失敗時に呼ばれ、強制的に未認証状態へ遷移させる。
func (s *Session) invalidate() {
	s.mu.Lock()
	changed := s.user != nil
	s.user = nil
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
	s.notify()
}

func loginErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsUnauthorized(err):
		return "メールアドレスまたはパスワードが正しくありません。"
	case IsForbidden(err):
		return "このアカウントは利用できません。"
	default:
		return "ログインに失敗しました。時間をおいて再度お試しください。"
	}
}

// --- セッションが使用する認証エンドポイント ---

func (c *Client) login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}
	return c.do(ctx, http.MethodPost, "/api/auth/login", body, nil)
}

func (c *Client) logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *Client) fetchCurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.get(ctx, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
