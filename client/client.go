// Package client はゴミ収集管理APIのGoクライアントSDKを提供する。
//
// セッション管理（ログイン・ログアウト・プロフィール取得）、401検出時の
// 透過的なトークン更新と1回限りの再送、役割によるルートゲート、
// ページネーションの有無が混在するリストレスポンスの正規化を担う。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// Client はAPIバックエンドへのHTTPクライアント。
// Cookieベースの認証情報は内部のcookie jarが自動的に付与する。
type Client struct {
	baseURL    string
	httpClient *http.Client
	transport  *refreshTransport
}

// Option はClientの生成オプション。
type Option func(*options)

type options struct {
	httpTransport http.RoundTripper
	timeout       time.Duration
}

// WithTransport は基底のRoundTripperを差し替える。主にテストで使用する。
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		o.httpTransport = rt
	}
}

// WithTimeout はリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// New はClientを生成する。baseURLは末尾スラッシュなしのオリジン
// （例: http://localhost:8000）を指定する。
func New(baseURL string, opts ...Option) (*Client, error) {
	o := &options{
		httpTransport: http.DefaultTransport,
		timeout:       30 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	baseURL = strings.TrimRight(baseURL, "/")

	transport := &refreshTransport{
		base: o.httpTransport,
		jar:  jar,
		refreshClient: &http.Client{
			Jar:       jar,
			Transport: o.httpTransport,
			Timeout:   o.timeout,
		},
		refreshURL: baseURL + refreshPath,
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   o.timeout,
		},
		transport: transport,
	}, nil
}

// FetchCSRFToken はCSRFトークンを取得し、以降の状態変更リクエストに
// 自動付与されるよう設定する。ログイン前に1回呼び出す。
func (c *Client) FetchCSRFToken(ctx context.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.get(ctx, "/api/csrf-token", nil, &body); err != nil {
		return fmt.Errorf("failed to fetch csrf token: %w", err)
	}
	c.transport.SetCSRFToken(body.Token)
	return nil
}

// get はGETリクエストを送信し、outが非nilの場合はJSONをデコードする。
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

// getRaw はGETレスポンスのボディをそのまま返す。リスト正規化で使用する。
func (c *Client) getRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

// do はJSONボディ付きのリクエストを送信する。bodyとoutはどちらもnil可。
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
