package security

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// allowedImageTypes はプロフィール画像として受け付けるContent-Type。
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AvatarFetcherService はプロフィール画像URLの取得機能のインターフェースを定義する。
type AvatarFetcherService interface {
	// Fetch は画像URLを取得し、画像データとContent-Typeを返す。
	// URL検証、サイズ上限、Content-Type検証に失敗した場合はエラーを返す。
	Fetch(ctx context.Context, rawURL string) (data []byte, contentType string, err error)
}

// avatarFetcher はAvatarFetcherServiceの実装。
// SSRF防止クライアント経由で画像を取得する。
type avatarFetcher struct {
	client  *http.Client
	guard   SSRFGuardService
	maxSize int64
}

// NewAvatarFetcher はAvatarFetcherServiceの新しいインスタンスを生成する。
func NewAvatarFetcher(guard SSRFGuardService, timeout time.Duration, maxSize int64) *avatarFetcher {
	return &avatarFetcher{
		client:  guard.NewSafeClient(timeout),
		guard:   guard,
		maxSize: maxSize,
	}
}

// Fetch は画像URLを取得し、画像データとContent-Typeを返す。
func (f *avatarFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	// 1. 静的なURL検証。DNS解決後の検証はクライアント側で行われる
	if err := f.guard.ValidateURL(rawURL); err != nil {
		return nil, "", fmt.Errorf("unsafe image URL: %w", err)
	}

	// 2. 画像を取得
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status fetching image: %d", resp.StatusCode)
	}

	// 3. Content-Typeを検証
	contentType := resp.Header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	if !allowedImageTypes[contentType] {
		return nil, "", fmt.Errorf("unsupported image content type: %q", contentType)
	}

	// 4. サイズ上限付きで読み込む。上限+1バイト読めた場合は超過
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, "", fmt.Errorf("image exceeds maximum size of %d bytes", f.maxSize)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image body")
	}

	return data, contentType, nil
}

var _ AvatarFetcherService = (*avatarFetcher)(nil)
