package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError はバックエンドが返すエラーレスポンスを表す。
// バリデーションエラー以外の失敗はこの形式で返される。
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d", e.StatusCode)
}

// ValidationError はフィールド単位のバリデーションエラーを表す。
// バックエンドが返すフィールドキーのマップをそのまま保持し、
// 呼び出し元のフォームが無加工で表示に使用する。
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d fields", len(e.Fields))
}

// IsUnauthorized はエラーが認証切れ（401）かどうかを判定する。
// 透過リフレッシュ後もなお認証に失敗した場合にtrueになる。
func IsUnauthorized(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusUnauthorized
}

// IsForbidden はエラーが権限不足（403）かどうかを判定する。
// 権限不足はセッション無効を意味せず、リトライもされない。
func IsForbidden(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusForbidden
}

// decodeError はエラーレスポンスのボディを対応するエラー型に変換する。
// code付きエンベロープはAPIError、フィールドマップはValidationErrorになる。
func decodeError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode}
	}

	var envelope APIError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Code != "" {
		envelope.StatusCode = resp.StatusCode
		return &envelope
	}

	if resp.StatusCode == http.StatusBadRequest {
		var fields map[string][]string
		if err := json.Unmarshal(body, &fields); err == nil && len(fields) > 0 {
			return &ValidationError{Fields: fields}
		}
		// {field: "message"} 形式の後方互換
		var single map[string]string
		if err := json.Unmarshal(body, &single); err == nil && len(single) > 0 {
			fields = make(map[string][]string, len(single))
			for k, v := range single {
				fields[k] = []string{v}
			}
			return &ValidationError{Fields: fields}
		}
	}

	return &APIError{StatusCode: resp.StatusCode}
}
