package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizerService は自由入力テキストのサニタイズ機能の
// インターフェースを定義する。自治体や埋立地の説明文、シナリオ名など、
// 管理画面にそのまま表示されるフィールドの保存前に使用される。
type DescriptionSanitizerService interface {
	// Sanitize は入力からすべてのHTMLタグを除去しプレーンテキストを返す。
	// 前後の空白は取り除かれる。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// descriptionSanitizer はDescriptionSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyはタグを一切許可しないため、scriptやimgを含む入力も
// テキスト部分のみが残る。
func NewDescriptionSanitizer() *descriptionSanitizer {
	return &descriptionSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からすべてのHTMLタグを除去しプレーンテキストを返す。
// bluemondayはテキストをエスケープして返すため、表示用の
// プレーンテキストに戻すためエンティティをデコードする。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

var _ DescriptionSanitizerService = (*descriptionSanitizer)(nil)
