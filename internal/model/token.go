package model

import "time"

// RefreshToken はリフレッシュトークンの永続化レコードを表す。
// トークン本体は保存せず、SHA-256ハッシュのみを保持する。
// ローテーション時はRevokedAtを設定し、ReplacedByに後続トークンのIDを記録する。
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
	ReplacedBy string
}

// Revoked は失効済みかどうかを返す。
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired は有効期限切れかどうかを返す。
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
