// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleAdmin は管理者。全リソースの管理画面にアクセスできる。
	RoleAdmin Role = "admin"
	// RolePlanner はプランナー。収集シナリオの作成とソリューション閲覧ができる。
	RolePlanner Role = "planner"
	// RoleDriver はドライバー。管理画面へのアクセス権は持たない。
	RoleDriver Role = "driver"
)

// ValidRole は既知の役割かどうかを返す。
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RolePlanner, RoleDriver:
		return true
	}
	return false
}

// PasswordChangeReason はパスワード変更の経緯を表す。
type PasswordChangeReason string

const (
	// PasswordChangeInitial は初回アカウント有効化による設定。
	PasswordChangeInitial PasswordChangeReason = "initial"
	// PasswordChangeForgot はパスワードリセットフローによる変更。
	PasswordChangeForgot PasswordChangeReason = "forgot"
	// PasswordChangeManual はプロフィール画面からの変更。
	PasswordChangeManual PasswordChangeReason = "change"
)

// User はシステム利用者を表す。
// IsActiveは初回有効化フロー完了済みかを示す。falseのユーザーはログイン自体は
// 可能だが、クライアント側でアカウント有効化フローへ誘導される。
// IsArchivedはソフトデリート状態を示し、ログインできない。
type User struct {
	ID               string
	Email            string
	Username         string
	Phone            string
	Role             Role
	PasswordHash     string
	ImageProfileData []byte
	ImageProfileMime string
	IsActive         bool
	IsArchived       bool

	// 認証アクティビティ（アクティビティログ画面で参照される）
	LastLoginAt              *time.Time
	LastLogoutAt             *time.Time
	LastPasswordChangeAt     *time.Time
	LastPasswordChangeReason PasswordChangeReason

	CreatedAt time.Time
	UpdatedAt time.Time
}
