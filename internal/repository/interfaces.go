// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/wasteman/internal/model"
)

// ListOptions はリスト取得の共通オプション。
// Pageが0以下の場合はページネーションなしで全件を返す。
type ListOptions struct {
	Page     int
	PageSize int
}

// Paginated はページネーション指定があるかどうかを返す。
func (o ListOptions) Paginated() bool {
	return o.Page > 0 && o.PageSize > 0
}

// Offset はSQLのOFFSET値を返す。
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PageSize
}

// UserListOptions はユーザーリスト取得のオプション。
type UserListOptions struct {
	ListOptions
	Role            model.Role // 空の場合は全役割
	IncludeArchived bool
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List はユーザー一覧と総件数を返す。
	List(ctx context.Context, opts UserListOptions) ([]*model.User, int, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザー情報を更新する。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error

	// SetArchived はアーカイブ状態を更新する。
	SetArchived(ctx context.Context, id string, archived bool) error

	// RecordLogin はlast_login_atを更新する。
	RecordLogin(ctx context.Context, id string, at time.Time) error

	// RecordLogout はlast_logout_atを更新する。
	RecordLogout(ctx context.Context, id string, at time.Time) error

	// RecordPasswordChange はパスワードハッシュと変更アクティビティを同時に更新する。
	// 初回有効化（reason=initial）の場合はis_activeもtrueに更新する。
	RecordPasswordChange(ctx context.Context, id, passwordHash string, reason model.PasswordChangeReason, at time.Time) error
}

// MunicipalityRepository は自治体データの永続化インターフェース。
type MunicipalityRepository interface {
	FindByID(ctx context.Context, id string) (*model.Municipality, error)
	List(ctx context.Context, opts ListOptions) ([]*model.Municipality, int, error)
	Create(ctx context.Context, m *model.Municipality) error
	Update(ctx context.Context, m *model.Municipality) error
	DeleteByID(ctx context.Context, id string) error
}

// BinRepository はコンテナデータの永続化インターフェース。
type BinRepository interface {
	FindByID(ctx context.Context, id string) (*model.Bin, error)
	List(ctx context.Context, opts ListOptions) ([]*model.Bin, int, error)
	Create(ctx context.Context, b *model.Bin) error
	Update(ctx context.Context, b *model.Bin) error
	DeleteByID(ctx context.Context, id string) error

	// FindByIDs は指定IDのコンテナをまとめて取得する。存在しないIDは結果に含まれない。
	FindByIDs(ctx context.Context, ids []string) ([]*model.Bin, error)

	// ListAvailable はシナリオに割り当て可能なコンテナを返す。
	// 指定自治体のアクティブなコンテナのうち、未完了（draft/solving/failed）の
	// 他シナリオに割り当てられていないものが対象。excludeScenarioIDを指定すると
	// そのシナリオへの既存割り当ては利用可能として扱う（編集画面用）。
	ListAvailable(ctx context.Context, municipalityID, excludeScenarioID string) ([]*model.Bin, error)
}

// VehicleRepository は車両データの永続化インターフェース。
type VehicleRepository interface {
	FindByID(ctx context.Context, id string) (*model.Vehicle, error)
	List(ctx context.Context, opts ListOptions) ([]*model.Vehicle, int, error)
	Create(ctx context.Context, v *model.Vehicle) error
	Update(ctx context.Context, v *model.Vehicle) error
	DeleteByID(ctx context.Context, id string) error
}

// LandfillRepository は埋立地データの永続化インターフェース。
// 自治体との多対多関連も同一トランザクションで管理する。
type LandfillRepository interface {
	FindByID(ctx context.Context, id string) (*model.Landfill, error)
	List(ctx context.Context, opts ListOptions) ([]*model.Landfill, int, error)
	Create(ctx context.Context, l *model.Landfill) error
	Update(ctx context.Context, l *model.Landfill) error
	DeleteByID(ctx context.Context, id string) error
}

// ScenarioListOptions はシナリオリスト取得のオプション。
type ScenarioListOptions struct {
	ListOptions
	CreatedBy string // 空の場合は全ユーザー
}

// ScenarioRepository はシナリオデータの永続化インターフェース。
// 収集対象コンテナ（scenario_bins）も同一トランザクションで管理する。
type ScenarioRepository interface {
	FindByID(ctx context.Context, id string) (*model.Scenario, error)
	List(ctx context.Context, opts ScenarioListOptions) ([]*model.Scenario, int, error)
	Create(ctx context.Context, s *model.Scenario) error
	Update(ctx context.Context, s *model.Scenario) error
	DeleteByID(ctx context.Context, id string) error

	// UpdateStatus はシナリオの状態のみを更新する。
	UpdateStatus(ctx context.Context, id string, status model.ScenarioStatus) error
}

// SolutionRepository はソリューションデータの永続化インターフェース。
type SolutionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Solution, error)
	FindByScenarioID(ctx context.Context, scenarioID string) (*model.Solution, error)
	List(ctx context.Context, opts ListOptions) ([]*model.Solution, int, error)
	Create(ctx context.Context, sol *model.Solution) error

	// DeleteByScenarioID はシナリオの既存ソリューションを削除する。
	// 再計算時に古い結果を置き換えるために使用する。
	DeleteByScenarioID(ctx context.Context, scenarioID string) error
}

// RefreshTokenRepository はリフレッシュトークンの永続化インターフェース。
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error

	// FindByHash はトークンハッシュでレコードを検索する。見つからない場合はnilを返す。
	FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error)

	// Revoke はトークンを失効させ、後続トークンのIDを記録する。
	Revoke(ctx context.Context, id, replacedBy string, at time.Time) error

	// RevokeAllForUser は指定ユーザーの有効なトークンをすべて失効させる。
	// ローテーション済みトークンの再利用を検出した際のチェーン無効化に使用する。
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error

	// DeleteExpired は期限切れトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
