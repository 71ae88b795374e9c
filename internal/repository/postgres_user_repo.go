package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/wasteman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, username, phone, role, password_hash,
	image_profile_data, image_profile_mime, is_active, is_archived,
	last_login_at, last_logout_at, last_password_change_at, last_password_change_reason,
	created_at, updated_at`

// scanUser は1行分のユーザーレコードをスキャンする。
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var lastLoginAt, lastLogoutAt, lastPasswordChangeAt sql.NullTime
	var imageData []byte

	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &user.Phone, &user.Role, &user.PasswordHash,
		&imageData, &user.ImageProfileMime, &user.IsActive, &user.IsArchived,
		&lastLoginAt, &lastLogoutAt, &lastPasswordChangeAt, &user.LastPasswordChangeReason,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.ImageProfileData = imageData
	if lastLoginAt.Valid {
		user.LastLoginAt = &lastLoginAt.Time
	}
	if lastLogoutAt.Valid {
		user.LastLogoutAt = &lastLogoutAt.Time
	}
	if lastPasswordChangeAt.Valid {
		user.LastPasswordChangeAt = &lastPasswordChangeAt.Time
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// List はユーザー一覧と総件数を返す。
// opts.Paginated()がfalseの場合は全件を返し、総件数は取得件数と等しい。
func (r *PostgresUserRepo) List(ctx context.Context, opts UserListOptions) ([]*model.User, int, error) {
	where := `WHERE 1=1`
	args := []any{}

	if opts.Role != "" {
		args = append(args, opts.Role)
		where += fmt.Sprintf(` AND role = $%d`, len(args))
	}
	if !opts.IncludeArchived {
		where += ` AND is_archived = FALSE`
	}

	query := `SELECT ` + userColumns + ` FROM users ` + where + ` ORDER BY created_at DESC`
	if opts.Paginated() {
		args = append(args, opts.PageSize, opts.Offset())
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	if !opts.Paginated() {
		return users, len(users), nil
	}

	// ページネーション時は総件数を別クエリで取得する
	countArgs := args[:len(args)-2]
	var total int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users `+where, countArgs...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	return users, total, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, phone, role, password_hash,
		    image_profile_data, image_profile_mime, is_active, is_archived,
		    last_password_change_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		user.ID, user.Email, user.Username, user.Phone, user.Role, user.PasswordHash,
		user.ImageProfileData, user.ImageProfileMime, user.IsActive, user.IsArchived,
		string(user.LastPasswordChangeReason), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update はユーザー情報を更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET username = $2, phone = $3, role = $4,
		    image_profile_data = $5, image_profile_mime = $6, updated_at = $7
		 WHERE id = $1`,
		user.ID, user.Username, user.Phone, user.Role,
		user.ImageProfileData, user.ImageProfileMime, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRowsAffected(result, "user", user.ID)
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するシナリオ、リフレッシュトークンはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRowsAffected(result, "user", id)
}

// SetArchived はアーカイブ状態を更新する。
func (r *PostgresUserRepo) SetArchived(ctx context.Context, id string, archived bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_archived = $2, updated_at = NOW() WHERE id = $1`,
		id, archived,
	)
	if err != nil {
		return fmt.Errorf("failed to set archived: %w", err)
	}
	return requireRowsAffected(result, "user", id)
}

// RecordLogin はlast_login_atを更新する。
func (r *PostgresUserRepo) RecordLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// RecordLogout はlast_logout_atを更新する。
func (r *PostgresUserRepo) RecordLogout(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_logout_at = $2 WHERE id = $1`, id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to record logout: %w", err)
	}
	return nil
}

// RecordPasswordChange はパスワードハッシュと変更アクティビティを同時に更新する。
// 初回有効化（reason=initial）の場合はis_activeもtrueに更新する。
func (r *PostgresUserRepo) RecordPasswordChange(ctx context.Context, id, passwordHash string, reason model.PasswordChangeReason, at time.Time) error {
	activate := reason == model.PasswordChangeInitial
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2,
		    last_password_change_at = $3, last_password_change_reason = $4,
		    is_active = (is_active OR $5), updated_at = $3
		 WHERE id = $1`,
		id, passwordHash, at, string(reason), activate,
	)
	if err != nil {
		return fmt.Errorf("failed to record password change: %w", err)
	}
	return requireRowsAffected(result, "user", id)
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
