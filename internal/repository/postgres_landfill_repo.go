package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/wasteman/internal/model"
)

// PostgresLandfillRepo はPostgreSQLを使用した埋立地リポジトリ。
// 自治体との多対多関連（landfill_municipalities）を同一トランザクションで管理する。
type PostgresLandfillRepo struct {
	db *sql.DB
}

// NewPostgresLandfillRepo はPostgresLandfillRepoを生成する。
func NewPostgresLandfillRepo(db *sql.DB) *PostgresLandfillRepo {
	return &PostgresLandfillRepo{db: db}
}

// FindByID は指定IDの埋立地を関連自治体ID付きで取得する。見つからない場合はnilを返す。
func (r *PostgresLandfillRepo) FindByID(ctx context.Context, id string) (*model.Landfill, error) {
	l := &model.Landfill{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, latitude, longitude, description, created_at, updated_at
		 FROM landfills WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.Latitude, &l.Longitude, &l.Description, &l.CreatedAt, &l.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find landfill by ID: %w", err)
	}

	l.MunicipalityIDs, err = r.municipalityIDs(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// List は埋立地一覧と総件数を返す。各埋立地に関連自治体IDを含める。
func (r *PostgresLandfillRepo) List(ctx context.Context, opts ListOptions) ([]*model.Landfill, int, error) {
	query := `SELECT id, name, latitude, longitude, description, created_at, updated_at
	          FROM landfills ORDER BY name`
	args := []any{}
	if opts.Paginated() {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.PageSize, opts.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list landfills: %w", err)
	}
	defer rows.Close()

	var list []*model.Landfill
	for rows.Next() {
		l := &model.Landfill{}
		if err := rows.Scan(&l.ID, &l.Name, &l.Latitude, &l.Longitude, &l.Description, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan landfill: %w", err)
		}
		list = append(list, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate landfills: %w", err)
	}

	for _, l := range list {
		l.MunicipalityIDs, err = r.municipalityIDs(ctx, l.ID)
		if err != nil {
			return nil, 0, err
		}
	}

	if !opts.Paginated() {
		return list, len(list), nil
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM landfills`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count landfills: %w", err)
	}
	return list, total, nil
}

// Create は埋立地と自治体関連を同一トランザクションで作成する。
func (r *PostgresLandfillRepo) Create(ctx context.Context, l *model.Landfill) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO landfills (id, name, latitude, longitude, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.Name, l.Latitude, l.Longitude, l.Description, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert landfill: %w", err)
	}

	if err := insertLandfillMunicipalities(ctx, tx, l.ID, l.MunicipalityIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update は埋立地と自治体関連を同一トランザクションで更新する。
// 関連は全削除してから挿入し直す。
func (r *PostgresLandfillRepo) Update(ctx context.Context, l *model.Landfill) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE landfills SET name = $2, latitude = $3, longitude = $4,
		    description = $5, updated_at = $6
		 WHERE id = $1`,
		l.ID, l.Name, l.Latitude, l.Longitude, l.Description, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update landfill: %w", err)
	}
	if err := requireRowsAffected(result, "landfill", l.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM landfill_municipalities WHERE landfill_id = $1`, l.ID,
	); err != nil {
		return fmt.Errorf("failed to clear landfill municipalities: %w", err)
	}
	if err := insertLandfillMunicipalities(ctx, tx, l.ID, l.MunicipalityIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの埋立地を削除する。自治体関連はCASCADE削除される。
func (r *PostgresLandfillRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM landfills WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete landfill: %w", err)
	}
	return requireRowsAffected(result, "landfill", id)
}

func (r *PostgresLandfillRepo) municipalityIDs(ctx context.Context, landfillID string) ([]string, error) {
	var ids pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(array_agg(municipality_id ORDER BY municipality_id), '{}')
		 FROM landfill_municipalities WHERE landfill_id = $1`, landfillID,
	).Scan(&ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load landfill municipalities: %w", err)
	}
	return ids, nil
}

func insertLandfillMunicipalities(ctx context.Context, tx *sql.Tx, landfillID string, municipalityIDs []string) error {
	for _, mid := range municipalityIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO landfill_municipalities (landfill_id, municipality_id) VALUES ($1, $2)`,
			landfillID, mid,
		); err != nil {
			return fmt.Errorf("failed to insert landfill municipality: %w", err)
		}
	}
	return nil
}

var _ LandfillRepository = (*PostgresLandfillRepo)(nil)
