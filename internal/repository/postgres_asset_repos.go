package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/wasteman/internal/model"
)

// PostgresMunicipalityRepo はPostgreSQLを使用した自治体リポジトリ。
type PostgresMunicipalityRepo struct {
	db *sql.DB
}

// NewPostgresMunicipalityRepo はPostgresMunicipalityRepoを生成する。
func NewPostgresMunicipalityRepo(db *sql.DB) *PostgresMunicipalityRepo {
	return &PostgresMunicipalityRepo{db: db}
}

// FindByID は指定IDの自治体を取得する。見つからない場合はnilを返す。
func (r *PostgresMunicipalityRepo) FindByID(ctx context.Context, id string) (*model.Municipality, error) {
	m := &model.Municipality{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, hq_latitude, hq_longitude, description, created_at, updated_at
		 FROM municipalities WHERE id = $1`, id,
	).Scan(&m.ID, &m.Name, &m.HQLatitude, &m.HQLongitude, &m.Description, &m.CreatedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find municipality by ID: %w", err)
	}
	return m, nil
}

// List は自治体一覧と総件数を返す。
func (r *PostgresMunicipalityRepo) List(ctx context.Context, opts ListOptions) ([]*model.Municipality, int, error) {
	query := `SELECT id, name, hq_latitude, hq_longitude, description, created_at, updated_at
	          FROM municipalities ORDER BY name`
	args := []any{}
	if opts.Paginated() {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.PageSize, opts.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list municipalities: %w", err)
	}
	defer rows.Close()

	var list []*model.Municipality
	for rows.Next() {
		m := &model.Municipality{}
		if err := rows.Scan(&m.ID, &m.Name, &m.HQLatitude, &m.HQLongitude, &m.Description, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan municipality: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate municipalities: %w", err)
	}

	if !opts.Paginated() {
		return list, len(list), nil
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM municipalities`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count municipalities: %w", err)
	}
	return list, total, nil
}

// Create は自治体を作成する。
func (r *PostgresMunicipalityRepo) Create(ctx context.Context, m *model.Municipality) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO municipalities (id, name, hq_latitude, hq_longitude, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.Name, m.HQLatitude, m.HQLongitude, m.Description, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert municipality: %w", err)
	}
	return nil
}

// Update は自治体情報を更新する。
func (r *PostgresMunicipalityRepo) Update(ctx context.Context, m *model.Municipality) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE municipalities SET name = $2, hq_latitude = $3, hq_longitude = $4,
		    description = $5, updated_at = $6
		 WHERE id = $1`,
		m.ID, m.Name, m.HQLatitude, m.HQLongitude, m.Description, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update municipality: %w", err)
	}
	return requireRowsAffected(result, "municipality", m.ID)
}

// DeleteByID は指定IDの自治体を削除する。関連するコンテナはCASCADE削除される。
func (r *PostgresMunicipalityRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM municipalities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete municipality: %w", err)
	}
	return requireRowsAffected(result, "municipality", id)
}

// PostgresBinRepo はPostgreSQLを使用したコンテナリポジトリ。
type PostgresBinRepo struct {
	db *sql.DB
}

// NewPostgresBinRepo はPostgresBinRepoを生成する。
func NewPostgresBinRepo(db *sql.DB) *PostgresBinRepo {
	return &PostgresBinRepo{db: db}
}

const binColumns = `id, name, latitude, longitude, capacity, is_active, municipality_id, created_at, updated_at`

func scanBin(row interface{ Scan(...any) error }) (*model.Bin, error) {
	b := &model.Bin{}
	err := row.Scan(&b.ID, &b.Name, &b.Latitude, &b.Longitude, &b.Capacity,
		&b.IsActive, &b.MunicipalityID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// FindByID は指定IDのコンテナを取得する。見つからない場合はnilを返す。
func (r *PostgresBinRepo) FindByID(ctx context.Context, id string) (*model.Bin, error) {
	b, err := scanBin(r.db.QueryRowContext(ctx,
		`SELECT `+binColumns+` FROM bins WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find bin by ID: %w", err)
	}
	return b, nil
}

// List はコンテナ一覧と総件数を返す。
func (r *PostgresBinRepo) List(ctx context.Context, opts ListOptions) ([]*model.Bin, int, error) {
	query := `SELECT ` + binColumns + ` FROM bins ORDER BY name`
	args := []any{}
	if opts.Paginated() {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.PageSize, opts.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bins: %w", err)
	}
	defer rows.Close()

	var list []*model.Bin
	for rows.Next() {
		b, err := scanBin(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan bin: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate bins: %w", err)
	}

	if !opts.Paginated() {
		return list, len(list), nil
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bins`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bins: %w", err)
	}
	return list, total, nil
}

// Create はコンテナを作成する。
func (r *PostgresBinRepo) Create(ctx context.Context, b *model.Bin) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bins (id, name, latitude, longitude, capacity, is_active, municipality_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.Name, b.Latitude, b.Longitude, b.Capacity, b.IsActive, b.MunicipalityID, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bin: %w", err)
	}
	return nil
}

// Update はコンテナ情報を更新する。
func (r *PostgresBinRepo) Update(ctx context.Context, b *model.Bin) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bins SET name = $2, latitude = $3, longitude = $4, capacity = $5,
		    is_active = $6, municipality_id = $7, updated_at = $8
		 WHERE id = $1`,
		b.ID, b.Name, b.Latitude, b.Longitude, b.Capacity, b.IsActive, b.MunicipalityID, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update bin: %w", err)
	}
	return requireRowsAffected(result, "bin", b.ID)
}

// DeleteByID は指定IDのコンテナを削除する。
func (r *PostgresBinRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bins WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bin: %w", err)
	}
	return requireRowsAffected(result, "bin", id)
}

// FindByIDs は指定IDのコンテナをまとめて取得する。存在しないIDは結果に含まれない。
func (r *PostgresBinRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.Bin, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+binColumns+` FROM bins WHERE id = ANY($1)`, pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find bins by IDs: %w", err)
	}
	defer rows.Close()

	var list []*model.Bin
	for rows.Next() {
		b, err := scanBin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bin: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bins: %w", err)
	}
	return list, nil
}

// ListAvailable はシナリオに割り当て可能なコンテナを返す。
// 指定自治体のアクティブなコンテナのうち、未完了（draft/solving/failed）の
// 他シナリオに割り当てられていないものが対象。
func (r *PostgresBinRepo) ListAvailable(ctx context.Context, municipalityID, excludeScenarioID string) ([]*model.Bin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+binColumns+` FROM bins b
		 WHERE b.municipality_id = $1
		   AND b.is_active = TRUE
		   AND NOT EXISTS (
		       SELECT 1 FROM scenario_bins sb
		       JOIN scenarios s ON s.id = sb.scenario_id
		       WHERE sb.bin_id = b.id
		         AND s.status IN ('draft', 'solving', 'failed')
		         AND ($2 = '' OR s.id <> $2::uuid)
		   )
		 ORDER BY b.name`,
		municipalityID, excludeScenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list available bins: %w", err)
	}
	defer rows.Close()

	var list []*model.Bin
	for rows.Next() {
		b, err := scanBin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bin: %w", err)
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bins: %w", err)
	}
	return list, nil
}

// PostgresVehicleRepo はPostgreSQLを使用した車両リポジトリ。
type PostgresVehicleRepo struct {
	db *sql.DB
}

// NewPostgresVehicleRepo はPostgresVehicleRepoを生成する。
func NewPostgresVehicleRepo(db *sql.DB) *PostgresVehicleRepo {
	return &PostgresVehicleRepo{db: db}
}

// FindByID は指定IDの車両を取得する。見つからない場合はnilを返す。
func (r *PostgresVehicleRepo) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	v := &model.Vehicle{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, capacity, start_latitude, start_longitude, created_at, updated_at
		 FROM vehicles WHERE id = $1`, id,
	).Scan(&v.ID, &v.Name, &v.Capacity, &v.StartLatitude, &v.StartLongitude, &v.CreatedAt, &v.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicle by ID: %w", err)
	}
	return v, nil
}

// List は車両一覧と総件数を返す。
func (r *PostgresVehicleRepo) List(ctx context.Context, opts ListOptions) ([]*model.Vehicle, int, error) {
	query := `SELECT id, name, capacity, start_latitude, start_longitude, created_at, updated_at
	          FROM vehicles ORDER BY name`
	args := []any{}
	if opts.Paginated() {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.PageSize, opts.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var list []*model.Vehicle
	for rows.Next() {
		v := &model.Vehicle{}
		if err := rows.Scan(&v.ID, &v.Name, &v.Capacity, &v.StartLatitude, &v.StartLongitude, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate vehicles: %w", err)
	}

	if !opts.Paginated() {
		return list, len(list), nil
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count vehicles: %w", err)
	}
	return list, total, nil
}

// Create は車両を作成する。
func (r *PostgresVehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vehicles (id, name, capacity, start_latitude, start_longitude, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		v.ID, v.Name, v.Capacity, v.StartLatitude, v.StartLongitude, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return nil
}

// Update は車両情報を更新する。
func (r *PostgresVehicleRepo) Update(ctx context.Context, v *model.Vehicle) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE vehicles SET name = $2, capacity = $3, start_latitude = $4,
		    start_longitude = $5, updated_at = $6
		 WHERE id = $1`,
		v.ID, v.Name, v.Capacity, v.StartLatitude, v.StartLongitude, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update vehicle: %w", err)
	}
	return requireRowsAffected(result, "vehicle", v.ID)
}

// DeleteByID は指定IDの車両を削除する。
func (r *PostgresVehicleRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	return requireRowsAffected(result, "vehicle", id)
}

// compile-time interface checks
var _ MunicipalityRepository = (*PostgresMunicipalityRepo)(nil)
var _ BinRepository = (*PostgresBinRepo)(nil)
var _ VehicleRepository = (*PostgresVehicleRepo)(nil)
