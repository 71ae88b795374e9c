package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/wasteman/internal/model"
)

// PostgresScenarioRepo はPostgreSQLを使用したシナリオリポジトリ。
// 収集対象コンテナ（scenario_bins）を同一トランザクションで管理する。
type PostgresScenarioRepo struct {
	db *sql.DB
}

// NewPostgresScenarioRepo はPostgresScenarioRepoを生成する。
func NewPostgresScenarioRepo(db *sql.DB) *PostgresScenarioRepo {
	return &PostgresScenarioRepo{db: db}
}

const scenarioColumns = `id, name, municipality_id, collection_date, vehicle_id, start_landfill_id, status, created_by, created_at, updated_at`

func scanScenario(row interface{ Scan(...any) error }) (*model.Scenario, error) {
	s := &model.Scenario{}
	var vehicleID, startLandfillID sql.NullString
	err := row.Scan(&s.ID, &s.Name, &s.MunicipalityID, &s.CollectionDate,
		&vehicleID, &startLandfillID, &s.Status, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.VehicleID = vehicleID.String
	s.StartLandfillID = startLandfillID.String
	return s, nil
}

// FindByID は指定IDのシナリオを収集対象コンテナID付きで取得する。
// 見つからない場合はnilを返す。
func (r *PostgresScenarioRepo) FindByID(ctx context.Context, id string) (*model.Scenario, error) {
	s, err := scanScenario(r.db.QueryRowContext(ctx,
		`SELECT `+scenarioColumns+` FROM scenarios WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find scenario by ID: %w", err)
	}

	s.BinIDs, err = r.binIDs(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// List はシナリオ一覧と総件数を返す。CreatedBy指定時は作成者で絞り込む。
func (r *PostgresScenarioRepo) List(ctx context.Context, opts ScenarioListOptions) ([]*model.Scenario, int, error) {
	query := `SELECT ` + scenarioColumns + ` FROM scenarios`
	countQuery := `SELECT COUNT(*) FROM scenarios`
	args := []any{}

	if opts.CreatedBy != "" {
		query += ` WHERE created_by = $1`
		countQuery += ` WHERE created_by = $1`
		args = append(args, opts.CreatedBy)
	}
	query += ` ORDER BY collection_date DESC, created_at DESC`

	countArgs := make([]any, len(args))
	copy(countArgs, args)

	if opts.Paginated() {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, opts.PageSize, opts.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var list []*model.Scenario
	for rows.Next() {
		s, err := scanScenario(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan scenario: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate scenarios: %w", err)
	}

	if err := r.loadBinIDs(ctx, list); err != nil {
		return nil, 0, err
	}

	if !opts.Paginated() {
		return list, len(list), nil
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count scenarios: %w", err)
	}
	return list, total, nil
}

// Create はシナリオとコンテナ割り当てを同一トランザクションで作成する。
func (r *PostgresScenarioRepo) Create(ctx context.Context, s *model.Scenario) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scenarios (id, name, municipality_id, collection_date, vehicle_id, start_landfill_id, status, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)`,
		s.ID, s.Name, s.MunicipalityID, s.CollectionDate,
		s.VehicleID, s.StartLandfillID, s.Status, s.CreatedBy, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scenario: %w", err)
	}

	if err := insertScenarioBins(ctx, tx, s.ID, s.BinIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update はシナリオとコンテナ割り当てを同一トランザクションで更新する。
// 割り当ては全削除してから挿入し直す。
func (r *PostgresScenarioRepo) Update(ctx context.Context, s *model.Scenario) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE scenarios SET name = $2, municipality_id = $3, collection_date = $4,
		    vehicle_id = NULLIF($5, ''), start_landfill_id = NULLIF($6, ''),
		    status = $7, updated_at = $8
		 WHERE id = $1`,
		s.ID, s.Name, s.MunicipalityID, s.CollectionDate,
		s.VehicleID, s.StartLandfillID, s.Status, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update scenario: %w", err)
	}
	if err := requireRowsAffected(result, "scenario", s.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM scenario_bins WHERE scenario_id = $1`, s.ID,
	); err != nil {
		return fmt.Errorf("failed to clear scenario bins: %w", err)
	}
	if err := insertScenarioBins(ctx, tx, s.ID, s.BinIDs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのシナリオを削除する。割り当てとソリューションはCASCADE削除される。
func (r *PostgresScenarioRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scenarios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	return requireRowsAffected(result, "scenario", id)
}

// UpdateStatus はシナリオの状態のみを更新する。
func (r *PostgresScenarioRepo) UpdateStatus(ctx context.Context, id string, status model.ScenarioStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE scenarios SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update scenario status: %w", err)
	}
	return requireRowsAffected(result, "scenario", id)
}

func (r *PostgresScenarioRepo) binIDs(ctx context.Context, scenarioID string) ([]string, error) {
	var ids pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(array_agg(bin_id ORDER BY bin_id), '{}')
		 FROM scenario_bins WHERE scenario_id = $1`, scenarioID,
	).Scan(&ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario bins: %w", err)
	}
	return ids, nil
}

// loadBinIDs はリスト取得結果の各シナリオにコンテナIDを一括ロードする。
func (r *PostgresScenarioRepo) loadBinIDs(ctx context.Context, scenarios []*model.Scenario) error {
	if len(scenarios) == 0 {
		return nil
	}

	byID := make(map[string]*model.Scenario, len(scenarios))
	ids := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT scenario_id, bin_id FROM scenario_bins
		 WHERE scenario_id = ANY($1) ORDER BY bin_id`, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to load scenario bins: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var scenarioID, binID string
		if err := rows.Scan(&scenarioID, &binID); err != nil {
			return fmt.Errorf("failed to scan scenario bin: %w", err)
		}
		if s, ok := byID[scenarioID]; ok {
			s.BinIDs = append(s.BinIDs, binID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate scenario bins: %w", err)
	}
	return nil
}

func insertScenarioBins(ctx context.Context, tx *sql.Tx, scenarioID string, binIDs []string) error {
	for _, bid := range binIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scenario_bins (scenario_id, bin_id) VALUES ($1, $2)`,
			scenarioID, bid,
		); err != nil {
			return fmt.Errorf("failed to insert scenario bin: %w", err)
		}
	}
	return nil
}

var _ ScenarioRepository = (*PostgresScenarioRepo)(nil)
