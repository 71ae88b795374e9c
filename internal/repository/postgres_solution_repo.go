package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/wasteman/internal/model"
)

// PostgresSolutionRepo はPostgreSQLを使用したソリューションリポジトリ。
// 経路計算結果はJSONBカラムにそのまま保存する。
type PostgresSolutionRepo struct {
	db *sql.DB
}

// NewPostgresSolutionRepo はPostgresSolutionRepoを生成する。
func NewPostgresSolutionRepo(db *sql.DB) *PostgresSolutionRepo {
	return &PostgresSolutionRepo{db: db}
}

func scanSolution(row interface{ Scan(...any) error }) (*model.Solution, error) {
	sol := &model.Solution{}
	var data []byte
	if err := row.Scan(&sol.ID, &sol.ScenarioID, &data, &sol.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &sol.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal solution data: %w", err)
	}
	return sol, nil
}

// FindByID は指定IDのソリューションを取得する。見つからない場合はnilを返す。
func (r *PostgresSolutionRepo) FindByID(ctx context.Context, id string) (*model.Solution, error) {
	sol, err := scanSolution(r.db.QueryRowContext(ctx,
		`SELECT id, scenario_id, data, created_at FROM solutions WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find solution by ID: %w", err)
	}
	return sol, nil
}

// FindByScenarioID は指定シナリオの最新ソリューションを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresSolutionRepo) FindByScenarioID(ctx context.Context, scenarioID string) (*model.Solution, error) {
	sol, err := scanSolution(r.db.QueryRowContext(ctx,
		`SELECT id, scenario_id, data, created_at FROM solutions
		 WHERE scenario_id = $1 ORDER BY created_at DESC LIMIT 1`, scenarioID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find solution by scenario ID: %w", err)
	}
	return sol, nil
}

// List はソリューション一覧と総件数を返す。
func (r *PostgresSolutionRepo) List(ctx context.Context, opts ListOptions) ([]*model.Solution, int, error) {
	query := `SELECT id, scenario_id, data, created_at FROM solutions ORDER BY created_at DESC`
	args := []any{}
	if opts.Paginated() {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, opts.PageSize, opts.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list solutions: %w", err)
	}
	defer rows.Close()

	var list []*model.Solution
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan solution: %w", err)
		}
		list = append(list, sol)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate solutions: %w", err)
	}

	if !opts.Paginated() {
		return list, len(list), nil
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM solutions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count solutions: %w", err)
	}
	return list, total, nil
}

// Create はソリューションを作成する。
func (r *PostgresSolutionRepo) Create(ctx context.Context, sol *model.Solution) error {
	data, err := json.Marshal(sol.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal solution data: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO solutions (id, scenario_id, data, created_at) VALUES ($1, $2, $3, $4)`,
		sol.ID, sol.ScenarioID, data, sol.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert solution: %w", err)
	}
	return nil
}

// DeleteByScenarioID はシナリオの既存ソリューションを削除する。
// 対象がない場合もエラーにしない。
func (r *PostgresSolutionRepo) DeleteByScenarioID(ctx context.Context, scenarioID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM solutions WHERE scenario_id = $1`, scenarioID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete solutions by scenario ID: %w", err)
	}
	return nil
}

var _ SolutionRepository = (*PostgresSolutionRepo)(nil)
