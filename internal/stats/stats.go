// Package stats は管理ダッシュボードの統計値の集計を提供する。
package stats

import (
	"context"
	"database/sql"
	"fmt"
)

// DashboardStats は管理ダッシュボードに表示する統計値を表す。
type DashboardStats struct {
	ActiveUsers       int `json:"users_active"`
	ActiveBins        int `json:"bins_active"`
	TotalVehicles     int `json:"vehicles_total"`
	TotalMunicipality int `json:"municipality_total"`
	SolvedScenarios   int `json:"scenarios_solved"`
	TotalScenarios    int `json:"scenarios_total"`
}

// Service は統計値の集計を提供する。
type Service struct {
	db *sql.DB
}

// NewService はServiceを生成する。
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Dashboard は管理ダッシュボード用の統計値をまとめて取得する。
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	queries := []struct {
		name  string
		query string
		dest  *int
	}{
		{"active users", `SELECT COUNT(*) FROM users WHERE is_active = TRUE AND is_archived = FALSE`, &stats.ActiveUsers},
		{"active bins", `SELECT COUNT(*) FROM bins WHERE is_active = TRUE`, &stats.ActiveBins},
		{"total vehicles", `SELECT COUNT(*) FROM vehicles`, &stats.TotalVehicles},
		{"total municipalities", `SELECT COUNT(*) FROM municipalities`, &stats.TotalMunicipality},
		{"solved scenarios", `SELECT COUNT(*) FROM scenarios WHERE status = 'solved'`, &stats.SolvedScenarios},
		{"total scenarios", `SELECT COUNT(*) FROM scenarios`, &stats.TotalScenarios},
	}

	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", q.name, err)
		}
	}
	return stats, nil
}
