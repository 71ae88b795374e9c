package model

import "time"

// ScenarioStatus はシナリオの状態を表す。
type ScenarioStatus string

const (
	// ScenarioStatusDraft は作成済みで経路計算が未実行の状態。
	ScenarioStatusDraft ScenarioStatus = "draft"
	// ScenarioStatusSolving は外部ソルバーで経路計算中の状態。
	ScenarioStatusSolving ScenarioStatus = "solving"
	// ScenarioStatusSolved は経路計算が完了しソリューションが存在する状態。
	ScenarioStatusSolved ScenarioStatus = "solved"
	// ScenarioStatusFailed は経路計算が失敗した状態。再実行可能。
	ScenarioStatusFailed ScenarioStatus = "failed"
)

// Scenario は収集計画シナリオを表す。
// 自治体・収集日・車両・収集対象コンテナの組み合わせを保持し、
// 外部ソルバーによる経路計算の入力となる。
type Scenario struct {
	ID              string
	Name            string
	MunicipalityID  string
	CollectionDate  time.Time
	VehicleID       string
	StartLandfillID string // 空文字列の場合は車両の車庫から出発
	BinIDs          []string
	Status          ScenarioStatus
	CreatedBy       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Route はソリューション内の1台分の巡回経路を表す。
// Stopsは訪問順のコンテナIDリスト。
type Route struct {
	Vehicle    string   `json:"vehicle"`
	Stops      []string `json:"stops"`
	DistanceKM float64  `json:"distance_km"`
}

// SolutionData はソルバーが返す経路計算結果を表す。
type SolutionData struct {
	Routes          []Route `json:"routes"`
	TotalDistanceKM float64 `json:"total_distance_km"`
}

// Solution はシナリオに対する経路計算結果を表す。
// Dataはソルバーのレスポンスをそのまま保持する。
type Solution struct {
	ID         string
	ScenarioID string
	Data       SolutionData
	CreatedAt  time.Time
}
