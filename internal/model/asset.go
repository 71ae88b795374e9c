// Package model はドメインモデルを定義する。
package model

import "time"

// Municipality は自治体（収集区域）を表す。
type Municipality struct {
	ID          string
	Name        string
	HQLatitude  float64
	HQLongitude float64
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bin はゴミ収集コンテナを表す。
// MunicipalityIDは設置先の自治体。IsActiveがfalseのコンテナは
// シナリオの収集対象候補に含まれない。
type Bin struct {
	ID             string
	Name           string
	Latitude       float64
	Longitude      float64
	Capacity       int
	IsActive       bool
	MunicipalityID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Vehicle は収集車両を表す。
// 出発地点（車庫）の座標を保持する。
type Vehicle struct {
	ID             string
	Name           string
	Capacity       int
	StartLatitude  float64
	StartLongitude float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Landfill は埋立地を表す。
// 複数の自治体から利用されるため、多対多の関連を持つ。
type Landfill struct {
	ID              string
	Name            string
	Latitude        float64
	Longitude       float64
	Description     string
	MunicipalityIDs []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
