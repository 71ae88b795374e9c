// Package solver は外部経路計算サービスとの連携機能を提供する。
// シナリオを計算リクエストに変換して送信し、巡回経路を受け取る。
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/wasteman/internal/model"
)

// Stop は計算リクエストに含める訪問候補地点を表す。
type Stop struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Demand    int     `json:"demand"`
}

// Request は経路計算リクエストを表す。
type Request struct {
	VehicleID      string  `json:"vehicle_id"`
	VehicleCap     int     `json:"vehicle_capacity"`
	StartLatitude  float64 `json:"start_latitude"`
	StartLongitude float64 `json:"start_longitude"`
	Stops          []Stop  `json:"stops"`
}

// SolverClient は経路計算サービスのインターフェース。
type SolverClient interface {
	// Solve は計算リクエストを送信して巡回経路を取得する。
	Solve(ctx context.Context, req *Request) (*model.SolutionData, error)
}

// Client は経路計算サービスのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// Solve は計算リクエストを送信して巡回経路を取得する。
// サービスが200以外を返した場合、レスポンスのパースに失敗した場合はエラーを返す。
func (c *Client) Solve(ctx context.Context, solveReq *Request) (*model.SolutionData, error) {
	// リクエストボディ構築
	payload, err := json.Marshal(solveReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal solve request: %w", err)
	}

	// HTTPリクエスト作成
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create solve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// HTTPリクエスト実行
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("solver request failed",
			slog.String("error", err.Error()),
			slog.String("vehicle_id", solveReq.VehicleID),
		)
		return nil, fmt.Errorf("failed to call solver: %w", err)
	}
	defer resp.Body.Close()

	// HTTPステータスチェック
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("solver returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("vehicle_id", solveReq.VehicleID),
		)
		return nil, fmt.Errorf("solver returned status %d", resp.StatusCode)
	}

	// レスポンスボディ読み取り
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read solver response: %w", err)
	}

	// JSONデコード
	var data model.SolutionData
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error("failed to parse solver response",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to parse solver response: %w", err)
	}

	c.logger.Info("solver returned solution",
		slog.String("vehicle_id", solveReq.VehicleID),
		slog.Int("route_count", len(data.Routes)),
		slog.Float64("total_distance_km", data.TotalDistanceKM),
	)
	return &data, nil
}

var _ SolverClient = (*Client)(nil)
