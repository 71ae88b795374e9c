package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// User はアカウント情報。
type User struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Username   string     `json:"username"`
	Phone      string     `json:"phone"`
	Role       string     `json:"role"`
	IsActive   bool       `json:"is_active"`
	IsArchived bool       `json:"is_archived"`
	HasImage   bool       `json:"has_image"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastLogin  *time.Time `json:"last_login_at,omitempty"`
	LastLogout *time.Time `json:"last_logout_at,omitempty"`
}

// Municipality は自治体。
type Municipality struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	HQLatitude  float64 `json:"hq_latitude"`
	HQLongitude float64 `json:"hq_longitude"`
	Description string  `json:"description"`
}

// Bin はゴミ収集コンテナ。
type Bin struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Capacity       int     `json:"capacity"`
	IsActive       bool    `json:"is_active"`
	MunicipalityID string  `json:"municipality_id"`
}

// Vehicle は収集車両。
type Vehicle struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Capacity       int     `json:"capacity"`
	StartLatitude  float64 `json:"start_latitude"`
	StartLongitude float64 `json:"start_longitude"`
}

// Landfill は埋立地。
type Landfill struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	Description     string   `json:"description"`
	MunicipalityIDs []string `json:"municipality_ids"`
}

// Scenario は収集シナリオ。
type Scenario struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	MunicipalityID  string   `json:"municipality_id"`
	CollectionDate  string   `json:"collection_date"`
	VehicleID       string   `json:"vehicle_id,omitempty"`
	StartLandfillID string   `json:"start_landfill_id,omitempty"`
	BinIDs          []string `json:"bin_ids"`
	Status          string   `json:"status"`
	CreatedBy       string   `json:"created_by"`
}

// Route はソリューション内の1台分の巡回経路。
type Route struct {
	Vehicle    string   `json:"vehicle"`
	Stops      []string `json:"stops"`
	DistanceKM float64  `json:"distance_km"`
}

// Solution はシナリオの経路計算結果。
type Solution struct {
	ID              string  `json:"id"`
	ScenarioID      string  `json:"scenario_id"`
	Routes          []Route `json:"routes"`
	TotalDistanceKM float64 `json:"total_distance_km"`
}

// ActivityEntry はユーザー操作履歴の1件。
type ActivityEntry struct {
	UserID                   string     `json:"user_id"`
	Username                 string     `json:"username"`
	Email                    string     `json:"email"`
	Role                     string     `json:"role"`
	LastLoginAt              *time.Time `json:"last_login_at"`
	LastLogoutAt             *time.Time `json:"last_logout_at"`
	LastPasswordChangeAt     *time.Time `json:"last_password_change_at"`
	LastPasswordChangeReason string     `json:"last_password_change_reason,omitempty"`
}

// DashboardStats は管理者ダッシュボードの統計情報。
type DashboardStats struct {
	ActiveUsers       int `json:"users_active"`
	ActiveBins        int `json:"bins_active"`
	TotalVehicles     int `json:"vehicles_total"`
	TotalMunicipality int `json:"municipality_total"`
	SolvedScenarios   int `json:"scenarios_solved"`
	TotalScenarios    int `json:"scenarios_total"`
}

// ListOptions はリスト取得の共通オプション。
// PageとPageSizeの両方が正の場合のみページネーションが要求される。
type ListOptions struct {
	Page     int
	PageSize int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Page > 0 && o.PageSize > 0 {
		q.Set("page", strconv.Itoa(o.Page))
		q.Set("page_size", strconv.Itoa(o.PageSize))
	}
	return q
}

// fetchList はリストエンドポイントを呼び出し、レスポンス形式を正規化する。
func fetchList[T any](ctx context.Context, c *Client, path string, query url.Values) (ListResult[T], error) {
	body, err := c.getRaw(ctx, path, query)
	if err != nil {
		return ListResult[T]{Items: []T{}}, err
	}
	return NormalizeList[T](body), nil
}

// --- ユーザー管理（管理者専用） ---

// UserInput はユーザー作成・更新の入力。
type UserInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

func (c *Client) ListUsers(ctx context.Context, opts ListOptions) (ListResult[User], error) {
	return fetchList[User](ctx, c, "/api/users", opts.query())
}

func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	if err := c.get(ctx, "/api/users/"+id, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreateUser(ctx context.Context, input UserInput) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPost, "/api/users", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, input UserInput) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPut, "/api/users/"+id, input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ArchiveUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/users/"+id+"/archive", nil, nil)
}

func (c *Client) RestoreUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/users/"+id+"/restore", nil, nil)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/users/"+id, nil, nil)
}

// --- プロフィール ---

// ProfileInput はプロフィール更新の入力。
type ProfileInput struct {
	Username string `json:"username"`
	Phone    string `json:"phone"`
	ImageURL string `json:"image_url,omitempty"`
}

func (c *Client) UpdateProfile(ctx context.Context, input ProfileInput) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPut, "/api/profile", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	body := map[string]string{
		"current_password": currentPassword,
		"new_password":     newPassword,
	}
	return c.do(ctx, http.MethodPut, "/api/profile/password", body, nil)
}

// --- アカウント有効化・パスワードリセット ---

func (c *Client) RequestActivationOTP(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/activate/request", map[string]string{"email": email}, nil)
}

func (c *Client) ConfirmActivation(ctx context.Context, email, code, password string) error {
	body := map[string]string{"email": email, "code": code, "password": password}
	return c.do(ctx, http.MethodPost, "/api/auth/activate/confirm", body, nil)
}

func (c *Client) RequestPasswordResetOTP(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/reset/request", map[string]string{"email": email}, nil)
}

func (c *Client) ConfirmPasswordReset(ctx context.Context, email, code, password string) error {
	body := map[string]string{"email": email, "code": code, "password": password}
	return c.do(ctx, http.MethodPost, "/api/auth/reset/confirm", body, nil)
}

// --- 資産 ---

// MunicipalityInput は自治体作成・更新の入力。
type MunicipalityInput struct {
	Name        string  `json:"name"`
	HQLatitude  float64 `json:"hq_latitude"`
	HQLongitude float64 `json:"hq_longitude"`
	Description string  `json:"description"`
}

func (c *Client) ListMunicipalities(ctx context.Context, opts ListOptions) (ListResult[Municipality], error) {
	return fetchList[Municipality](ctx, c, "/api/municipalities", opts.query())
}

func (c *Client) CreateMunicipality(ctx context.Context, input MunicipalityInput) (*Municipality, error) {
	var m Municipality
	if err := c.do(ctx, http.MethodPost, "/api/municipalities", input, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) UpdateMunicipality(ctx context.Context, id string, input MunicipalityInput) (*Municipality, error) {
	var m Municipality
	if err := c.do(ctx, http.MethodPut, "/api/municipalities/"+id, input, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) DeleteMunicipality(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/municipalities/"+id, nil, nil)
}

// BinInput はコンテナ作成・更新の入力。
type BinInput struct {
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Capacity       int     `json:"capacity"`
	IsActive       bool    `json:"is_active"`
	MunicipalityID string  `json:"municipality_id"`
}

func (c *Client) ListBins(ctx context.Context, opts ListOptions) (ListResult[Bin], error) {
	return fetchList[Bin](ctx, c, "/api/bins", opts.query())
}

// AvailableBins は指定自治体で収集対象に選べるコンテナの一覧を返す。
// excludeScenarioIDを指定すると、そのシナリオに割り当て済みのコンテナも候補に含める。
func (c *Client) AvailableBins(ctx context.Context, municipalityID, excludeScenarioID string) ([]Bin, error) {
	q := url.Values{}
	q.Set("municipality", municipalityID)
	if excludeScenarioID != "" {
		q.Set("exclude_scenario", excludeScenarioID)
	}

	var bins []Bin
	if err := c.get(ctx, "/api/bins/available", q, &bins); err != nil {
		return nil, err
	}
	return bins, nil
}

func (c *Client) CreateBin(ctx context.Context, input BinInput) (*Bin, error) {
	var b Bin
	if err := c.do(ctx, http.MethodPost, "/api/bins", input, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) UpdateBin(ctx context.Context, id string, input BinInput) (*Bin, error) {
	var b Bin
	if err := c.do(ctx, http.MethodPut, "/api/bins/"+id, input, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) DeleteBin(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/bins/"+id, nil, nil)
}

// VehicleInput は車両作成・更新の入力。
type VehicleInput struct {
	Name           string  `json:"name"`
	Capacity       int     `json:"capacity"`
	StartLatitude  float64 `json:"start_latitude"`
	StartLongitude float64 `json:"start_longitude"`
}

func (c *Client) ListVehicles(ctx context.Context, opts ListOptions) (ListResult[Vehicle], error) {
	return fetchList[Vehicle](ctx, c, "/api/vehicles", opts.query())
}

func (c *Client) CreateVehicle(ctx context.Context, input VehicleInput) (*Vehicle, error) {
	var v Vehicle
	if err := c.do(ctx, http.MethodPost, "/api/vehicles", input, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) UpdateVehicle(ctx context.Context, id string, input VehicleInput) (*Vehicle, error) {
	var v Vehicle
	if err := c.do(ctx, http.MethodPut, "/api/vehicles/"+id, input, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) DeleteVehicle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/vehicles/"+id, nil, nil)
}

// LandfillInput は埋立地作成・更新の入力。
type LandfillInput struct {
	Name            string   `json:"name"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	Description     string   `json:"description"`
	MunicipalityIDs []string `json:"municipality_ids"`
}

func (c *Client) ListLandfills(ctx context.Context, opts ListOptions) (ListResult[Landfill], error) {
	return fetchList[Landfill](ctx, c, "/api/landfills", opts.query())
}

func (c *Client) CreateLandfill(ctx context.Context, input LandfillInput) (*Landfill, error) {
	var l Landfill
	if err := c.do(ctx, http.MethodPost, "/api/landfills", input, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) UpdateLandfill(ctx context.Context, id string, input LandfillInput) (*Landfill, error) {
	var l Landfill
	if err := c.do(ctx, http.MethodPut, "/api/landfills/"+id, input, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) DeleteLandfill(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/landfills/"+id, nil, nil)
}

// --- 収集シナリオとソリューション ---

// ScenarioInput はシナリオ作成・更新の入力。CollectionDateはYYYY-MM-DD形式。
type ScenarioInput struct {
	Name            string   `json:"name"`
	MunicipalityID  string   `json:"municipality_id"`
	CollectionDate  string   `json:"collection_date"`
	VehicleID       string   `json:"vehicle_id,omitempty"`
	StartLandfillID string   `json:"start_landfill_id,omitempty"`
	BinIDs          []string `json:"bin_ids"`
}

// ScenarioListOptions はシナリオ一覧取得のオプション。
type ScenarioListOptions struct {
	ListOptions
	// Mine がtrueの場合、自分が作成したシナリオに絞り込む。
	Mine bool
}

func (c *Client) ListScenarios(ctx context.Context, opts ScenarioListOptions) (ListResult[Scenario], error) {
	q := opts.query()
	if opts.Mine {
		q.Set("mine", "true")
	}
	return fetchList[Scenario](ctx, c, "/api/scenarios", q)
}

func (c *Client) GetScenario(ctx context.Context, id string) (*Scenario, error) {
	var s Scenario
	if err := c.get(ctx, "/api/scenarios/"+id, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) CreateScenario(ctx context.Context, input ScenarioInput) (*Scenario, error) {
	var s Scenario
	if err := c.do(ctx, http.MethodPost, "/api/scenarios", input, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdateScenario(ctx context.Context, id string, input ScenarioInput) (*Scenario, error) {
	var s Scenario
	if err := c.do(ctx, http.MethodPut, "/api/scenarios/"+id, input, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DeleteScenario(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/scenarios/"+id, nil, nil)
}

// SolveScenario は外部ソルバーによる経路計算を実行し、ソリューションを返す。
func (c *Client) SolveScenario(ctx context.Context, id string) (*Solution, error) {
	var sol Solution
	if err := c.do(ctx, http.MethodPost, "/api/scenarios/"+id+"/solve", nil, &sol); err != nil {
		return nil, err
	}
	return &sol, nil
}

// ScenarioSolution はシナリオの最新ソリューションを返す。
func (c *Client) ScenarioSolution(ctx context.Context, scenarioID string) (*Solution, error) {
	var sol Solution
	if err := c.get(ctx, "/api/scenarios/"+scenarioID+"/solution", nil, &sol); err != nil {
		return nil, err
	}
	return &sol, nil
}

func (c *Client) ListSolutions(ctx context.Context, opts ListOptions) (ListResult[Solution], error) {
	return fetchList[Solution](ctx, c, "/api/solutions", opts.query())
}

func (c *Client) GetSolution(ctx context.Context, id string) (*Solution, error) {
	var sol Solution
	if err := c.get(ctx, "/api/solutions/"+id, nil, &sol); err != nil {
		return nil, err
	}
	return &sol, nil
}

// --- 管理者ダッシュボード ---

func (c *Client) AdminStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := c.get(ctx, "/api/admin/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) ActivityLog(ctx context.Context, opts ListOptions) (ListResult[ActivityEntry], error) {
	return fetchList[ActivityEntry](ctx, c, "/api/admin/activity", opts.query())
}
