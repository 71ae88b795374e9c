package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/wasteman/internal/metrics"
	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/planner"
	"github.com/hitoshi/wasteman/internal/repository"
)

// collectionDateFormat は収集日のAPI上の表現形式。
const collectionDateFormat = "2006-01-02"

// PlannerServiceInterface はシナリオハンドラーが必要とするサービスインターフェース。
type PlannerServiceInterface interface {
	GetScenario(ctx context.Context, id string) (*model.Scenario, error)
	ListScenarios(ctx context.Context, opts repository.ScenarioListOptions) ([]*model.Scenario, int, error)
	CreateScenario(ctx context.Context, createdBy string, input planner.ScenarioInput) (*model.Scenario, error)
	UpdateScenario(ctx context.Context, id string, input planner.ScenarioInput) (*model.Scenario, error)
	DeleteScenario(ctx context.Context, id string) error
	Solve(ctx context.Context, id string) (*model.Solution, error)
	GetSolution(ctx context.Context, id string) (*model.Solution, error)
	GetSolutionByScenario(ctx context.Context, scenarioID string) (*model.Solution, error)
	ListSolutions(ctx context.Context, opts repository.ListOptions) ([]*model.Solution, int, error)
	ListAvailableBins(ctx context.Context, municipalityID, excludeScenarioID string) ([]*model.Bin, error)
}

// ScenarioHandler は収集シナリオとソリューションのHTTPハンドラー。
type ScenarioHandler struct {
	service PlannerServiceInterface
	metrics metrics.MetricsCollector
}

// NewScenarioHandler はScenarioHandlerを生成する。metricsはnil可。
func NewScenarioHandler(service PlannerServiceInterface, collector metrics.MetricsCollector) *ScenarioHandler {
	return &ScenarioHandler{
		service: service,
		metrics: collector,
	}
}

// scenarioRequest はシナリオ作成・更新リクエストのボディ。
// collection_dateはYYYY-MM-DD形式。
type scenarioRequest struct {
	Name            string   `json:"name"`
	MunicipalityID  string   `json:"municipality_id"`
	CollectionDate  string   `json:"collection_date"`
	VehicleID       string   `json:"vehicle_id"`
	StartLandfillID string   `json:"start_landfill_id"`
	BinIDs          []string `json:"bin_ids"`
}

// scenarioResponse はシナリオ情報のAPIレスポンス。
type scenarioResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	MunicipalityID  string    `json:"municipality_id"`
	CollectionDate  string    `json:"collection_date"`
	VehicleID       string    `json:"vehicle_id,omitempty"`
	StartLandfillID string    `json:"start_landfill_id,omitempty"`
	BinIDs          []string  `json:"bin_ids"`
	Status          string    `json:"status"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// solutionResponse はソリューション情報のAPIレスポンス。
type solutionResponse struct {
	ID              string        `json:"id"`
	ScenarioID      string        `json:"scenario_id"`
	Routes          []model.Route `json:"routes"`
	TotalDistanceKM float64       `json:"total_distance_km"`
	CreatedAt       time.Time     `json:"created_at"`
}

func toScenarioResponse(s *model.Scenario) scenarioResponse {
	binIDs := s.BinIDs
	if binIDs == nil {
		binIDs = []string{}
	}
	return scenarioResponse{
		ID:              s.ID,
		Name:            s.Name,
		MunicipalityID:  s.MunicipalityID,
		CollectionDate:  s.CollectionDate.Format(collectionDateFormat),
		VehicleID:       s.VehicleID,
		StartLandfillID: s.StartLandfillID,
		BinIDs:          binIDs,
		Status:          string(s.Status),
		CreatedBy:       s.CreatedBy,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func toSolutionResponse(sol *model.Solution) solutionResponse {
	routes := sol.Data.Routes
	if routes == nil {
		routes = []model.Route{}
	}
	return solutionResponse{
		ID:              sol.ID,
		ScenarioID:      sol.ScenarioID,
		Routes:          routes,
		TotalDistanceKM: sol.Data.TotalDistanceKM,
		CreatedAt:       sol.CreatedAt,
	}
}

// toInput はリクエストボディをサービス入力に変換する。
// collection_dateの形式エラーはフィールド単位のバリデーションエラーとして返す。
func (r scenarioRequest) toInput() (planner.ScenarioInput, *model.ValidationError) {
	var date time.Time
	if r.CollectionDate != "" {
		parsed, err := time.Parse(collectionDateFormat, r.CollectionDate)
		if err != nil {
			verr := model.NewValidationError()
			verr.Add("collection_date", "収集日はYYYY-MM-DD形式で入力してください。")
			return planner.ScenarioInput{}, verr
		}
		date = parsed
	}

	return planner.ScenarioInput{
		Name:            r.Name,
		MunicipalityID:  r.MunicipalityID,
		CollectionDate:  date,
		VehicleID:       r.VehicleID,
		StartLandfillID: r.StartLandfillID,
		BinIDs:          r.BinIDs,
	}, nil
}

// ListScenarios はシナリオ一覧を返す。
// mine=trueの場合は自分が作成したシナリオに絞り込む。
// GET /api/scenarios?page=&page_size=&mine=
func (h *ScenarioHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	opts := repository.ScenarioListOptions{
		ListOptions: listOptionsFromQuery(r),
	}
	if r.URL.Query().Get("mine") == "true" {
		userID := requireUserID(w, r)
		if userID == "" {
			return
		}
		opts.CreatedBy = userID
	}

	scenarios, count, err := h.service.ListScenarios(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]scenarioResponse, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, toScenarioResponse(s))
	}
	writeList(w, opts.ListOptions, out, count)
}

// GetScenario はシナリオ詳細を返す。
// GET /api/scenarios/{id}
func (h *ScenarioHandler) GetScenario(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScenarioResponse(s))
}

// CreateScenario はシナリオを作成する。作成直後はdraft状態。
// POST /api/scenarios
func (h *ScenarioHandler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	userID := requireUserID(w, r)
	if userID == "" {
		return
	}

	var req scenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, verr := req.toInput()
	if verr != nil {
		handleServiceError(w, verr)
		return
	}

	s, err := h.service.CreateScenario(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScenarioResponse(s))
}

// UpdateScenario はシナリオを更新する。
// solved状態のシナリオを編集すると既存ソリューションは破棄されdraftに戻る。
// PUT /api/scenarios/{id}
func (h *ScenarioHandler) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	var req scenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, verr := req.toInput()
	if verr != nil {
		handleServiceError(w, verr)
		return
	}

	s, err := h.service.UpdateScenario(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScenarioResponse(s))
}

// DeleteScenario はシナリオを削除する。
// DELETE /api/scenarios/{id}
func (h *ScenarioHandler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteScenario(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Solve は外部ソルバーで経路計算を実行する。
// 計算中のシナリオに対しては409を返す。
// POST /api/scenarios/{id}/solve
func (h *ScenarioHandler) Solve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	sol, err := h.service.Solve(r.Context(), chi.URLParam(r, "id"))

	if h.metrics != nil {
		h.metrics.RecordSolve(err == nil)
		h.metrics.RecordSolveLatency(time.Since(start))
	}

	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSolutionResponse(sol))
}

// GetScenarioSolution はシナリオの最新ソリューションを返す。
// GET /api/scenarios/{id}/solution
func (h *ScenarioHandler) GetScenarioSolution(w http.ResponseWriter, r *http.Request) {
	sol, err := h.service.GetSolutionByScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSolutionResponse(sol))
}

// ListSolutions はソリューション一覧を返す。
// GET /api/solutions
func (h *ScenarioHandler) ListSolutions(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)

	solutions, count, err := h.service.ListSolutions(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]solutionResponse, 0, len(solutions))
	for _, sol := range solutions {
		out = append(out, toSolutionResponse(sol))
	}
	writeList(w, opts, out, count)
}

// GetSolution はソリューション詳細を返す。
// GET /api/solutions/{id}
func (h *ScenarioHandler) GetSolution(w http.ResponseWriter, r *http.Request) {
	sol, err := h.service.GetSolution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSolutionResponse(sol))
}

// ListAvailableBins は指定自治体で収集対象に選べるコンテナの一覧を返す。
// exclude_scenarioを指定すると、そのシナリオに割り当て済みのコンテナも候補に含める
// （シナリオ編集時に自分のコンテナが選択不能にならないようにするため）。
// GET /api/bins/available?municipality=&exclude_scenario=
func (h *ScenarioHandler) ListAvailableBins(w http.ResponseWriter, r *http.Request) {
	municipalityID := r.URL.Query().Get("municipality")
	if municipalityID == "" {
		verr := model.NewValidationError()
		verr.Add("municipality", "自治体IDを指定してください。")
		handleServiceError(w, verr)
		return
	}

	bins, err := h.service.ListAvailableBins(r.Context(), municipalityID, r.URL.Query().Get("exclude_scenario"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBinResponses(bins))
}
