// Package planner は収集シナリオのビジネスロジックを提供する。
// シナリオのCRUD、割り当て検証、外部ソルバーによる経路計算を含む。
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/repository"
	"github.com/hitoshi/wasteman/internal/solver"
)

// Service はシナリオとソリューションに関するビジネスロジックを提供する。
type Service struct {
	scenarioRepo     repository.ScenarioRepository
	solutionRepo     repository.SolutionRepository
	binRepo          repository.BinRepository
	vehicleRepo      repository.VehicleRepository
	landfillRepo     repository.LandfillRepository
	municipalityRepo repository.MunicipalityRepository
	solverClient     solver.SolverClient
}

// NewService はServiceを生成する。
func NewService(
	scenarioRepo repository.ScenarioRepository,
	solutionRepo repository.SolutionRepository,
	binRepo repository.BinRepository,
	vehicleRepo repository.VehicleRepository,
	landfillRepo repository.LandfillRepository,
	municipalityRepo repository.MunicipalityRepository,
	solverClient solver.SolverClient,
) *Service {
	return &Service{
		scenarioRepo:     scenarioRepo,
		solutionRepo:     solutionRepo,
		binRepo:          binRepo,
		vehicleRepo:      vehicleRepo,
		landfillRepo:     landfillRepo,
		municipalityRepo: municipalityRepo,
		solverClient:     solverClient,
	}
}

// ScenarioInput はシナリオ作成・更新の入力を表す。
type ScenarioInput struct {
	Name            string
	MunicipalityID  string
	CollectionDate  time.Time
	VehicleID       string
	StartLandfillID string
	BinIDs          []string
}

// GetScenario は指定IDのシナリオを取得する。
func (s *Service) GetScenario(ctx context.Context, id string) (*model.Scenario, error) {
	scenario, err := s.scenarioRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if scenario == nil {
		return nil, model.NewScenarioNotFoundError(id)
	}
	return scenario, nil
}

// ListScenarios はシナリオ一覧と総件数を返す。
func (s *Service) ListScenarios(ctx context.Context, opts repository.ScenarioListOptions) ([]*model.Scenario, int, error) {
	return s.scenarioRepo.List(ctx, opts)
}

// CreateScenario は入力を検証してシナリオを作成する。状態はdraftで開始する。
func (s *Service) CreateScenario(ctx context.Context, createdBy string, input ScenarioInput) (*model.Scenario, error) {
	if err := s.validateInput(ctx, input, ""); err != nil {
		return nil, err
	}

	now := time.Now()
	scenario := &model.Scenario{
		ID:              uuid.New().String(),
		Name:            input.Name,
		MunicipalityID:  input.MunicipalityID,
		CollectionDate:  input.CollectionDate,
		VehicleID:       input.VehicleID,
		StartLandfillID: input.StartLandfillID,
		BinIDs:          input.BinIDs,
		Status:          model.ScenarioStatusDraft,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.scenarioRepo.Create(ctx, scenario); err != nil {
		return nil, err
	}

	slog.Info("scenario created",
		slog.String("scenario_id", scenario.ID),
		slog.String("created_by", createdBy),
	)
	return scenario, nil
}

// UpdateScenario は入力を検証してシナリオを更新する。
// 計算済み（solved）のシナリオを編集すると既存ソリューションは破棄され、
// 状態はdraftに戻る。
func (s *Service) UpdateScenario(ctx context.Context, id string, input ScenarioInput) (*model.Scenario, error) {
	scenario, err := s.GetScenario(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.validateInput(ctx, input, id); err != nil {
		return nil, err
	}

	scenario.Name = input.Name
	scenario.MunicipalityID = input.MunicipalityID
	scenario.CollectionDate = input.CollectionDate
	scenario.VehicleID = input.VehicleID
	scenario.StartLandfillID = input.StartLandfillID
	scenario.BinIDs = input.BinIDs
	scenario.UpdatedAt = time.Now()

	if scenario.Status == model.ScenarioStatusSolved {
		if err := s.solutionRepo.DeleteByScenarioID(ctx, id); err != nil {
			return nil, err
		}
		scenario.Status = model.ScenarioStatusDraft
	}

	if err := s.scenarioRepo.Update(ctx, scenario); err != nil {
		return nil, err
	}
	return scenario, nil
}

// DeleteScenario はシナリオを削除する。ソリューションも同時に削除される。
func (s *Service) DeleteScenario(ctx context.Context, id string) error {
	scenario, err := s.scenarioRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if scenario == nil {
		return model.NewScenarioNotFoundError(id)
	}
	return s.scenarioRepo.DeleteByID(ctx, id)
}

// Solve はシナリオの経路計算を実行する。
// 計算中は状態をsolvingにし、成功時はソリューションを置き換えてsolved、
// 失敗時はfailedにする。failedのシナリオは再実行できる。
func (s *Service) Solve(ctx context.Context, id string) (*model.Solution, error) {
	scenario, err := s.GetScenario(ctx, id)
	if err != nil {
		return nil, err
	}

	// 1. 実行の前提条件チェック
	if scenario.Status == model.ScenarioStatusSolving {
		return nil, model.NewScenarioNotSolvableError("計算が既に実行中です")
	}
	if scenario.VehicleID == "" {
		return nil, model.NewScenarioNotSolvableError("車両が設定されていません")
	}
	if len(scenario.BinIDs) == 0 {
		return nil, model.NewScenarioNotSolvableError("収集対象コンテナが設定されていません")
	}

	vehicle, err := s.vehicleRepo.FindByID(ctx, scenario.VehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, model.NewScenarioNotSolvableError("設定された車両が存在しません")
	}

	bins, err := s.binRepo.FindByIDs(ctx, scenario.BinIDs)
	if err != nil {
		return nil, err
	}
	if len(bins) != len(scenario.BinIDs) {
		return nil, model.NewScenarioNotSolvableError("存在しないコンテナが含まれています")
	}

	// 2. 出発地点を決定。埋立地指定があればそこから、なければ車庫から
	startLat, startLng := vehicle.StartLatitude, vehicle.StartLongitude
	if scenario.StartLandfillID != "" {
		landfill, err := s.landfillRepo.FindByID(ctx, scenario.StartLandfillID)
		if err != nil {
			return nil, err
		}
		if landfill == nil {
			return nil, model.NewScenarioNotSolvableError("設定された出発埋立地が存在しません")
		}
		startLat, startLng = landfill.Latitude, landfill.Longitude
	}

	// 3. 計算リクエストを構築
	stops := make([]solver.Stop, 0, len(bins))
	for _, b := range bins {
		stops = append(stops, solver.Stop{
			ID:        b.ID,
			Latitude:  b.Latitude,
			Longitude: b.Longitude,
			Demand:    b.Capacity,
		})
	}
	req := &solver.Request{
		VehicleID:      vehicle.ID,
		VehicleCap:     vehicle.Capacity,
		StartLatitude:  startLat,
		StartLongitude: startLng,
		Stops:          stops,
	}

	// 4. 計算中に遷移してからソルバーを呼ぶ
	if err := s.scenarioRepo.UpdateStatus(ctx, id, model.ScenarioStatusSolving); err != nil {
		return nil, err
	}

	data, err := s.solverClient.Solve(ctx, req)
	if err != nil {
		if stErr := s.scenarioRepo.UpdateStatus(ctx, id, model.ScenarioStatusFailed); stErr != nil {
			slog.Error("failed to mark scenario as failed",
				slog.String("scenario_id", id),
				slog.String("error", stErr.Error()),
			)
		}
		return nil, model.NewSolverFailedError(err.Error())
	}

	// 5. 旧ソリューションを置き換える
	if err := s.solutionRepo.DeleteByScenarioID(ctx, id); err != nil {
		return nil, err
	}
	solution := &model.Solution{
		ID:         uuid.New().String(),
		ScenarioID: id,
		Data:       *data,
		CreatedAt:  time.Now(),
	}
	if err := s.solutionRepo.Create(ctx, solution); err != nil {
		return nil, err
	}
	if err := s.scenarioRepo.UpdateStatus(ctx, id, model.ScenarioStatusSolved); err != nil {
		return nil, err
	}

	slog.Info("scenario solved",
		slog.String("scenario_id", id),
		slog.Float64("total_distance_km", data.TotalDistanceKM),
	)
	return solution, nil
}

// GetSolution は指定IDのソリューションを取得する。
func (s *Service) GetSolution(ctx context.Context, id string) (*model.Solution, error) {
	solution, err := s.solutionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if solution == nil {
		return nil, model.NewSolutionNotFoundError(id)
	}
	return solution, nil
}

// GetSolutionByScenario は指定シナリオの最新ソリューションを取得する。
func (s *Service) GetSolutionByScenario(ctx context.Context, scenarioID string) (*model.Solution, error) {
	solution, err := s.solutionRepo.FindByScenarioID(ctx, scenarioID)
	if err != nil {
		return nil, err
	}
	if solution == nil {
		return nil, model.NewSolutionNotFoundError(scenarioID)
	}
	return solution, nil
}

// ListSolutions はソリューション一覧と総件数を返す。
func (s *Service) ListSolutions(ctx context.Context, opts repository.ListOptions) ([]*model.Solution, int, error) {
	return s.solutionRepo.List(ctx, opts)
}

// ListAvailableBins はシナリオに割り当て可能なコンテナを返す。
func (s *Service) ListAvailableBins(ctx context.Context, municipalityID, excludeScenarioID string) ([]*model.Bin, error) {
	municipality, err := s.municipalityRepo.FindByID(ctx, municipalityID)
	if err != nil {
		return nil, err
	}
	if municipality == nil {
		return nil, model.NewMunicipalityNotFoundError(municipalityID)
	}
	return s.binRepo.ListAvailable(ctx, municipalityID, excludeScenarioID)
}

// validateInput はシナリオ入力の参照整合性とフィールドを検証する。
func (s *Service) validateInput(ctx context.Context, input ScenarioInput, excludeScenarioID string) error {
	verr := model.NewValidationError()

	if input.Name == "" {
		verr.Add("name", "シナリオ名を入力してください。")
	}
	if input.CollectionDate.IsZero() {
		verr.Add("collection_date", "収集日を指定してください。")
	}
	if input.MunicipalityID == "" {
		verr.Add("municipality", "自治体を選択してください。")
	}
	if verr.HasErrors() {
		return verr
	}

	municipality, err := s.municipalityRepo.FindByID(ctx, input.MunicipalityID)
	if err != nil {
		return err
	}
	if municipality == nil {
		verr.Add("municipality", "指定された自治体が存在しません。")
	}

	if input.VehicleID != "" {
		vehicle, err := s.vehicleRepo.FindByID(ctx, input.VehicleID)
		if err != nil {
			return err
		}
		if vehicle == nil {
			verr.Add("vehicle", "指定された車両が存在しません。")
		}
	}

	if input.StartLandfillID != "" {
		landfill, err := s.landfillRepo.FindByID(ctx, input.StartLandfillID)
		if err != nil {
			return err
		}
		if landfill == nil {
			verr.Add("start_landfill", "指定された埋立地が存在しません。")
		}
	}

	if len(input.BinIDs) > 0 {
		if err := s.validateBins(ctx, input, excludeScenarioID, verr); err != nil {
			return err
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// validateBins は割り当てコンテナが自治体に属し、かつ割り当て可能であることを検証する。
func (s *Service) validateBins(ctx context.Context, input ScenarioInput, excludeScenarioID string, verr *model.ValidationError) error {
	bins, err := s.binRepo.FindByIDs(ctx, input.BinIDs)
	if err != nil {
		return err
	}
	if len(bins) != len(input.BinIDs) {
		verr.Add("bins", "存在しないコンテナが含まれています。")
		return nil
	}

	available, err := s.binRepo.ListAvailable(ctx, input.MunicipalityID, excludeScenarioID)
	if err != nil {
		return err
	}
	availableSet := make(map[string]bool, len(available))
	for _, b := range available {
		availableSet[b.ID] = true
	}

	for _, b := range bins {
		if b.MunicipalityID != input.MunicipalityID {
			verr.Add("bins", fmt.Sprintf("コンテナ %s は選択した自治体に属していません。", b.Name))
			continue
		}
		if !availableSet[b.ID] {
			verr.Add("bins", fmt.Sprintf("コンテナ %s は割り当てできません。", b.Name))
		}
	}
	return nil
}
