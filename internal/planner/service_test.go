package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/repository"
	"github.com/hitoshi/wasteman/internal/solver"
)

// --- モック定義 ---

type mockScenarioRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.Scenario, error)
	createFn       func(ctx context.Context, s *model.Scenario) error
	updateFn       func(ctx context.Context, s *model.Scenario) error
	deleteByIDFn   func(ctx context.Context, id string) error
	updateStatusFn func(ctx context.Context, id string, status model.ScenarioStatus) error
}

func (m *mockScenarioRepo) FindByID(ctx context.Context, id string) (*model.Scenario, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockScenarioRepo) List(_ context.Context, _ repository.ScenarioListOptions) ([]*model.Scenario, int, error) {
	return nil, 0, nil
}

func (m *mockScenarioRepo) Create(ctx context.Context, s *model.Scenario) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockScenarioRepo) Update(ctx context.Context, s *model.Scenario) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, s)
	}
	return nil
}

func (m *mockScenarioRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockScenarioRepo) UpdateStatus(ctx context.Context, id string, status model.ScenarioStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil
}

type mockSolutionRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.Solution, error)
	findByScenarioIDFn   func(ctx context.Context, scenarioID string) (*model.Solution, error)
	createFn             func(ctx context.Context, sol *model.Solution) error
	deleteByScenarioIDFn func(ctx context.Context, scenarioID string) error
}

func (m *mockSolutionRepo) FindByID(ctx context.Context, id string) (*model.Solution, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSolutionRepo) FindByScenarioID(ctx context.Context, scenarioID string) (*model.Solution, error) {
	if m.findByScenarioIDFn != nil {
		return m.findByScenarioIDFn(ctx, scenarioID)
	}
	return nil, nil
}

func (m *mockSolutionRepo) List(_ context.Context, _ repository.ListOptions) ([]*model.Solution, int, error) {
	return nil, 0, nil
}

func (m *mockSolutionRepo) Create(ctx context.Context, sol *model.Solution) error {
	if m.createFn != nil {
		return m.createFn(ctx, sol)
	}
	return nil
}

func (m *mockSolutionRepo) DeleteByScenarioID(ctx context.Context, scenarioID string) error {
	if m.deleteByScenarioIDFn != nil {
		return m.deleteByScenarioIDFn(ctx, scenarioID)
	}
	return nil
}

type mockBinRepo struct {
	findByIDsFn     func(ctx context.Context, ids []string) ([]*model.Bin, error)
	listAvailableFn func(ctx context.Context, municipalityID, excludeScenarioID string) ([]*model.Bin, error)
}

func (m *mockBinRepo) FindByID(_ context.Context, _ string) (*model.Bin, error) { return nil, nil }
func (m *mockBinRepo) List(_ context.Context, _ repository.ListOptions) ([]*model.Bin, int, error) {
	return nil, 0, nil
}
func (m *mockBinRepo) Create(_ context.Context, _ *model.Bin) error { return nil }
func (m *mockBinRepo) Update(_ context.Context, _ *model.Bin) error { return nil }
func (m *mockBinRepo) DeleteByID(_ context.Context, _ string) error { return nil }

func (m *mockBinRepo) FindByIDs(ctx context.Context, ids []string) ([]*model.Bin, error) {
	if m.findByIDsFn != nil {
		return m.findByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockBinRepo) ListAvailable(ctx context.Context, municipalityID, excludeScenarioID string) ([]*model.Bin, error) {
	if m.listAvailableFn != nil {
		return m.listAvailableFn(ctx, municipalityID, excludeScenarioID)
	}
	return nil, nil
}

type mockVehicleRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Vehicle, error)
}

func (m *mockVehicleRepo) FindByID(ctx context.Context, id string) (*model.Vehicle, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockVehicleRepo) List(_ context.Context, _ repository.ListOptions) ([]*model.Vehicle, int, error) {
	return nil, 0, nil
}
func (m *mockVehicleRepo) Create(_ context.Context, _ *model.Vehicle) error { return nil }
func (m *mockVehicleRepo) Update(_ context.Context, _ *model.Vehicle) error { return nil }
func (m *mockVehicleRepo) DeleteByID(_ context.Context, _ string) error     { return nil }

type mockLandfillRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Landfill, error)
}

func (m *mockLandfillRepo) FindByID(ctx context.Context, id string) (*model.Landfill, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockLandfillRepo) List(_ context.Context, _ repository.ListOptions) ([]*model.Landfill, int, error) {
	return nil, 0, nil
}
func (m *mockLandfillRepo) Create(_ context.Context, _ *model.Landfill) error { return nil }
func (m *mockLandfillRepo) Update(_ context.Context, _ *model.Landfill) error { return nil }
func (m *mockLandfillRepo) DeleteByID(_ context.Context, _ string) error      { return nil }

type mockMunicipalityRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Municipality, error)
}

func (m *mockMunicipalityRepo) FindByID(ctx context.Context, id string) (*model.Municipality, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockMunicipalityRepo) List(_ context.Context, _ repository.ListOptions) ([]*model.Municipality, int, error) {
	return nil, 0, nil
}
func (m *mockMunicipalityRepo) Create(_ context.Context, _ *model.Municipality) error { return nil }
func (m *mockMunicipalityRepo) Update(_ context.Context, _ *model.Municipality) error { return nil }
func (m *mockMunicipalityRepo) DeleteByID(_ context.Context, _ string) error          { return nil }

type mockSolverClient struct {
	solveFn func(ctx context.Context, req *solver.Request) (*model.SolutionData, error)
}

func (m *mockSolverClient) Solve(ctx context.Context, req *solver.Request) (*model.SolutionData, error) {
	if m.solveFn != nil {
		return m.solveFn(ctx, req)
	}
	return &model.SolutionData{}, nil
}

type testDeps struct {
	scenarios      *mockScenarioRepo
	solutions      *mockSolutionRepo
	bins           *mockBinRepo
	vehicles       *mockVehicleRepo
	landfills      *mockLandfillRepo
	municipalities *mockMunicipalityRepo
	solver         *mockSolverClient
}

func newTestDeps() *testDeps {
	return &testDeps{
		scenarios:      &mockScenarioRepo{},
		solutions:      &mockSolutionRepo{},
		bins:           &mockBinRepo{},
		vehicles:       &mockVehicleRepo{},
		landfills:      &mockLandfillRepo{},
		municipalities: &mockMunicipalityRepo{},
		solver:         &mockSolverClient{},
	}
}

func (d *testDeps) service() *Service {
	return NewService(d.scenarios, d.solutions, d.bins, d.vehicles, d.landfills, d.municipalities, d.solver)
}

func solvableScenario() *model.Scenario {
	return &model.Scenario{
		ID:             "scenario-1",
		Name:           "北区 月曜収集",
		MunicipalityID: "muni-1",
		CollectionDate: time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		VehicleID:      "vehicle-1",
		BinIDs:         []string{"bin-1", "bin-2"},
		Status:         model.ScenarioStatusDraft,
		CreatedBy:      "user-1",
	}
}

func scenarioBins() []*model.Bin {
	return []*model.Bin{
		{ID: "bin-1", Name: "駅前A", Latitude: 35.69, Longitude: 139.70, Capacity: 10, IsActive: true, MunicipalityID: "muni-1"},
		{ID: "bin-2", Name: "公園B", Latitude: 35.70, Longitude: 139.72, Capacity: 20, IsActive: true, MunicipalityID: "muni-1"},
	}
}

// --- Solve ---

func TestSolve_Success_StoresSolutionAndMarksSolved(t *testing.T) {
	deps := newTestDeps()
	scenario := solvableScenario()
	deps.scenarios.findByIDFn = func(_ context.Context, _ string) (*model.Scenario, error) {
		return scenario, nil
	}
	deps.vehicles.findByIDFn = func(_ context.Context, _ string) (*model.Vehicle, error) {
		return &model.Vehicle{ID: "vehicle-1", Capacity: 100, StartLatitude: 35.68, StartLongitude: 139.76}, nil
	}
	deps.bins.findByIDsFn = func(_ context.Context, _ []string) ([]*model.Bin, error) {
		return scenarioBins(), nil
	}

	var statuses []model.ScenarioStatus
	deps.scenarios.updateStatusFn = func(_ context.Context, _ string, status model.ScenarioStatus) error {
		statuses = append(statuses, status)
		return nil
	}

	var solveReq *solver.Request
	deps.solver.solveFn = func(_ context.Context, req *solver.Request) (*model.SolutionData, error) {
		solveReq = req
		return &model.SolutionData{
			Routes:          []model.Route{{Vehicle: "vehicle-1", Stops: []string{"bin-2", "bin-1"}, DistanceKM: 9.1}},
			TotalDistanceKM: 9.1,
		}, nil
	}

	var deletedFor string
	deps.solutions.deleteByScenarioIDFn = func(_ context.Context, scenarioID string) error {
		deletedFor = scenarioID
		return nil
	}
	var created *model.Solution
	deps.solutions.createFn = func(_ context.Context, sol *model.Solution) error {
		created = sol
		return nil
	}

	solution, err := deps.service().Solve(context.Background(), "scenario-1")
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	if solveReq == nil {
		t.Fatal("expected solver to be called")
	}
	if solveReq.StartLatitude != 35.68 {
		t.Errorf("expected vehicle depot as start, got %f", solveReq.StartLatitude)
	}
	if len(solveReq.Stops) != 2 {
		t.Errorf("expected 2 stops, got %d", len(solveReq.Stops))
	}

	if len(statuses) != 2 || statuses[0] != model.ScenarioStatusSolving || statuses[1] != model.ScenarioStatusSolved {
		t.Errorf("expected solving then solved, got %v", statuses)
	}
	if deletedFor != "scenario-1" {
		t.Error("expected previous solution to be replaced")
	}
	if created == nil || created.ScenarioID != "scenario-1" {
		t.Error("expected solution to be stored for the scenario")
	}
	if solution.Data.TotalDistanceKM != 9.1 {
		t.Errorf("expected 9.1, got %f", solution.Data.TotalDistanceKM)
	}
}

func TestSolve_StartLandfillSet_UsesLandfillAsStart(t *testing.T) {
	deps := newTestDeps()
	scenario := solvableScenario()
	scenario.StartLandfillID = "landfill-1"
	deps.scenarios.findByIDFn = func(_ context.Context, _ string) (*model.Scenario, error) {
		return scenario, nil
	}
	deps.vehicles.findByIDFn = func(_ context.Context, _ string) (*model.Vehicle, error) {
		return &model.Vehicle{ID: "vehicle-1", Capacity: 100, StartLatitude: 35.68, StartLongitude: 139.76}, nil
	}
	deps.landfills.findByIDFn = func(_ context.Context, _ string) (*model.Landfill, error) {
		return &model.Landfill{ID: "landfill-1", Latitude: 35.50, Longitude: 139.90}, nil
	}
	deps.bins.findByIDsFn = func(_ context.Context, _ []string) ([]*model.Bin, error) {
		return scenarioBins(), nil
	}

	var solveReq *solver.Request
	deps.solver.solveFn = func(_ context.Context, req *solver.Request) (*model.SolutionData, error) {
		solveReq = req
		return &model.SolutionData{}, nil
	}

	if _, err := deps.service().Solve(context.Background(), "scenario-1"); err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if solveReq.StartLatitude != 35.50 || solveReq.StartLongitude != 139.90 {
		t.Errorf("expected landfill as start, got %f,%f", solveReq.StartLatitude, solveReq.StartLongitude)
	}
}

func TestSolve_SolverFailure_MarksFailed(t *testing.T) {
	deps := newTestDeps()
	deps.scenarios.findByIDFn = func(_ context.Context, _ string) (*model.Scenario, error) {
		return solvableScenario(), nil
	}
	deps.vehicles.findByIDFn = func(_ context.Context, _ string) (*model.Vehicle, error) {
		return &model.Vehicle{ID: "vehicle-1", Capacity: 100}, nil
	}
	deps.bins.findByIDsFn = func(_ context.Context, _ []string) ([]*model.Bin, error) {
		return scenarioBins(), nil
	}
	deps.solver.solveFn = func(_ context.Context, _ *solver.Request) (*model.SolutionData, error) {
		return nil, fmt.Errorf("solver unreachable")
	}

	var statuses []model.ScenarioStatus
	deps.scenarios.updateStatusFn = func(_ context.Context, _ string, status model.ScenarioStatus) error {
		statuses = append(statuses, status)
		return nil
	}

	_, err := deps.service().Solve(context.Background(), "scenario-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSolverFailed {
		t.Errorf("expected SOLVER_FAILED, got %v", err)
	}
	if len(statuses) != 2 || statuses[1] != model.ScenarioStatusFailed {
		t.Errorf("expected scenario to be marked failed, got %v", statuses)
	}
}

func TestSolve_NoVehicle_ReturnsNotSolvable(t *testing.T) {
	deps := newTestDeps()
	scenario := solvableScenario()
	scenario.VehicleID = ""
	deps.scenarios.findByIDFn = func(_ context.Context, _ string) (*model.Scenario, error) {
		return scenario, nil
	}

	_, err := deps.service().Solve(context.Background(), "scenario-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeScenarioNotSolvable {
		t.Errorf("expected SCENARIO_NOT_SOLVABLE, got %v", err)
	}
}

func TestSolve_NoBins_ReturnsNotSolvable(t *testing.T) {
	deps := newTestDeps()
	scenario := solvableScenario()
	scenario.BinIDs = nil
	deps.scenarios.findByIDFn = func(_ context.Context, _ string) (*model.Scenario, error) {
		return scenario, nil
	}

	_, err := deps.service().Solve(context.Background(), "scenario-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeScenarioNotSolvable {
		t.Errorf("expected SCENARIO_NOT_SOLVABLE, got %v", err)
	}
}

func TestSolve_AlreadySolving_ReturnsNotSolvable(t *testing.T) {
	deps := newTestDeps()
	scenario := solvableScenario()
	scenario.Status = model.ScenarioStatusSolving
	deps.scenarios.findByIDFn = func(_ context.Context, _ string) (*model.Scenario, error) {
		return scenario, nil
	}

	_, err := deps.service().Solve(context.Background(), "scenario-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeScenarioNotSolvable {
		t.Errorf("expected SCENARIO_NOT_SOLVABLE, got %v", err)
	}
}

func TestSolve_UnknownScenario_ReturnsNotFound(t *testing.T) {
	deps := newTestDeps()

	_, err := deps.service().Solve(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeScenarioNotFound {
		t.Errorf("expected SCENARIO_NOT_FOUND, got %v", err)
	}
}

// --- CreateScenario ---

func TestCreateScenario_Valid_StartsAsDraft(t *testing.T) {
	deps := newTestDeps()
	deps.municipalities.findByIDFn = func(_ context.Context, _ string) (*model.Municipality, error) {
		return &model.Municipality{ID: "muni-1"}, nil
	}
	deps.vehicles.findByIDFn = func(_ context.Context, _ string) (*model.Vehicle, error) {
		return &model.Vehicle{ID: "vehicle-1"}, nil
	}
	deps.bins.findByIDsFn = func(_ context.Context, _ []string) ([]*model.Bin, error) {
		return scenarioBins(), nil
	}
	deps.bins.listAvailableFn = func(_ context.Context, _, _ string) ([]*model.Bin, error) {
		return scenarioBins(), nil
	}

	var created *model.Scenario
	deps.scenarios.createFn = func(_ context.Context, s *model.Scenario) error {
		created = s
		return nil
	}

	input := ScenarioInput{
		Name:           "北区 月曜収集",
		MunicipalityID: "muni-1",
		CollectionDate: time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		VehicleID:      "vehicle-1",
		BinIDs:         []string{"bin-1", "bin-2"},
	}
	scenario, err := deps.service().CreateScenario(context.Background(), "user-1", input)
	if err != nil {
		t.Fatalf("CreateScenario failed: %v", err)
	}
	if scenario.Status != model.ScenarioStatusDraft {
		t.Errorf("expected draft status, got %s", scenario.Status)
	}
	if scenario.CreatedBy != "user-1" {
		t.Errorf("expected creator user-1, got %s", scenario.CreatedBy)
	}
	if created == nil {
		t.Error("expected scenario to be persisted")
	}
}

func TestCreateScenario_MissingFields_ReturnsFieldErrors(t *testing.T) {
	deps := newTestDeps()

	_, err := deps.service().CreateScenario(context.Background(), "user-1", ScenarioInput{})

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"name", "collection_date", "municipality"} {
		if len(verr.Fields[field]) == 0 {
			t.Errorf("expected error for field %s", field)
		}
	}
}

func TestCreateScenario_BinFromOtherMunicipality_ReturnsFieldError(t *testing.T) {
	deps := newTestDeps()
	deps.municipalities.findByIDFn = func(_ context.Context, _ string) (*model.Municipality, error) {
		return &model.Municipality{ID: "muni-1"}, nil
	}
	foreign := &model.Bin{ID: "bin-9", Name: "他区C", MunicipalityID: "muni-2", IsActive: true}
	deps.bins.findByIDsFn = func(_ context.Context, _ []string) ([]*model.Bin, error) {
		return []*model.Bin{foreign}, nil
	}
	deps.bins.listAvailableFn = func(_ context.Context, _, _ string) ([]*model.Bin, error) {
		return nil, nil
	}

	input := ScenarioInput{
		Name:           "テスト",
		MunicipalityID: "muni-1",
		CollectionDate: time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC),
		BinIDs:         []string{"bin-9"},
	}
	_, err := deps.service().CreateScenario(context.Background(), "user-1", input)

	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields["bins"]) == 0 {
		t.Error("expected bins field error")
	}
}

// --- UpdateScenario ---

func TestUpdateScenario_SolvedScenario_RevertsToDraftAndDropsSolution(t *testing.T) {
	deps := newTestDeps()
	scenario := solvableScenario()
	scenario.Status = model.ScenarioStatusSolved
	deps.scenarios.findByIDFn = func(_ context.Context, _ string) (*model.Scenario, error) {
		return scenario, nil
	}
	deps.municipalities.findByIDFn = func(_ context.Context, _ string) (*model.Municipality, error) {
		return &model.Municipality{ID: "muni-1"}, nil
	}
	deps.vehicles.findByIDFn = func(_ context.Context, _ string) (*model.Vehicle, error) {
		return &model.Vehicle{ID: "vehicle-1"}, nil
	}
	deps.bins.findByIDsFn = func(_ context.Context, _ []string) ([]*model.Bin, error) {
		return scenarioBins(), nil
	}
	deps.bins.listAvailableFn = func(_ context.Context, _, excludeScenarioID string) ([]*model.Bin, error) {
		if excludeScenarioID != "scenario-1" {
			t.Errorf("expected the edited scenario to be excluded, got %q", excludeScenarioID)
		}
		return scenarioBins(), nil
	}

	var solutionDropped bool
	deps.solutions.deleteByScenarioIDFn = func(_ context.Context, _ string) error {
		solutionDropped = true
		return nil
	}

	input := ScenarioInput{
		Name:           "北区 月曜収集 改",
		MunicipalityID: "muni-1",
		CollectionDate: scenario.CollectionDate,
		VehicleID:      "vehicle-1",
		BinIDs:         []string{"bin-1", "bin-2"},
	}
	updated, err := deps.service().UpdateScenario(context.Background(), "scenario-1", input)
	if err != nil {
		t.Fatalf("UpdateScenario failed: %v", err)
	}
	if updated.Status != model.ScenarioStatusDraft {
		t.Errorf("expected draft status after edit, got %s", updated.Status)
	}
	if !solutionDropped {
		t.Error("expected stale solution to be dropped")
	}
}

// --- ListAvailableBins ---

func TestListAvailableBins_UnknownMunicipality_ReturnsNotFound(t *testing.T) {
	deps := newTestDeps()

	_, err := deps.service().ListAvailableBins(context.Background(), "missing", "")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeMunicipalityNotFound {
		t.Errorf("expected MUNICIPALITY_NOT_FOUND, got %v", err)
	}
}
