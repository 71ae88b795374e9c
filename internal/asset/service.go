// Package asset は自治体、コンテナ、車両、埋立地の管理機能を提供する。
package asset

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/repository"
	"github.com/hitoshi/wasteman/internal/security"
)

// Service はリソース管理のビジネスロジックを提供する。
// 説明文フィールドは保存前にサニタイズされる。
type Service struct {
	municipalityRepo repository.MunicipalityRepository
	binRepo          repository.BinRepository
	vehicleRepo      repository.VehicleRepository
	landfillRepo     repository.LandfillRepository
	sanitizer        security.DescriptionSanitizerService
}

// NewService はServiceを生成する。
func NewService(
	municipalityRepo repository.MunicipalityRepository,
	binRepo repository.BinRepository,
	vehicleRepo repository.VehicleRepository,
	landfillRepo repository.LandfillRepository,
	sanitizer security.DescriptionSanitizerService,
) *Service {
	return &Service{
		municipalityRepo: municipalityRepo,
		binRepo:          binRepo,
		vehicleRepo:      vehicleRepo,
		landfillRepo:     landfillRepo,
		sanitizer:        sanitizer,
	}
}

// --- 自治体 ---

// MunicipalityInput は自治体作成・更新の入力を表す。
type MunicipalityInput struct {
	Name        string
	HQLatitude  float64
	HQLongitude float64
	Description string
}

func (i MunicipalityInput) validate() *model.ValidationError {
	verr := model.NewValidationError()
	if i.Name == "" {
		verr.Add("name", "自治体名を入力してください。")
	}
	validateCoordinates(verr, "hq_latitude", "hq_longitude", i.HQLatitude, i.HQLongitude)
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// GetMunicipality は指定IDの自治体を取得する。
func (s *Service) GetMunicipality(ctx context.Context, id string) (*model.Municipality, error) {
	m, err := s.municipalityRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, model.NewMunicipalityNotFoundError(id)
	}
	return m, nil
}

// ListMunicipalities は自治体一覧と総件数を返す。
func (s *Service) ListMunicipalities(ctx context.Context, opts repository.ListOptions) ([]*model.Municipality, int, error) {
	return s.municipalityRepo.List(ctx, opts)
}

// CreateMunicipality は自治体を作成する。
func (s *Service) CreateMunicipality(ctx context.Context, input MunicipalityInput) (*model.Municipality, error) {
	if verr := input.validate(); verr != nil {
		return nil, verr
	}
	now := time.Now()
	m := &model.Municipality{
		ID:          uuid.New().String(),
		Name:        s.sanitizer.Sanitize(input.Name),
		HQLatitude:  input.HQLatitude,
		HQLongitude: input.HQLongitude,
		Description: s.sanitizer.Sanitize(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.municipalityRepo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMunicipality は自治体を更新する。
func (s *Service) UpdateMunicipality(ctx context.Context, id string, input MunicipalityInput) (*model.Municipality, error) {
	m, err := s.GetMunicipality(ctx, id)
	if err != nil {
		return nil, err
	}
	if verr := input.validate(); verr != nil {
		return nil, verr
	}

	m.Name = s.sanitizer.Sanitize(input.Name)
	m.HQLatitude = input.HQLatitude
	m.HQLongitude = input.HQLongitude
	m.Description = s.sanitizer.Sanitize(input.Description)
	m.UpdatedAt = time.Now()

	if err := s.municipalityRepo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMunicipality は自治体を削除する。
func (s *Service) DeleteMunicipality(ctx context.Context, id string) error {
	if _, err := s.GetMunicipality(ctx, id); err != nil {
		return err
	}
	return s.municipalityRepo.DeleteByID(ctx, id)
}

// --- コンテナ ---

// BinInput はコンテナ作成・更新の入力を表す。
type BinInput struct {
	Name           string
	Latitude       float64
	Longitude      float64
	Capacity       int
	IsActive       bool
	MunicipalityID string
}

func (i BinInput) validate() *model.ValidationError {
	verr := model.NewValidationError()
	if i.Name == "" {
		verr.Add("name", "コンテナ名を入力してください。")
	}
	if i.Capacity <= 0 {
		verr.Add("capacity", "容量は1以上で入力してください。")
	}
	if i.MunicipalityID == "" {
		verr.Add("municipality", "自治体を選択してください。")
	}
	validateCoordinates(verr, "latitude", "longitude", i.Latitude, i.Longitude)
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// GetBin は指定IDのコンテナを取得する。
func (s *Service) GetBin(ctx context.Context, id string) (*model.Bin, error) {
	b, err := s.binRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, model.NewBinNotFoundError(id)
	}
	return b, nil
}

// ListBins はコンテナ一覧と総件数を返す。
func (s *Service) ListBins(ctx context.Context, opts repository.ListOptions) ([]*model.Bin, int, error) {
	return s.binRepo.List(ctx, opts)
}

// CreateBin はコンテナを作成する。設置先の自治体が存在することを検証する。
func (s *Service) CreateBin(ctx context.Context, input BinInput) (*model.Bin, error) {
	if verr := input.validate(); verr != nil {
		return nil, verr
	}
	if _, err := s.GetMunicipality(ctx, input.MunicipalityID); err != nil {
		return nil, err
	}

	now := time.Now()
	b := &model.Bin{
		ID:             uuid.New().String(),
		Name:           s.sanitizer.Sanitize(input.Name),
		Latitude:       input.Latitude,
		Longitude:      input.Longitude,
		Capacity:       input.Capacity,
		IsActive:       input.IsActive,
		MunicipalityID: input.MunicipalityID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.binRepo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBin はコンテナを更新する。
func (s *Service) UpdateBin(ctx context.Context, id string, input BinInput) (*model.Bin, error) {
	b, err := s.GetBin(ctx, id)
	if err != nil {
		return nil, err
	}
	if verr := input.validate(); verr != nil {
		return nil, verr
	}
	if _, err := s.GetMunicipality(ctx, input.MunicipalityID); err != nil {
		return nil, err
	}

	b.Name = s.sanitizer.Sanitize(input.Name)
	b.Latitude = input.Latitude
	b.Longitude = input.Longitude
	b.Capacity = input.Capacity
	b.IsActive = input.IsActive
	b.MunicipalityID = input.MunicipalityID
	b.UpdatedAt = time.Now()

	if err := s.binRepo.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DeleteBin はコンテナを削除する。
func (s *Service) DeleteBin(ctx context.Context, id string) error {
	if _, err := s.GetBin(ctx, id); err != nil {
		return err
	}
	return s.binRepo.DeleteByID(ctx, id)
}

// --- 車両 ---

// VehicleInput は車両作成・更新の入力を表す。
type VehicleInput struct {
	Name           string
	Capacity       int
	StartLatitude  float64
	StartLongitude float64
}

func (i VehicleInput) validate() *model.ValidationError {
	verr := model.NewValidationError()
	if i.Name == "" {
		verr.Add("name", "車両名を入力してください。")
	}
	if i.Capacity <= 0 {
		verr.Add("capacity", "容量は1以上で入力してください。")
	}
	validateCoordinates(verr, "start_latitude", "start_longitude", i.StartLatitude, i.StartLongitude)
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// GetVehicle は指定IDの車両を取得する。
func (s *Service) GetVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	v, err := s.vehicleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, model.NewVehicleNotFoundError(id)
	}
	return v, nil
}

// ListVehicles は車両一覧と総件数を返す。
func (s *Service) ListVehicles(ctx context.Context, opts repository.ListOptions) ([]*model.Vehicle, int, error) {
	return s.vehicleRepo.List(ctx, opts)
}

// CreateVehicle は車両を作成する。
func (s *Service) CreateVehicle(ctx context.Context, input VehicleInput) (*model.Vehicle, error) {
	if verr := input.validate(); verr != nil {
		return nil, verr
	}
	now := time.Now()
	v := &model.Vehicle{
		ID:             uuid.New().String(),
		Name:           s.sanitizer.Sanitize(input.Name),
		Capacity:       input.Capacity,
		StartLatitude:  input.StartLatitude,
		StartLongitude: input.StartLongitude,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.vehicleRepo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateVehicle は車両を更新する。
func (s *Service) UpdateVehicle(ctx context.Context, id string, input VehicleInput) (*model.Vehicle, error) {
	v, err := s.GetVehicle(ctx, id)
	if err != nil {
		return nil, err
	}
	if verr := input.validate(); verr != nil {
		return nil, verr
	}

	v.Name = s.sanitizer.Sanitize(input.Name)
	v.Capacity = input.Capacity
	v.StartLatitude = input.StartLatitude
	v.StartLongitude = input.StartLongitude
	v.UpdatedAt = time.Now()

	if err := s.vehicleRepo.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// DeleteVehicle は車両を削除する。
func (s *Service) DeleteVehicle(ctx context.Context, id string) error {
	if _, err := s.GetVehicle(ctx, id); err != nil {
		return err
	}
	return s.vehicleRepo.DeleteByID(ctx, id)
}

// --- 埋立地 ---

// LandfillInput は埋立地作成・更新の入力を表す。
type LandfillInput struct {
	Name            string
	Latitude        float64
	Longitude       float64
	Description     string
	MunicipalityIDs []string
}

func (i LandfillInput) validate() *model.ValidationError {
	verr := model.NewValidationError()
	if i.Name == "" {
		verr.Add("name", "埋立地名を入力してください。")
	}
	validateCoordinates(verr, "latitude", "longitude", i.Latitude, i.Longitude)
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// GetLandfill は指定IDの埋立地を取得する。
func (s *Service) GetLandfill(ctx context.Context, id string) (*model.Landfill, error) {
	l, err := s.landfillRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, model.NewLandfillNotFoundError(id)
	}
	return l, nil
}

// ListLandfills は埋立地一覧と総件数を返す。
func (s *Service) ListLandfills(ctx context.Context, opts repository.ListOptions) ([]*model.Landfill, int, error) {
	return s.landfillRepo.List(ctx, opts)
}

// CreateLandfill は埋立地を作成する。関連自治体がすべて存在することを検証する。
func (s *Service) CreateLandfill(ctx context.Context, input LandfillInput) (*model.Landfill, error) {
	if verr := input.validate(); verr != nil {
		return nil, verr
	}
	if err := s.validateMunicipalityRefs(ctx, input.MunicipalityIDs); err != nil {
		return nil, err
	}

	now := time.Now()
	l := &model.Landfill{
		ID:              uuid.New().String(),
		Name:            s.sanitizer.Sanitize(input.Name),
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		Description:     s.sanitizer.Sanitize(input.Description),
		MunicipalityIDs: input.MunicipalityIDs,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.landfillRepo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// UpdateLandfill は埋立地を更新する。
func (s *Service) UpdateLandfill(ctx context.Context, id string, input LandfillInput) (*model.Landfill, error) {
	l, err := s.GetLandfill(ctx, id)
	if err != nil {
		return nil, err
	}
	if verr := input.validate(); verr != nil {
		return nil, verr
	}
	if err := s.validateMunicipalityRefs(ctx, input.MunicipalityIDs); err != nil {
		return nil, err
	}

	l.Name = s.sanitizer.Sanitize(input.Name)
	l.Latitude = input.Latitude
	l.Longitude = input.Longitude
	l.Description = s.sanitizer.Sanitize(input.Description)
	l.MunicipalityIDs = input.MunicipalityIDs
	l.UpdatedAt = time.Now()

	if err := s.landfillRepo.Update(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// DeleteLandfill は埋立地を削除する。
func (s *Service) DeleteLandfill(ctx context.Context, id string) error {
	if _, err := s.GetLandfill(ctx, id); err != nil {
		return err
	}
	return s.landfillRepo.DeleteByID(ctx, id)
}

func (s *Service) validateMunicipalityRefs(ctx context.Context, ids []string) error {
	verr := model.NewValidationError()
	for _, id := range ids {
		m, err := s.municipalityRepo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if m == nil {
			verr.Add("municipalities", "存在しない自治体が含まれています。")
			break
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// validateCoordinates は緯度経度の範囲を検証する。
func validateCoordinates(verr *model.ValidationError, latField, lngField string, lat, lng float64) {
	if lat < -90 || lat > 90 {
		verr.Add(latField, "緯度は-90から90の範囲で入力してください。")
	}
	if lng < -180 || lng > 180 {
		verr.Add(lngField, "経度は-180から180の範囲で入力してください。")
	}
}
