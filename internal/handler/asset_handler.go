package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/wasteman/internal/asset"
	"github.com/hitoshi/wasteman/internal/model"
	"github.com/hitoshi/wasteman/internal/repository"
)

// AssetServiceInterface は資産管理ハンドラーが必要とするサービスインターフェース。
type AssetServiceInterface interface {
	GetMunicipality(ctx context.Context, id string) (*model.Municipality, error)
	ListMunicipalities(ctx context.Context, opts repository.ListOptions) ([]*model.Municipality, int, error)
	CreateMunicipality(ctx context.Context, input asset.MunicipalityInput) (*model.Municipality, error)
	UpdateMunicipality(ctx context.Context, id string, input asset.MunicipalityInput) (*model.Municipality, error)
	DeleteMunicipality(ctx context.Context, id string) error

	GetBin(ctx context.Context, id string) (*model.Bin, error)
	ListBins(ctx context.Context, opts repository.ListOptions) ([]*model.Bin, int, error)
	CreateBin(ctx context.Context, input asset.BinInput) (*model.Bin, error)
	UpdateBin(ctx context.Context, id string, input asset.BinInput) (*model.Bin, error)
	DeleteBin(ctx context.Context, id string) error

	GetVehicle(ctx context.Context, id string) (*model.Vehicle, error)
	ListVehicles(ctx context.Context, opts repository.ListOptions) ([]*model.Vehicle, int, error)
	CreateVehicle(ctx context.Context, input asset.VehicleInput) (*model.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, input asset.VehicleInput) (*model.Vehicle, error)
	DeleteVehicle(ctx context.Context, id string) error

	GetLandfill(ctx context.Context, id string) (*model.Landfill, error)
	ListLandfills(ctx context.Context, opts repository.ListOptions) ([]*model.Landfill, int, error)
	CreateLandfill(ctx context.Context, input asset.LandfillInput) (*model.Landfill, error)
	UpdateLandfill(ctx context.Context, id string, input asset.LandfillInput) (*model.Landfill, error)
	DeleteLandfill(ctx context.Context, id string) error
}

// AssetHandler は自治体・コンテナ・車両・埋立地のHTTPハンドラー。
type AssetHandler struct {
	service AssetServiceInterface
}

// NewAssetHandler はAssetHandlerを生成する。
func NewAssetHandler(service AssetServiceInterface) *AssetHandler {
	return &AssetHandler{service: service}
}

// --- 自治体 ---

type municipalityRequest struct {
	Name        string  `json:"name"`
	HQLatitude  float64 `json:"hq_latitude"`
	HQLongitude float64 `json:"hq_longitude"`
	Description string  `json:"description"`
}

type municipalityResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	HQLatitude  float64   `json:"hq_latitude"`
	HQLongitude float64   `json:"hq_longitude"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toMunicipalityResponse(m *model.Municipality) municipalityResponse {
	return municipalityResponse{
		ID:          m.ID,
		Name:        m.Name,
		HQLatitude:  m.HQLatitude,
		HQLongitude: m.HQLongitude,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (r municipalityRequest) toInput() asset.MunicipalityInput {
	return asset.MunicipalityInput{
		Name:        r.Name,
		HQLatitude:  r.HQLatitude,
		HQLongitude: r.HQLongitude,
		Description: r.Description,
	}
}

// ListMunicipalities は自治体一覧を返す。
// GET /api/municipalities
func (h *AssetHandler) ListMunicipalities(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)

	items, count, err := h.service.ListMunicipalities(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]municipalityResponse, 0, len(items))
	for _, m := range items {
		out = append(out, toMunicipalityResponse(m))
	}
	writeList(w, opts, out, count)
}

// GetMunicipality は自治体詳細を返す。
// GET /api/municipalities/{id}
func (h *AssetHandler) GetMunicipality(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetMunicipality(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMunicipalityResponse(m))
}

// CreateMunicipality は自治体を作成する。
// POST /api/municipalities
func (h *AssetHandler) CreateMunicipality(w http.ResponseWriter, r *http.Request) {
	var req municipalityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.service.CreateMunicipality(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMunicipalityResponse(m))
}

// UpdateMunicipality は自治体を更新する。
// PUT /api/municipalities/{id}
func (h *AssetHandler) UpdateMunicipality(w http.ResponseWriter, r *http.Request) {
	var req municipalityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.service.UpdateMunicipality(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMunicipalityResponse(m))
}

// DeleteMunicipality は自治体を削除する。
// DELETE /api/municipalities/{id}
func (h *AssetHandler) DeleteMunicipality(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMunicipality(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- コンテナ ---

type binRequest struct {
	Name           string  `json:"name"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Capacity       int     `json:"capacity"`
	IsActive       bool    `json:"is_active"`
	MunicipalityID string  `json:"municipality_id"`
}

type binResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Capacity       int       `json:"capacity"`
	IsActive       bool      `json:"is_active"`
	MunicipalityID string    `json:"municipality_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toBinResponse(b *model.Bin) binResponse {
	return binResponse{
		ID:             b.ID,
		Name:           b.Name,
		Latitude:       b.Latitude,
		Longitude:      b.Longitude,
		Capacity:       b.Capacity,
		IsActive:       b.IsActive,
		MunicipalityID: b.MunicipalityID,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func toBinResponses(bins []*model.Bin) []binResponse {
	out := make([]binResponse, 0, len(bins))
	for _, b := range bins {
		out = append(out, toBinResponse(b))
	}
	return out
}

func (r binRequest) toInput() asset.BinInput {
	return asset.BinInput{
		Name:           r.Name,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		Capacity:       r.Capacity,
		IsActive:       r.IsActive,
		MunicipalityID: r.MunicipalityID,
	}
}

// ListBins はコンテナ一覧を返す。
// GET /api/bins
func (h *AssetHandler) ListBins(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)

	bins, count, err := h.service.ListBins(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, opts, toBinResponses(bins), count)
}

// GetBin はコンテナ詳細を返す。
// GET /api/bins/{id}
func (h *AssetHandler) GetBin(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.GetBin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBinResponse(b))
}

// CreateBin はコンテナを作成する。
// POST /api/bins
func (h *AssetHandler) CreateBin(w http.ResponseWriter, r *http.Request) {
	var req binRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.CreateBin(r.Context(), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBinResponse(b))
}

// UpdateBin はコンテナを更新する。
// PUT /api/bins/{id}
func (h *AssetHandler) UpdateBin(w http.ResponseWriter, r *http.Request) {
	var req binRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.UpdateBin(r.Context(), chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBinResponse(b))
}

// DeleteBin はコンテナを削除する。
// DELETE /api/bins/{id}
func (h *AssetHandler) DeleteBin(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteBin(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- 車両 ---

type vehicleRequest struct {
	Name           string  `json:"name"`
	Capacity       int     `json:"capacity"`
	StartLatitude  float64 `json:"start_latitude"`
	StartLongitude float64 `json:"start_longitude"`
}

type vehicleResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Capacity       int       `json:"capacity"`
	StartLatitude  float64   `json:"start_latitude"`
	StartLongitude float64   `json:"start_longitude"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toVehicleResponse(v *model.Vehicle) vehicleResponse {
	return vehicleResponse{
		ID:             v.ID,
		Name:           v.Name,
		Capacity:       v.Capacity,
		StartLatitude:  v.StartLatitude,
		StartLongitude: v.StartLongitude,
		CreatedAt:      v.CreatedAt,
		UpdatedAt:      v.UpdatedAt,
	}
}

// ListVehicles は車両一覧を返す。
// GET /api/vehicles
func (h *AssetHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)

	vehicles, count, err := h.service.ListVehicles(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]vehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, toVehicleResponse(v))
	}
	writeList(w, opts, out, count)
}

// GetVehicle は車両詳細を返す。
// GET /api/vehicles/{id}
func (h *AssetHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.GetVehicle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleResponse(v))
}

// CreateVehicle は車両を作成する。
// POST /api/vehicles
func (h *AssetHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.service.CreateVehicle(r.Context(), asset.VehicleInput{
		Name:           req.Name,
		Capacity:       req.Capacity,
		StartLatitude:  req.StartLatitude,
		StartLongitude: req.StartLongitude,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVehicleResponse(v))
}

// UpdateVehicle は車両を更新する。
// PUT /api/vehicles/{id}
func (h *AssetHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v, err := h.service.UpdateVehicle(r.Context(), chi.URLParam(r, "id"), asset.VehicleInput{
		Name:           req.Name,
		Capacity:       req.Capacity,
		StartLatitude:  req.StartLatitude,
		StartLongitude: req.StartLongitude,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVehicleResponse(v))
}

// DeleteVehicle は車両を削除する。
// DELETE /api/vehicles/{id}
func (h *AssetHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteVehicle(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- 埋立地 ---

type landfillRequest struct {
	Name            string   `json:"name"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	Description     string   `json:"description"`
	MunicipalityIDs []string `json:"municipality_ids"`
}

type landfillResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Description     string    `json:"description"`
	MunicipalityIDs []string  `json:"municipality_ids"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toLandfillResponse(l *model.Landfill) landfillResponse {
	ids := l.MunicipalityIDs
	if ids == nil {
		ids = []string{}
	}
	return landfillResponse{
		ID:              l.ID,
		Name:            l.Name,
		Latitude:        l.Latitude,
		Longitude:       l.Longitude,
		Description:     l.Description,
		MunicipalityIDs: ids,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

// ListLandfills は埋立地一覧を返す。
// GET /api/landfills
func (h *AssetHandler) ListLandfills(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)

	landfills, count, err := h.service.ListLandfills(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]landfillResponse, 0, len(landfills))
	for _, l := range landfills {
		out = append(out, toLandfillResponse(l))
	}
	writeList(w, opts, out, count)
}

// GetLandfill は埋立地詳細を返す。
// GET /api/landfills/{id}
func (h *AssetHandler) GetLandfill(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.GetLandfill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLandfillResponse(l))
}

// CreateLandfill は埋立地を作成する。
// POST /api/landfills
func (h *AssetHandler) CreateLandfill(w http.ResponseWriter, r *http.Request) {
	var req landfillRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	l, err := h.service.CreateLandfill(r.Context(), asset.LandfillInput{
		Name:            req.Name,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Description:     req.Description,
		MunicipalityIDs: req.MunicipalityIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLandfillResponse(l))
}

// UpdateLandfill は埋立地を更新する。
// PUT /api/landfills/{id}
func (h *AssetHandler) UpdateLandfill(w http.ResponseWriter, r *http.Request) {
	var req landfillRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	l, err := h.service.UpdateLandfill(r.Context(), chi.URLParam(r, "id"), asset.LandfillInput{
		Name:            req.Name,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		Description:     req.Description,
		MunicipalityIDs: req.MunicipalityIDs,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLandfillResponse(l))
}

// DeleteLandfill は埋立地を削除する。
// DELETE /api/landfills/{id}
func (h *AssetHandler) DeleteLandfill(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteLandfill(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
