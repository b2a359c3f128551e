package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sproutly/internal/garden"
	"github.com/hitoshi/sproutly/internal/middleware"
	"github.com/hitoshi/sproutly/internal/model"
)

// PlantServiceInterface は植物ライブラリハンドラーが必要とするサービスインターフェース。
type PlantServiceInterface interface {
	ListPlants(ctx context.Context, userID string) ([]json.RawMessage, error)
	AddPlant(ctx context.Context, userID string, req garden.AddPlantRequest) error
	RemovePlant(ctx context.Context, userID, plantID string) error
}

// PlantHandler は植物ライブラリのHTTPハンドラー。
type PlantHandler struct {
	service PlantServiceInterface
}

// NewPlantHandler はPlantHandlerを生成する。
func NewPlantHandler(service PlantServiceInterface) *PlantHandler {
	return &PlantHandler{service: service}
}

// ListPlants はユーザーが登録した植物の一覧を返す。
// GET /api/user-plants
func (h *PlantHandler) ListPlants(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	plants, err := h.service.ListPlants(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err, model.MsgDatabaseError)
		return
	}
	if plants == nil {
		plants = []json.RawMessage{}
	}

	middleware.WriteJSON(w, http.StatusOK, plants)
}

// AddPlant は植物をライブラリに登録する。
// POST /api/user-plants
func (h *PlantHandler) AddPlant(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req garden.AddPlantRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.service.AddPlant(r.Context(), userID, req); err != nil {
		handleServiceError(w, r, err, model.MsgDatabaseError)
		return
	}

	middleware.WriteMessage(w, http.StatusOK, model.MsgPlantAdded)
}

// RemovePlant は植物をライブラリから削除する。存在しない場合も成功を返す。
// DELETE /api/user-plants/{plantId}
func (h *PlantHandler) RemovePlant(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemovePlant(r.Context(), userID, chi.URLParam(r, "plantId")); err != nil {
		handleServiceError(w, r, err, model.MsgDatabaseError)
		return
	}

	middleware.WriteMessage(w, http.StatusOK, model.MsgPlantRemoved)
}
