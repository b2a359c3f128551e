package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/sproutly/internal/middleware"
	"github.com/hitoshi/sproutly/internal/model"
)

// SearchServiceInterface は植物種検索ハンドラーが必要とするサービスインターフェース。
type SearchServiceInterface interface {
	Search(ctx context.Context, query string) ([]model.Species, error)
}

// SearchHandler は植物種検索のHTTPハンドラー。
type SearchHandler struct {
	service SearchServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service SearchServiceInterface) *SearchHandler {
	return &SearchHandler{service: service}
}

// SearchSpecies は植物種を検索する。
// GET /api/search-species?q=
func (h *SearchHandler) SearchSpecies(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	results, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, r, err, model.MsgSearchFailed)
		return
	}
	if results == nil {
		results = []model.Species{}
	}

	middleware.WriteJSON(w, http.StatusOK, results)
}
