package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/sproutly/internal/middleware"
	"github.com/hitoshi/sproutly/internal/model"
)

// WeatherServiceInterface は天気ハンドラーが必要とするサービスインターフェース。
type WeatherServiceInterface interface {
	Forecast(ctx context.Context, lat, lon string) (*model.WeatherReport, error)
}

// WeatherHandler は天気予報のHTTPハンドラー。
type WeatherHandler struct {
	service WeatherServiceInterface
}

// NewWeatherHandler はWeatherHandlerを生成する。
func NewWeatherHandler(service WeatherServiceInterface) *WeatherHandler {
	return &WeatherHandler{service: service}
}

// GetWeather は現在の天気と最大7日分の日別予報を返す。
// GET /api/weather?lat=&lon=
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}

	lat := strings.TrimSpace(r.URL.Query().Get("lat"))
	lon := strings.TrimSpace(r.URL.Query().Get("lon"))
	if lat == "" || lon == "" {
		middleware.WriteAPIError(w, model.NewValidationError(model.MsgLatLonRequired))
		return
	}

	report, err := h.service.Forecast(r.Context(), lat, lon)
	if err != nil {
		handleServiceError(w, r, err, model.MsgWeatherFailed)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}
