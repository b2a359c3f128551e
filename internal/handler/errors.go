package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sproutly/internal/middleware"
	"github.com/hitoshi/sproutly/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの読み取り上限。
const maxRequestBodySize = 1 << 20

// handleServiceError はサービス層から返されたエラーをレスポンスに変換する。
// APIErrorはそのまま返し、それ以外はfallbackのメッセージで500を返す。
// 詳細はサーバーログのみに記録する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	slog.ErrorContext(r.Context(), "request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteMessage(w, http.StatusInternalServerError, fallback)
}

// requireUserID はコンテキストから検証済みユーザーIDを取り出す。
// 認証ミドルウェアの外で呼ばれた場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

// decodeJSONBody はリクエストボディをvにデコードする。
// 空ボディは空オブジェクトとして扱い、必須項目の検証はサービス層に任せる。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		slog.DebugContext(r.Context(), "invalid request body",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteAPIError(w, model.NewValidationError(model.MsgInvalidBody))
		return false
	}
	return true
}
