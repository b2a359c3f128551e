package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sproutly/internal/model"
)

// MessageBody はAPIレスポンスの統一フォーマット {"msg": "..."}。
// エラーと確認応答（"Added"など）の両方で使用する。
type MessageBody struct {
	Msg string `json:"msg"`
}

// WriteJSON はvをJSONとして書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteMessage は {"msg": msg} を書き込む。
func WriteMessage(w http.ResponseWriter, statusCode int, msg string) {
	WriteJSON(w, statusCode, MessageBody{Msg: msg})
}

// WriteAPIError はAPIErrorを統一フォーマットで書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteMessage(w, apiErr.Status, apiErr.Msg)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteMessage(w, http.StatusInternalServerError, model.MsgInternalError)
}
