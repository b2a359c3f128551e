// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError はクライアントへ返す統一エラーを表す。
// レスポンスボディは {"msg": "..."} の形式で、詳細はサーバーログのみに記録する。
type APIError struct {
	Status int    // HTTPステータスコード
	Msg    string // ユーザー向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Status, e.Msg)
}

// 定義済みメッセージ
const (
	MsgUnauthorized    = "Invalid or expired token"
	MsgDatabaseError   = "Database error"
	MsgPlantRequired   = "plantId & plantData required"
	MsgTaskRequired    = "taskType & dueDate required"
	MsgInvalidDueDate  = "dueDate must be YYYY-MM-DD"
	MsgFieldTooLong    = "Field exceeds maximum length"
	MsgLatLonRequired  = "lat & lon query required"
	MsgSearchFailed    = "Internal server error in search-species"
	MsgWeatherFailed   = "Weather fetch failed"
	MsgInvalidBody     = "Invalid JSON body"
	MsgTooManyRequests = "Too many requests, please try again later."
	MsgInternalError   = "Internal server error"
	MsgPlantAdded      = "Added"
	MsgPlantRemoved    = "Removed"
	MsgTaskCreated     = "Task created"
	MsgTaskRemoved     = "Task removed"
)

// NewUnauthorizedError は認証失敗を表す401エラーを生成する。
// 失敗の種類（未指定、形式不正、拒否、認証サービス障害）はクライアントに区別させない。
func NewUnauthorizedError() *APIError {
	return &APIError{Status: 401, Msg: MsgUnauthorized}
}

// NewValidationError は400エラーを生成する。
func NewValidationError(msg string) *APIError {
	return &APIError{Status: 400, Msg: msg}
}
