package middleware

import (
	"context"
	"errors"
)

// contextKey はコンテキストキーの型。外部パッケージとの衝突を防ぐ。
type contextKey string

const (
	userIDContextKey      contextKey = "user_id"
	requestInfoContextKey contextKey = "request_info"
)

// ErrNoUserInContext は認証済みユーザーIDがコンテキストに無いことを示す。
var ErrNoUserInContext = errors.New("user ID not found in context")

// requestInfo はリクエスト単位の可変情報。
// 外側のロギングミドルウェアが内側で確定したユーザーIDを参照するために使う。
type requestInfo struct {
	userID string
}

// UserIDFromContext はコンテキストから検証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", ErrNoUserInContext
	}
	return userID, nil
}

// ContextWithUserID はユーザーIDを設定した新しいコンテキストを返す。
// ロギングミドルウェアの内側であれば、ログにもユーザーIDが載る。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

func contextWithRequestInfo(ctx context.Context) (context.Context, *requestInfo) {
	info := &requestInfo{}
	return context.WithValue(ctx, requestInfoContextKey, info), info
}
