package repository

import (
	"context"
	"time"
)

// DefaultQueryTimeout はクエリ1回あたりのデフォルト上限時間。
const DefaultQueryTimeout = 5 * time.Second

// withTimeout はクエリ用のタイムアウト付きコンテキストを返す。
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, d)
}
