package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// NewCORSMiddleware はgo-chi/corsによるCORSミドルウェアを返す。
// allowedOriginsが空の場合はリクエスト元のOriginをそのまま許可する。
// credentials送信と共存するため、ワイルドカード(*)は返さない。
// Bearerトークンを送るためAuthorizationヘッダーを許可する。
func NewCORSMiddleware(allowedOrigins []string) func(next http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}

	if len(allowedOrigins) == 0 {
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool {
			return true
		}
	} else {
		opts.AllowedOrigins = allowedOrigins
	}

	return cors.Handler(opts)
}
