package middleware

import (
	"net/http"
	"strings"
)

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// connectSrcにはブラウザから直接呼び出す外部オリジン（認証サービス、天気API、植物種API）を指定する。
func NewSecurityHeadersMiddleware(connectSrc ...string) func(next http.Handler) http.Handler {
	csp := contentSecurityPolicy(connectSrc)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", csp)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(self)")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")
			h.Set("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
			next.ServeHTTP(w, r)
		})
	}
}

// contentSecurityPolicy はCSPヘッダーの値を組み立てる。
// 植物種の画像は外部ホストから配信されるためimg-srcにhttps:を含める。
func contentSecurityPolicy(connectSrc []string) string {
	connect := []string{"'self'"}
	for _, src := range connectSrc {
		if src = strings.TrimSpace(src); src != "" {
			connect = append(connect, src)
		}
	}

	directives := []string{
		"default-src 'self'",
		"script-src 'self'",
		"style-src 'self'",
		"connect-src " + strings.Join(connect, " "),
		"img-src 'self' data: https:",
		"font-src 'self'",
		"object-src 'none'",
		"base-uri 'self'",
		"frame-ancestors 'none'",
	}
	return strings.Join(directives, "; ")
}
