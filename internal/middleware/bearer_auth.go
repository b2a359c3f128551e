package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/sproutly/internal/auth"
	"github.com/hitoshi/sproutly/internal/model"
)

// AuthFailureRecorder は認証失敗の記録先。
type AuthFailureRecorder interface {
	RecordAuthFailure(reason string)
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 検証に成功した場合のみユーザーIDをコンテキストに設定して後続に渡す。
// 失敗の種類に関わらずレスポンスは同一の401で、種類はログとメトリクスにのみ残す。
func NewBearerAuthMiddleware(verifier auth.Verifier, recorder AuthFailureRecorder, logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := verifier.Verify(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				reason := authFailureReason(err)
				level := slog.LevelInfo
				if reason == "verifier_unavailable" {
					level = slog.LevelError
				}
				logger.Log(r.Context(), level, "authentication failed",
					slog.String("reason", reason),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				if recorder != nil {
					recorder.RecordAuthFailure(reason)
				}
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return "missing"
	case errors.Is(err, auth.ErrMalformedCredential):
		return "malformed"
	case errors.Is(err, auth.ErrVerifierUnavailable):
		return "verifier_unavailable"
	default:
		return "invalid"
	}
}
