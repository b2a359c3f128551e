package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sproutly/internal/model"
)

// RateLimiterConfig はユーザー単位のレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate  rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst int           // API全般のバーストサイズ
	SearchRate   rate.Limit    // 植物種検索のレート（req/sec）。30/60
	SearchBurst  int           // 植物種検索のバーストサイズ
	IdleTTL      time.Duration // 最終アクセスからこの時間を過ぎたエントリはCleanupで削除する
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、植物種検索 30 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteConfig(120, 30)
}

// PerMinuteConfig は1分あたりのリクエスト数から設定を組み立てる。
func PerMinuteConfig(generalPerMinute, searchPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:  rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst: generalPerMinute,
		SearchRate:   rate.Limit(float64(searchPerMinute) / 60.0),
		SearchBurst:  searchPerMinute,
		IdleTTL:      10 * time.Minute,
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet は1種類のレート制限についてユーザーごとのリミッターを管理する。
type limiterSet struct {
	name  string
	rate  rate.Limit
	burst int

	mu       sync.RWMutex
	limiters map[string]*userLimiter
}

func newLimiterSet(name string, r rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		name:     name,
		rate:     r,
		burst:    burst,
		limiters: make(map[string]*userLimiter),
	}
}

// get はユーザーのリミッターを取得または作成する。
func (s *limiterSet) get(userID string, now time.Time) *rate.Limiter {
	s.mu.RLock()
	ul, exists := s.limiters[userID]
	s.mu.RUnlock()

	if exists {
		s.mu.Lock()
		ul.lastAccess = now
		s.mu.Unlock()
		return ul.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ダブルチェック
	if ul, exists := s.limiters[userID]; exists {
		ul.lastAccess = now
		return ul.limiter
	}

	limiter := rate.NewLimiter(s.rate, s.burst)
	s.limiters[userID] = &userLimiter{
		limiter:    limiter,
		lastAccess: now,
	}
	return limiter
}

func (s *limiterSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

func (s *limiterSet) evictIdle(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, ul := range s.limiters {
		if ul.lastAccess.Before(cutoff) {
			delete(s.limiters, userID)
			removed++
		}
	}
	return removed
}

func (s *limiterSet) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteAPIError(w, model.NewUnauthorizedError())
				return
			}

			if !s.get(userID, time.Now()).Allow() {
				writeRateLimitResponse(w, retryAfterSeconds(s.rate))
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", s.name),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般と植物種検索の2種類を提供する。
// 古いエントリの削除はCleanupを定期ジョブから呼び出して行う。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	search  *limiterSet
	now     func() time.Time
}

// NewRateLimiter は新しいRateLimiterを生成する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		config:  config,
		general: newLimiterSet("general", config.GeneralRate, config.GeneralBurst),
		search:  newLimiterSet("search", config.SearchRate, config.SearchBurst),
		now:     time.Now,
	}
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// 認証ミドルウェアの後に配置する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware()
}

// SearchMiddleware は植物種検索専用のレート制限ミドルウェアを返す。
// 外部APIのクォータを守るため、API全般の制限とは独立に動作する。
func (rl *RateLimiter) SearchMiddleware() func(next http.Handler) http.Handler {
	return rl.search.middleware()
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// SearchLimiterCount は現在管理されている検索リミッターのエントリ数を返す。
func (rl *RateLimiter) SearchLimiterCount() int {
	return rl.search.len()
}

// Cleanup は最終アクセスからIdleTTLを超えたエントリを削除し、削除数を返す。
func (rl *RateLimiter) Cleanup() int {
	cutoff := rl.now().Add(-rl.config.IdleTTL)
	return rl.general.evictIdle(cutoff) + rl.search.evictIdle(cutoff)
}

// NewClientRateLimitMiddleware はクライアントIP単位の固定ウィンドウ制限を返す。
// 認証前の全リクエストに適用する。
func NewClientRateLimitMiddleware(requests int, window time.Duration) func(next http.Handler) http.Handler {
	retryAfter := int(math.Ceil(window.Seconds()))
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("client rate limit exceeded",
				slog.String("path", r.URL.Path),
			)
			writeRateLimitResponse(w, retryAfter)
		}),
	)
}

// retryAfterSeconds は1トークンが補充されるまでの秒数を返す。
func retryAfterSeconds(r rate.Limit) int {
	if r <= 0 {
		return 60
	}
	sec := int(math.Ceil(1.0 / float64(r)))
	if sec < 1 {
		sec = 1
	}
	return sec
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
func writeRateLimitResponse(w http.ResponseWriter, retryAfterSec int) {
	if w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	}
	WriteMessage(w, http.StatusTooManyRequests, model.MsgTooManyRequests)
}
