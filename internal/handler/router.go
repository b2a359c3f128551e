package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sproutly/internal/auth"
	"github.com/hitoshi/sproutly/internal/middleware"
)

// MetricsRecorder はミドルウェアが記録するメトリクスの集合。
type MetricsRecorder interface {
	middleware.StatusRecorder
	middleware.AuthFailureRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Verifier           auth.Verifier
	RateLimiter        *middleware.RateLimiter
	CORSAllowedOrigins []string
	ConnectSrc         []string // CSPのconnect-srcに追加する外部オリジン
	ClientRateLimit    int
	ClientRateWindow   time.Duration
	Metrics            MetricsRecorder

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
	StaticHandler  http.Handler

	// ドメイン
	SearchService  SearchServiceInterface
	PlantService   PlantServiceInterface
	TaskService    TaskServiceInterface
	WeatherService WeatherServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → ClientRateLimit
//	/api/*: BearerAuth → RateLimit(General) [→ RateLimit(Search)]
//
// /health と /metrics は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(slog.Default(), deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.ConnectSrc...))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	if deps.ClientRateLimit > 0 && deps.ClientRateWindow > 0 {
		r.Use(middleware.NewClientRateLimitMiddleware(deps.ClientRateLimit, deps.ClientRateWindow))
	}

	searchHandler := NewSearchHandler(deps.SearchService)
	plantHandler := NewPlantHandler(deps.PlantService)
	taskHandler := NewTaskHandler(deps.TaskService)
	weatherHandler := NewWeatherHandler(deps.WeatherService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: BearerAuth → RateLimit(General)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.Verifier, deps.Metrics, nil))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 植物種検索（外部APIのクォータ保護のため検索専用レート制限を追加）
		r.With(deps.RateLimiter.SearchMiddleware()).Get("/search-species", searchHandler.SearchSpecies)

		// 植物ライブラリ
		r.Route("/user-plants", func(r chi.Router) {
			r.Get("/", plantHandler.ListPlants)
			r.Post("/", plantHandler.AddPlant)
			r.Delete("/{plantId}", plantHandler.RemovePlant)
		})

		// 手入れタスク
		r.Route("/user-tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)
			r.Delete("/{taskId}", taskHandler.DeleteTask)
		})

		// 天気
		r.Get("/weather", weatherHandler.GetWeather)

		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			middleware.WriteMessage(w, http.StatusNotFound, "Not found")
		})
	})

	// --- フロントエンド ---
	if deps.StaticHandler != nil {
		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				http.NotFound(w, req)
				return
			}
			deps.StaticHandler.ServeHTTP(w, req)
		})
	}

	return r
}
