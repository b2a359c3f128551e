package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/hitoshi/sproutly/internal/auth"
	"github.com/hitoshi/sproutly/internal/cache"
	"github.com/hitoshi/sproutly/internal/config"
	"github.com/hitoshi/sproutly/internal/database"
	"github.com/hitoshi/sproutly/internal/garden"
	"github.com/hitoshi/sproutly/internal/handler"
	"github.com/hitoshi/sproutly/internal/logger"
	"github.com/hitoshi/sproutly/internal/metrics"
	"github.com/hitoshi/sproutly/internal/middleware"
	"github.com/hitoshi/sproutly/internal/repository"
	"github.com/hitoshi/sproutly/internal/search"
	"github.com/hitoshi/sproutly/internal/security"
	"github.com/hitoshi/sproutly/internal/species"
	"github.com/hitoshi/sproutly/internal/upstream"
	"github.com/hitoshi/sproutly/internal/weather"
	"github.com/hitoshi/sproutly/internal/worker/sweep"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、ログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid LOG_LEVEL, falling back to info", slog.String("error", err.Error()))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	// 必須設定は有無のみを記録し、値は出力しない
	presence := cfg.RequiredPresence()
	attrs := make([]any, 0, len(presence)+2)
	attrs = append(attrs, slog.String("command", string(cmd)), slog.String("port", cfg.ServerPort))
	for key, ok := range presence {
		attrs = append(attrs, slog.Bool(key, ok))
	}
	slog.Info("starting application", attrs...)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで起動する構成要素をまとめたもの。
type server struct {
	handler http.Handler
	sweeper *sweep.Sweeper
}

// newServer は全依存関係をワイヤリングしてHTTPハンドラーと掃除ジョブを構築する。
// 外部への接続は行わないため、テストからも呼び出せる。
func newServer(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) *server {
	log := slog.Default()

	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. リポジトリの初期化
	plantRepo := repository.NewPostgresPlantRepo(db, cfg.DBQueryTimeout)
	taskRepo := repository.NewPostgresTaskRepo(db, cfg.DBQueryTimeout)

	// 3. 認証
	verifier := auth.NewSupabaseVerifier(auth.SupabaseConfig{
		URL:     cfg.SupabaseURL,
		APIKey:  cfg.SupabaseServiceRoleKey,
		Timeout: cfg.VerifyTimeout,
	}, nil, log)

	// 4. 外部APIクライアント
	speciesFetcher := upstream.NewFetcher(upstream.FetcherConfig{
		Name:             "trefle",
		Timeout:          cfg.SpeciesTimeout,
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
	}, nil, collector, log)
	weatherFetcher := upstream.NewFetcher(upstream.FetcherConfig{
		Name:             "openweather",
		Timeout:          cfg.WeatherTimeout,
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
	}, nil, collector, log)

	speciesClient := species.NewClient(speciesFetcher, cfg.TrefleBaseURL, cfg.TrefleAPIToken)
	weatherClient := weather.NewClient(weatherFetcher, cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey)

	// 5. ドメインサービスの初期化
	searchCache := cache.NewSearchCache(cfg.SearchCacheTTL, cache.SystemClock)
	searchService := search.NewService(speciesClient, searchCache, collector, log)
	plantService := garden.NewPlantService(plantRepo)
	taskService := garden.NewTaskService(taskRepo, security.NewTextSanitizer())

	// 6. レート制限
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteConfig(cfg.RateLimitUserPerMinute, cfg.RateLimitSearchPerMinute),
	)

	// 7. 掃除ジョブ（検索キャッシュとユーザー別リミッター）
	sweeper := sweep.NewSweeper(log, []sweep.Target{
		{
			Name:    "search_cache",
			Sweep:   func(ctx context.Context) (int, error) { return searchCache.Sweep(), nil },
			OnSwept: collector.RecordCacheEvictions,
		},
		{
			Name:  "rate_limiters",
			Sweep: func(ctx context.Context) (int, error) { return rateLimiter.Cleanup(), nil },
		},
	}, sweep.WithSchedule(cfg.CacheSweepSpec))

	// 8. ルーターの構築
	deps := &handler.RouterDeps{
		Verifier:           verifier,
		RateLimiter:        rateLimiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ConnectSrc:         []string{cfg.SupabaseURL, cfg.OpenWeatherBaseURL, cfg.TrefleBaseURL},
		ClientRateLimit:    cfg.RateLimitRequests,
		ClientRateWindow:   cfg.RateLimitWindow,
		Metrics:            collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),
		StaticHandler:  handler.NewSPAHandlerFromDir(cfg.StaticDir),

		SearchService:  searchService,
		PlantService:   plantService,
		TaskService:    taskService,
		WeatherService: weatherClient,
	}

	return &server{
		handler: handler.NewRouter(deps),
		sweeper: sweeper,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) (err error) {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		err = multierr.Append(err, db.Close())
	}()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := newServer(cfg, db, reg)

	if err := srv.sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	// 2. HTTPサーバーの起動
	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
		close(listenErr)
	}()

	select {
	case <-stop:
	case err := <-listenErr:
		if err != nil {
			<-srv.sweeper.Stop().Done()
			return fmt.Errorf("server listen error: %w", err)
		}
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	if err := httpServer.Shutdown(ctx); err != nil {
		shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("server shutdown failed: %w", err))
	}

	select {
	case <-srv.sweeper.Stop().Done():
	case <-ctx.Done():
		shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("sweeper did not stop: %w", ctx.Err()))
	}

	if shutdownErr != nil {
		return shutdownErr
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
