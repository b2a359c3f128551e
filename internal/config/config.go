package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string        `koanf:"database_url"`
	DBQueryTimeout time.Duration `koanf:"db_query_timeout"`

	// Identity (Supabase Auth)
	SupabaseURL            string        `koanf:"supabase_url"`
	SupabaseServiceRoleKey string        `koanf:"supabase_service_role_key"`
	VerifyTimeout          time.Duration `koanf:"verify_timeout"`

	// Species search (Trefle)
	TrefleAPIToken string        `koanf:"trefle_api_token"`
	TrefleBaseURL  string        `koanf:"trefle_base_url"`
	SpeciesTimeout time.Duration `koanf:"species_timeout"`
	SearchCacheTTL time.Duration `koanf:"search_cache_ttl"`
	CacheSweepSpec string        `koanf:"cache_sweep_schedule"`

	// Weather (OpenWeather One Call)
	OpenWeatherAPIKey  string        `koanf:"openweather_api_key"`
	OpenWeatherBaseURL string        `koanf:"openweather_base_url"`
	WeatherTimeout     time.Duration `koanf:"weather_timeout"`

	// Circuit breaker
	BreakerFailureThreshold int           `koanf:"breaker_failure_threshold"`
	BreakerOpenTimeout      time.Duration `koanf:"breaker_open_timeout"`

	// Rate Limit
	RateLimitRequests        int           `koanf:"rate_limit_requests"`
	RateLimitWindow          time.Duration `koanf:"rate_limit_window"`
	RateLimitUserPerMinute   int           `koanf:"rate_limit_user_per_minute"`
	RateLimitSearchPerMinute int           `koanf:"rate_limit_search_per_minute"`

	// Server
	ServerPort string `koanf:"server_port"`
	StaticDir  string `koanf:"static_dir"`
	LogLevel   string `koanf:"log_level"`

	// CORS
	// 空の場合はリクエスト元のOriginをそのまま許可する。
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// requiredKeys は起動時に必須の環境変数（koanfキー）。
var requiredKeys = []string{
	"supabase_url",
	"supabase_service_role_key",
	"trefle_api_token",
	"openweather_api_key",
	"database_url",
}

// defaultConfig はオプション項目のデフォルト値を返す。
func defaultConfig() *Config {
	return &Config{
		DBQueryTimeout:           5 * time.Second,
		VerifyTimeout:            5 * time.Second,
		TrefleBaseURL:            "https://trefle.io",
		SpeciesTimeout:           2 * time.Second,
		SearchCacheTTL:           5 * time.Minute,
		CacheSweepSpec:           "@every 10m",
		OpenWeatherBaseURL:       "https://api.openweathermap.org",
		WeatherTimeout:           2 * time.Second,
		BreakerFailureThreshold:  5,
		BreakerOpenTimeout:       30 * time.Second,
		RateLimitRequests:        100,
		RateLimitWindow:          15 * time.Minute,
		RateLimitUserPerMinute:   120,
		RateLimitSearchPerMinute: 30,
		ServerPort:               "8080",
		StaticDir:                "dist",
		LogLevel:                 "info",
		CORSAllowedOrigins:       []string{},
	}
}

// Load は環境変数からConfigを読み込む。
// デフォルト値を読み込んだ後、環境変数で上書きする。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKeyValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// CORS_ALLOWED_ORIGINSはカンマ区切り
	if raw, ok := k.Get("cors_allowed_origins").(string); ok {
		if err := k.Set("cors_allowed_origins", splitList(raw)); err != nil {
			return nil, fmt.Errorf("failed to parse CORS_ALLOWED_ORIGINS: %w", err)
		}
	}

	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(k.String(key)) == "" {
			missing = append(missing, strings.ToUpper(key))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.SupabaseURL = strings.TrimRight(cfg.SupabaseURL, "/")
	cfg.TrefleBaseURL = strings.TrimRight(cfg.TrefleBaseURL, "/")
	cfg.OpenWeatherBaseURL = strings.TrimRight(cfg.OpenWeatherBaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は値の範囲を検証する。
func (c *Config) Validate() error {
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit must be positive: %d per %s", c.RateLimitRequests, c.RateLimitWindow)
	}
	if c.RateLimitUserPerMinute <= 0 || c.RateLimitSearchPerMinute <= 0 {
		return fmt.Errorf("per-user rate limits must be positive")
	}
	if c.SpeciesTimeout <= 0 || c.WeatherTimeout <= 0 || c.VerifyTimeout <= 0 || c.DBQueryTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.SearchCacheTTL <= 0 {
		return fmt.Errorf("SEARCH_CACHE_TTL must be positive")
	}
	return nil
}

// RequiredPresence は必須項目ごとの設定有無を返す。
// 起動ログ用で、値そのものは含めない。
func (c *Config) RequiredPresence() map[string]bool {
	return map[string]bool{
		"SUPABASE_URL":              c.SupabaseURL != "",
		"SUPABASE_SERVICE_ROLE_KEY": c.SupabaseServiceRoleKey != "",
		"TREFLE_API_TOKEN":          c.TrefleAPIToken != "",
		"OPENWEATHER_API_KEY":       c.OpenWeatherAPIKey != "",
		"DATABASE_URL":              c.DatabaseURL != "",
	}
}

// knownKeys はConfigが受け付ける環境変数の一覧（小文字）。
var knownKeys = map[string]struct{}{
	"database_url":                 {},
	"db_query_timeout":             {},
	"supabase_url":                 {},
	"supabase_service_role_key":    {},
	"verify_timeout":               {},
	"trefle_api_token":             {},
	"trefle_base_url":              {},
	"species_timeout":              {},
	"search_cache_ttl":             {},
	"cache_sweep_schedule":         {},
	"openweather_api_key":          {},
	"openweather_base_url":         {},
	"weather_timeout":              {},
	"breaker_failure_threshold":    {},
	"breaker_open_timeout":         {},
	"rate_limit_requests":          {},
	"rate_limit_window":            {},
	"rate_limit_user_per_minute":   {},
	"rate_limit_search_per_minute": {},
	"server_port":                  {},
	"static_dir":                   {},
	"log_level":                    {},
	"cors_allowed_origins":         {},
}

// envKeyValue は環境変数名をkoanfキーに変換する。
// 未知の変数と空文字の変数は読み飛ばす（デフォルト値を維持する）。
func envKeyValue(key, value string) (string, interface{}) {
	key = strings.ToLower(key)
	if _, ok := knownKeys[key]; !ok || strings.TrimSpace(value) == "" {
		return "", nil
	}
	return key, value
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
