package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// defaultMaxBodySize は上流レスポンスボディの読み取り上限（5MB）。
const defaultMaxBodySize = 5 << 20

// 結果ラベル（メトリクス用）
const (
	OutcomeSuccess = "success"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
	OutcomeOpen    = "circuit_open"
)

// Recorder は上流呼び出しの結果を記録するインターフェース。
// metrics.Collectorが実装する。
type Recorder interface {
	RecordUpstream(service, outcome string, duration time.Duration)
}

// FetcherConfig はFetcherの設定。
type FetcherConfig struct {
	Name             string        // サービス名（ログ・メトリクスのラベル）
	Timeout          time.Duration // 1リクエストあたりの上限時間
	FailureThreshold int           // 連続失敗でブレーカーを開く回数。0以下で無効
	OpenTimeout      time.Duration // ブレーカーが開いている時間
	MaxBodySize      int64         // 0以下の場合は5MB
}

// Fetcher は上流APIへのタイムアウト付きGETを行う。
// 自動リトライは行わない。失敗はそのまま呼び出し元へ返す。
type Fetcher struct {
	name        string
	client      *http.Client
	timeout     time.Duration
	maxBodySize int64
	breaker     *gobreaker.CircuitBreaker[[]byte]
	recorder    Recorder
	logger      *slog.Logger
}

// NewFetcher は新しいFetcherを生成する。
// clientがnilの場合はIPv4固定クライアントを生成する。recorderはnil可。
func NewFetcher(cfg FetcherConfig, client *http.Client, recorder Recorder, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = NewIPv4Client(cfg.Timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}

	f := &Fetcher{
		name:        cfg.Name,
		client:      client,
		timeout:     cfg.Timeout,
		maxBodySize: maxBody,
		recorder:    recorder,
		logger:      logger,
	}

	if cfg.FailureThreshold > 0 {
		threshold := uint32(cfg.FailureThreshold)
		f.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// クライアント側の切断は上流の障害として数えない
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("upstream circuit breaker state changed",
					slog.String("service", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		})
	}

	return f
}

// Get はrawURLへGETリクエストを送り、2xxのレスポンスボディを返す。
// 制限時間を超えた場合はErrTimeout、それ以外の失敗はErrUpstreamでラップして返す。
// rawURLには認証情報が含まれるため、ログには出力しない。
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()

	var (
		body []byte
		err  error
	)
	if f.breaker != nil {
		body, err = f.breaker.Execute(func() ([]byte, error) {
			return f.do(ctx, rawURL)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			f.record(OutcomeOpen, start)
			return nil, fmt.Errorf("%w: %s circuit open", ErrUpstream, f.name)
		}
	} else {
		body, err = f.do(ctx, rawURL)
	}

	switch {
	case err == nil:
		f.record(OutcomeSuccess, start)
	case errors.Is(err, ErrTimeout):
		f.record(OutcomeTimeout, start)
	default:
		f.record(OutcomeError, start)
	}
	return body, err
}

func (f *Fetcher) do(ctx context.Context, rawURL string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build %s request", ErrUpstream, f.name)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Sproutly/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		if IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			f.logger.Error("upstream request timed out",
				slog.String("service", f.name),
				slog.Duration("timeout", f.timeout),
			)
			return nil, fmt.Errorf("%w: %s", ErrTimeout, f.name)
		}
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s request canceled: %w", ErrUpstream, f.name, context.Canceled)
		}
		f.logger.Error("upstream request failed",
			slog.String("service", f.name),
			slog.String("error", redact(err)),
		)
		return nil, fmt.Errorf("%w: %s transport failure", ErrUpstream, f.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 上流のエラーボディはクライアントへ返さず、ログにも先頭のみ記録する
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		f.logger.Error("upstream returned error status",
			slog.String("service", f.name),
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		return nil, fmt.Errorf("%w: %s returned status %d", ErrUpstream, f.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		if IsTimeout(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, f.name)
		}
		return nil, fmt.Errorf("%w: failed to read %s response", ErrUpstream, f.name)
	}

	return body, nil
}

func (f *Fetcher) record(outcome string, start time.Time) {
	if f.recorder != nil {
		f.recorder.RecordUpstream(f.name, outcome, time.Since(start))
	}
}
