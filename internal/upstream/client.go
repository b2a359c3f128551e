// Package upstream は外部API（植物種検索、天気）呼び出しの共通基盤を提供する。
// IPv4固定のHTTPクライアント、タイムアウト付きGET、サーキットブレーカーを含む。
package upstream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

var (
	// ErrTimeout は上流APIが制限時間内に応答しなかったことを示す。
	ErrTimeout = errors.New("upstream timeout")
	// ErrUpstream は上流APIの非成功レスポンス、通信失敗、デコード失敗を示す。
	ErrUpstream = errors.New("upstream error")
)

// NewIPv4Client はIPv4のみで名前解決・接続するHTTPクライアントを生成する。
// デュアルスタック環境でAAAAレコードの解決待ちが制限時間を消費しないようにする。
func NewIPv4Client(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// IsTimeout はerrがタイムアウト由来かどうかを判定する。
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
