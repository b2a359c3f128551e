// Package auth はBearerトークンを外部の認証サービス（Supabase Auth）で検証する。
// ローカルにセッションは持たず、リクエストごとに検証する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/hitoshi/sproutly/internal/upstream"
)

var (
	// ErrMissingCredential はAuthorizationヘッダーが無いか空であることを示す。
	ErrMissingCredential = errors.New("missing credential")
	// ErrMalformedCredential はヘッダーが "Bearer <token>" 形式でないことを示す。
	ErrMalformedCredential = errors.New("malformed credential")
	// ErrInvalidCredential は認証サービスがトークンを拒否したことを示す。
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrVerifierUnavailable は認証サービスの呼び出し自体が失敗したことを示す。
	ErrVerifierUnavailable = errors.New("verifier unavailable")
)

// maxUserBodySize は /auth/v1/user レスポンスの読み取り上限。
const maxUserBodySize = 1 << 20

// invalidAPIKeyMessage はapikeyヘッダーが不正な場合に認証サービスが返すmessage。
const invalidAPIKeyMessage = "Invalid API key"

// Verifier はAuthorizationヘッダーを検証し、ユーザーIDを返す。
type Verifier interface {
	Verify(ctx context.Context, authorization string) (string, error)
}

// SupabaseConfig はSupabaseVerifierの設定。
type SupabaseConfig struct {
	URL     string        // プロジェクトURL（末尾スラッシュなし）
	APIKey  string        // service role key
	Timeout time.Duration // 検証1回あたりの上限時間
}

// SupabaseVerifier はSupabase Authの /auth/v1/user を呼び出してトークンを検証する。
type SupabaseVerifier struct {
	url     string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
	now     func() time.Time
}

// NewSupabaseVerifier はSupabaseVerifierを生成する。
// clientがnilの場合はIPv4固定クライアントを使用する。
func NewSupabaseVerifier(cfg SupabaseConfig, client *http.Client, logger *slog.Logger) *SupabaseVerifier {
	if client == nil {
		client = upstream.NewIPv4Client(cfg.Timeout)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SupabaseVerifier{
		url:     strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

// ParseBearer はAuthorizationヘッダーからトークンを取り出す。
// スキームの大文字小文字は区別しない。
func ParseBearer(authorization string) (string, error) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return "", ErrMissingCredential
	}

	scheme, token, ok := strings.Cut(authorization, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMalformedCredential
	}
	// 区切りの空白は1つだけ許可する
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMalformedCredential
	}
	return token, nil
}

// Verify はAuthorizationヘッダーを検証し、認証サービスが返したユーザーIDを返す。
func (v *SupabaseVerifier) Verify(ctx context.Context, authorization string) (string, error) {
	token, err := ParseBearer(authorization)
	if err != nil {
		return "", err
	}

	// 期限切れが明らかなJWTは認証サービスへ問い合わせずに拒否する。
	// 署名の検証は認証サービスに任せる。
	if expired(token, v.now()) {
		return "", fmt.Errorf("%w: token expired", ErrInvalidCredential)
	}

	return v.fetchUserID(ctx, token)
}

// expired はtokenがJWTとして解釈でき、expクレームが過去の場合にtrueを返す。
// JWTとして解釈できないトークンは判定せずfalseを返す。
func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

func (v *SupabaseVerifier) fetchUserID(ctx context.Context, token string) (string, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url+"/auth/v1/user", nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to build request", ErrVerifierUnavailable)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		if upstream.IsTimeout(err) {
			return "", fmt.Errorf("%w: identity service timed out", ErrVerifierUnavailable)
		}
		return "", fmt.Errorf("%w: identity service request failed", ErrVerifierUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read identity response", ErrVerifierUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("%w: identity service returned status %d", ErrVerifierUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// service role keyの誤りはユーザーのトークンではなくゲートウェイ側の設定不備
		if gjson.GetBytes(body, "message").String() == invalidAPIKeyMessage {
			v.logger.Error("identity service rejected the service role key", slog.Int("status", resp.StatusCode))
			return "", fmt.Errorf("%w: identity service rejected the api key", ErrVerifierUnavailable)
		}
		return "", fmt.Errorf("%w: identity service returned status %d", ErrInvalidCredential, resp.StatusCode)
	default:
		v.logger.Error("unexpected identity service status", slog.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: identity service returned status %d", ErrInvalidCredential, resp.StatusCode)
	}

	userID := gjson.GetBytes(body, "id").String()
	if userID == "" {
		return "", fmt.Errorf("%w: identity response has no user id", ErrInvalidCredential)
	}
	return userID, nil
}
