// Package weather はOpenWeather One Call APIのクライアントを提供する。
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/sproutly/internal/model"
	"github.com/hitoshi/sproutly/internal/upstream"
)

// DefaultBaseURL はOpenWeather APIのベースURL。
const DefaultBaseURL = "https://api.openweathermap.org"

const oneCallPath = "/data/3.0/onecall"

// Getter は上流APIへのGETを抽象化するインターフェース。
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client はOpenWeather APIのクライアント。
type Client struct {
	getter  Getter
	baseURL string
	apiKey  string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(getter Getter, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		getter:  getter,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Forecast は指定座標の現在の天気と日次予報（最大7件）を返す。
// lat, lonはクライアントから受け取った文字列のまま上流へ渡す。
func (c *Client) Forecast(ctx context.Context, lat, lon string) (*model.WeatherReport, error) {
	body, err := c.getter.Get(ctx, c.oneCallURL(lat, lon))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: openweather returned invalid JSON", upstream.ErrUpstream)
	}
	return Trim(body)
}

func (c *Client) oneCallURL(lat, lon string) string {
	q := url.Values{}
	q.Set("lat", lat)
	q.Set("lon", lon)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	return c.baseURL + oneCallPath + "?" + q.Encode()
}

// Trim はOne Callレスポンスからcurrentとdailyの先頭7件を取り出す。
// currentがオブジェクトでない場合とdailyが配列でない場合は予報なしとしてErrUpstreamを返す。
func Trim(body []byte) (*model.WeatherReport, error) {
	current := gjson.GetBytes(body, "current")
	if !current.IsObject() {
		return nil, fmt.Errorf("%w: openweather response has no current weather", upstream.ErrUpstream)
	}
	daily := gjson.GetBytes(body, "daily")
	if !daily.IsArray() {
		return nil, fmt.Errorf("%w: openweather response has no daily forecast", upstream.ErrUpstream)
	}

	report := &model.WeatherReport{
		Current: []byte(current.Raw),
		Daily:   []json.RawMessage{},
	}
	for i, d := range daily.Array() {
		if i >= model.MaxDailyForecasts {
			break
		}
		report.Daily = append(report.Daily, []byte(d.Raw))
	}
	return report, nil
}
