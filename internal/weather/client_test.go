package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/sproutly/internal/model"
	"github.com/hitoshi/sproutly/internal/upstream"
)

type mockGetter struct {
	getFn func(ctx context.Context, rawURL string) ([]byte, error)
	urls  []string
}

func (m *mockGetter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	m.urls = append(m.urls, rawURL)
	return m.getFn(ctx, rawURL)
}

func oneCallBody(days int) []byte {
	daily := make([]string, days)
	for i := range daily {
		daily[i] = fmt.Sprintf(`{"dt":%d,"temp":{"day":%d.5}}`, 1700000000+i*86400, 20+i)
	}
	return []byte(`{"lat":35.6,"lon":139.7,"current":{"temp":21.3,"humidity":40},"hourly":[{"dt":1}],"daily":[` +
		strings.Join(daily, ",") + `]}`)
}

func TestClient_Forecast_TruncatesDailyToSeven(t *testing.T) {
	g := &mockGetter{getFn: func(ctx context.Context, rawURL string) ([]byte, error) {
		return oneCallBody(10), nil
	}}
	c := NewClient(g, "", "key")

	report, err := c.Forecast(context.Background(), "35.6", "139.7")
	require.NoError(t, err)
	assert.Len(t, report.Daily, model.MaxDailyForecasts)
	assert.JSONEq(t, `{"temp":21.3,"humidity":40}`, string(report.Current))
	assert.JSONEq(t, `{"dt":1700000000,"temp":{"day":20.5}}`, string(report.Daily[0]))

	// hourlyなど他のフィールドは含めない
	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hourly")
}

func TestClient_Forecast_FewerThanSevenDays(t *testing.T) {
	g := &mockGetter{getFn: func(ctx context.Context, rawURL string) ([]byte, error) {
		return oneCallBody(3), nil
	}}
	c := NewClient(g, "", "key")

	report, err := c.Forecast(context.Background(), "1", "2")
	require.NoError(t, err)
	assert.Len(t, report.Daily, 3)
}

func TestClient_Forecast_BuildsURL(t *testing.T) {
	g := &mockGetter{getFn: func(ctx context.Context, rawURL string) ([]byte, error) {
		return oneCallBody(0), nil
	}}
	c := NewClient(g, "https://weather.example/", "secret")

	_, err := c.Forecast(context.Background(), "35.6", "-139.7")
	require.NoError(t, err)
	require.Len(t, g.urls, 1)

	u, err := url.Parse(g.urls[0])
	require.NoError(t, err)
	assert.Equal(t, "weather.example", u.Host)
	assert.Equal(t, "/data/3.0/onecall", u.Path)
	assert.Equal(t, "35.6", u.Query().Get("lat"))
	assert.Equal(t, "-139.7", u.Query().Get("lon"))
	assert.Equal(t, "secret", u.Query().Get("appid"))
	assert.Equal(t, "metric", u.Query().Get("units"))
}

func TestClient_Forecast_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no current or daily", body: `{"lat":0}`},
		{name: "no daily", body: `{"current":{"temp":1}}`},
		{name: "null daily", body: `{"current":{"temp":1},"daily":null}`},
		{name: "daily not array", body: `{"current":{"temp":1},"daily":{"dt":1}}`},
		{name: "null current", body: `{"current":null,"daily":[]}`},
		{name: "error payload", body: `{"cod":401,"message":"bad"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &mockGetter{getFn: func(ctx context.Context, rawURL string) ([]byte, error) {
				return []byte(tt.body), nil
			}}
			c := NewClient(g, "", "key")

			report, err := c.Forecast(context.Background(), "0", "0")
			assert.Nil(t, report)
			assert.True(t, errors.Is(err, upstream.ErrUpstream), "got %v", err)
		})
	}
}

func TestClient_Forecast_EmptyDailyArray(t *testing.T) {
	g := &mockGetter{getFn: func(ctx context.Context, rawURL string) ([]byte, error) {
		return oneCallBody(0), nil
	}}
	c := NewClient(g, "", "key")

	report, err := c.Forecast(context.Background(), "0", "0")
	require.NoError(t, err)

	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"current":{"temp":21.3,"humidity":40},"daily":[]}`, string(out))
}

func TestClient_Forecast_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		err     error
		wantErr error
	}{
		{name: "timeout", err: upstream.ErrTimeout, wantErr: upstream.ErrTimeout},
		{name: "upstream error", err: fmt.Errorf("%w: status 401", upstream.ErrUpstream), wantErr: upstream.ErrUpstream},
		{name: "invalid json", body: []byte(`not json`), wantErr: upstream.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &mockGetter{getFn: func(ctx context.Context, rawURL string) ([]byte, error) {
				return tt.body, tt.err
			}}
			c := NewClient(g, "", "key")

			report, err := c.Forecast(context.Background(), "1", "2")
			assert.Nil(t, report)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}
