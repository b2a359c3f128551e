package species

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/sproutly/internal/upstream"
)

// mockGetter はGetterのモック実装。
type mockGetter struct {
	getFn func(ctx context.Context, rawURL string) ([]byte, error)
	urls  []string
}

func (m *mockGetter) Get(ctx context.Context, rawURL string) ([]byte, error) {
	m.urls = append(m.urls, rawURL)
	if m.getFn != nil {
		return m.getFn(ctx, rawURL)
	}
	return []byte(`{"data":[]}`), nil
}

func TestClient_Search_BuildsEncodedURLWithRawQuery(t *testing.T) {
	g := &mockGetter{}
	c := NewClient(g, "https://trefle.example/", "tok/en+1")

	_, err := c.Search(context.Background(), "Cherry Tomato&x")
	require.NoError(t, err)
	require.Len(t, g.urls, 1)
	assert.Equal(t,
		"https://trefle.example/api/v1/species/search?token=tok%2Fen%2B1&q=Cherry%20Tomato%26x",
		g.urls[0],
	)
}

func TestClient_Search_NormalizesRecords(t *testing.T) {
	g := &mockGetter{getFn: func(ctx context.Context, rawURL string) ([]byte, error) {
		return []byte(`{
			"data": [
				{"id": 1, "common_name": "Tomato", "scientific_name": "Solanum lycopersicum",
				 "image_url": "https://img.example/t.jpg", "family": "Solanaceae"},
				{"id": 2, "common_name": null, "scientific_name": "Ocimum basilicum"},
				{"id": 3, "scientific_name": "Mentha", "image_url": "", "family": null}
			],
			"links": {"self": "/api/v1/species/search?q=x"}
		}`), nil
	}}
	c := NewClient(g, "", "token")

	got, err := c.Search(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, "Tomato", got[0].CommonName)
	require.NotNil(t, got[0].ImageURL)
	assert.Equal(t, "https://img.example/t.jpg", *got[0].ImageURL)
	assert.Equal(t, "Solanaceae", got[0].Family)

	// common_nameの欠落はscientific_nameで補完する
	assert.Equal(t, "Ocimum basilicum", got[1].CommonName)
	assert.Nil(t, got[1].ImageURL)
	assert.Equal(t, "", got[1].Family)

	assert.Equal(t, "Mentha", got[2].CommonName)
	assert.Nil(t, got[2].ImageURL)
	assert.Equal(t, "", got[2].Family)
}

func TestNormalize_NonArrayData_ReturnsEmpty(t *testing.T) {
	assert.Empty(t, Normalize([]byte(`{"data": null}`)))
	assert.Empty(t, Normalize([]byte(`{"error": true}`)))
	assert.NotNil(t, Normalize([]byte(`{}`)), "empty result must serialize as []")
}

func TestNormalize_SkipsRecordsWithoutID(t *testing.T) {
	got := Normalize([]byte(`{"data":[
		{"scientific_name": "No id"},
		{"id": "abc", "scientific_name": "String id"},
		{"id": null, "scientific_name": "Null id"},
		{"id": 0, "scientific_name": "Zero id"},
		{"id": 1.5, "scientific_name": "Fractional id"},
		{"id": 42, "scientific_name": "Kept"}
	]}`))

	require.Len(t, got, 1)
	assert.Equal(t, int64(42), got[0].ID)
	assert.Equal(t, "Kept", got[0].ScientificName)
}

func TestClient_Search_InvalidJSON_ReturnsUpstreamError(t *testing.T) {
	g := &mockGetter{getFn: func(ctx context.Context, rawURL string) ([]byte, error) {
		return []byte(`<html>oops</html>`), nil
	}}
	c := NewClient(g, "", "token")

	_, err := c.Search(context.Background(), "rose")
	require.Error(t, err)
	assert.True(t, errors.Is(err, upstream.ErrUpstream))
}

func TestClient_Search_PropagatesTimeout(t *testing.T) {
	g := &mockGetter{getFn: func(ctx context.Context, rawURL string) ([]byte, error) {
		return nil, upstream.ErrTimeout
	}}
	c := NewClient(g, "", "token")

	_, err := c.Search(context.Background(), "rose")
	assert.True(t, errors.Is(err, upstream.ErrTimeout))
}

func TestClient_Search_WithFetcherAgainstServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/species/search", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("token"))
		assert.Equal(t, "Basil", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":7,"common_name":"Basil","scientific_name":"Ocimum basilicum","family":"Lamiaceae"}]}`))
	}))
	defer server.Close()

	f := upstream.NewFetcher(upstream.FetcherConfig{Name: "trefle", Timeout: 2 * time.Second}, nil, nil, nil)
	c := NewClient(f, server.URL, "secret")

	got, err := c.Search(context.Background(), "Basil")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Lamiaceae", got[0].Family)
}
