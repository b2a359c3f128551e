// Package species はTrefle植物種検索APIのクライアントを提供する。
package species

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/sproutly/internal/model"
	"github.com/hitoshi/sproutly/internal/upstream"
)

// DefaultBaseURL はTrefle APIのベースURL。
const DefaultBaseURL = "https://trefle.io"

// searchPath は植物種検索エンドポイントのパス。
const searchPath = "/api/v1/species/search"

// Getter は上流APIへのGETを抽象化するインターフェース。
// upstream.Fetcherが実装する。
type Getter interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Client はTrefle APIのクライアント。
type Client struct {
	getter  Getter
	baseURL string
	token   string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLが空の場合はDefaultBaseURLを使用する。
func NewClient(getter Getter, baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		getter:  getter,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Search はrawQueryで植物種を検索し、正規化したレコードを返す。
// rawQueryは小文字化せずにそのまま送信する。
// 失敗時はupstream.ErrTimeoutまたはupstream.ErrUpstreamをラップしたエラーを返す。
func (c *Client) Search(ctx context.Context, rawQuery string) ([]model.Species, error) {
	body, err := c.getter.Get(ctx, c.searchURL(rawQuery))
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: trefle returned invalid JSON", upstream.ErrUpstream)
	}

	return Normalize(body), nil
}

// searchURL は検索リクエストのURLを組み立てる。
func (c *Client) searchURL(rawQuery string) string {
	return c.baseURL + searchPath + "?token=" + escape(c.token) + "&q=" + escape(rawQuery)
}

// escape はクエリ値をパーセントエンコードする（空白は%20）。
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Normalize はTrefleの検索レスポンスからSpeciesレコードを取り出す。
// dataが配列でない場合は空スライスを返す。idが正の整数でないレコードは識別できないため除外する。
// 任意フィールドの欠落ではエラーにしない:
//   - common_nameが空の場合はscientific_nameを使用する
//   - image_urlが空の場合はnull
//   - familyが空の場合は空文字
func Normalize(body []byte) []model.Species {
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return []model.Species{}
	}

	records := data.Array()
	out := make([]model.Species, 0, len(records))
	for _, r := range records {
		id := r.Get("id")
		if id.Type != gjson.Number || id.Int() <= 0 || float64(id.Int()) != id.Float() {
			continue
		}
		s := model.Species{
			ID:             id.Int(),
			ScientificName: r.Get("scientific_name").String(),
			CommonName:     r.Get("common_name").String(),
			Family:         r.Get("family").String(),
		}
		if s.CommonName == "" {
			s.CommonName = s.ScientificName
		}
		if img := r.Get("image_url").String(); img != "" {
			s.ImageURL = &img
		}
		out = append(out, s)
	}
	return out
}
