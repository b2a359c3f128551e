package model

// Species は植物種検索APIの結果を正規化したレコード。
// image_urlが存在しない場合はnullとしてシリアライズされる。
type Species struct {
	ID             int64   `json:"id"`
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	ImageURL       *string `json:"image_url"`
	Family         string  `json:"family"`
}
