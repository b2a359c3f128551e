package model

import "encoding/json"

// MaxDailyForecasts はレスポンスに含める日次予報の最大件数。
const MaxDailyForecasts = 7

// WeatherReport は現在の天気と日次予報を保持する。
// 上流APIのフィールドはそのままクライアントへ渡すため、RawMessageで保持する。
type WeatherReport struct {
	Current json.RawMessage   `json:"current"`
	Daily   []json.RawMessage `json:"daily"`
}
