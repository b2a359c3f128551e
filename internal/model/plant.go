// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// UserPlant はユーザーのプラントライブラリに登録された植物を表す。
// PlantDataはクライアントから受け取ったJSONをそのまま保持し、形状は検証しない。
type UserPlant struct {
	UserID    string
	PlantID   string
	PlantData json.RawMessage
	CreatedAt time.Time
}
