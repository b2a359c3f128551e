// Package repository はデータ永続化のインターフェースを定義する。
// すべての操作は認証済みユーザーIDで絞り込む。
package repository

import (
	"context"
	"encoding/json"

	"github.com/hitoshi/sproutly/internal/model"
)

// PlantRepository はユーザーの植物ライブラリの永続化インターフェース。
type PlantRepository interface {
	// ListByUser はユーザーが登録した植物のplant_dataを登録順に返す。
	ListByUser(ctx context.Context, userID string) ([]json.RawMessage, error)

	// Add は植物を登録する。同じplant_idが登録済みの場合はplant_dataを置き換える。
	Add(ctx context.Context, plant *model.UserPlant) error

	// Delete はユーザーの植物を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID, plantID string) error
}

// TaskRepository はユーザーの手入れタスクの永続化インターフェース。
type TaskRepository interface {
	// ListByUser はユーザーのタスクをdue_dateの昇順で返す。
	ListByUser(ctx context.Context, userID string) ([]model.UserTask, error)

	// Create はタスクを作成する。IDとCreatedAtは呼び出し元が設定する。
	Create(ctx context.Context, task *model.UserTask) error

	// Delete はユーザーのタスクを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID, taskID string) error
}
