package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/sproutly/internal/model"
)

// PostgresPlantRepo はPostgreSQLを使用した植物リポジトリ。
type PostgresPlantRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresPlantRepo はPostgresPlantRepoを生成する。
// timeoutが0以下の場合はDefaultQueryTimeoutを使用する。
func NewPostgresPlantRepo(db *sql.DB, timeout time.Duration) *PostgresPlantRepo {
	return &PostgresPlantRepo{db: db, timeout: timeout}
}

// ListByUser はユーザーが登録した植物のplant_dataを登録順に返す。
func (r *PostgresPlantRepo) ListByUser(ctx context.Context, userID string) ([]json.RawMessage, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT plant_data FROM user_plants
		 WHERE user_id = $1
		 ORDER BY created_at ASC, plant_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("植物一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	plants := []json.RawMessage{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("植物データの読み取りに失敗しました: %w", err)
		}
		plants = append(plants, json.RawMessage(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("植物一覧の走査に失敗しました: %w", err)
	}

	return plants, nil
}

// Add は植物を登録する。同じplant_idが登録済みの場合はplant_dataを置き換える。
func (r *PostgresPlantRepo) Add(ctx context.Context, plant *model.UserPlant) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_plants (user_id, plant_id, plant_data, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, plant_id) DO UPDATE SET plant_data = EXCLUDED.plant_data`,
		plant.UserID, plant.PlantID, []byte(plant.PlantData), plant.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("植物の登録に失敗しました: %w", err)
	}
	return nil
}

// Delete はユーザーの植物を削除する。存在しない場合もエラーにしない。
func (r *PostgresPlantRepo) Delete(ctx context.Context, userID, plantID string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_plants WHERE user_id = $1 AND plant_id = $2`,
		userID, plantID,
	)
	if err != nil {
		return fmt.Errorf("植物の削除に失敗しました: %w", err)
	}
	return nil
}
