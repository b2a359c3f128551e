package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/sproutly/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB, timeout time.Duration) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db, timeout: timeout}
}

// ListByUser はユーザーのタスクをdue_dateの昇順で返す。
// 同じ期日のタスクは作成順に並べる。
func (r *PostgresTaskRepo) ListByUser(ctx context.Context, userID string) ([]model.UserTask, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, plant_id, plant_name, task_type, to_char(due_date, 'YYYY-MM-DD'), created_at
		 FROM user_tasks
		 WHERE user_id = $1
		 ORDER BY due_date ASC, created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	tasks := []model.UserTask{}
	for rows.Next() {
		var (
			task      model.UserTask
			plantID   sql.NullString
			plantName sql.NullString
		)
		if err := rows.Scan(&task.ID, &plantID, &plantName, &task.TaskType, &task.DueDate, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("タスクの読み取りに失敗しました: %w", err)
		}
		if plantID.Valid {
			task.PlantID = &plantID.String
		}
		if plantName.Valid {
			task.PlantName = &plantName.String
		}
		task.UserID = userID
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク一覧の走査に失敗しました: %w", err)
	}

	return tasks, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.UserTask) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_tasks (id, user_id, plant_id, plant_name, task_type, due_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.UserID, nullString(task.PlantID), nullString(task.PlantName),
		task.TaskType, task.DueDate, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete はユーザーのタスクを削除する。存在しない場合もエラーにしない。
func (r *PostgresTaskRepo) Delete(ctx context.Context, userID, taskID string) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_tasks WHERE user_id = $1 AND id = $2`,
		userID, taskID,
	)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
