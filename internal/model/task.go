package model

import "time"

// UserTask はユーザーの手入れタスク（水やり、施肥など）を表す。
// PlantIDとPlantNameは任意で、植物に紐付かない自由記述タスクも許可する。
type UserTask struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	PlantID   *string   `json:"plant_id"`
	PlantName *string   `json:"plant_name"`
	TaskType  string    `json:"task_type"`
	DueDate   string    `json:"due_date"` // YYYY-MM-DD
	CreatedAt time.Time `json:"created_at"`
}

// DueDateLayout はdue_dateの日付フォーマット。
const DueDateLayout = "2006-01-02"
