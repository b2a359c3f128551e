package garden

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hitoshi/sproutly/internal/model"
	"github.com/hitoshi/sproutly/internal/repository"
	"github.com/hitoshi/sproutly/internal/security"
)

// TaskService は手入れタスクのサービス層。
type TaskService struct {
	repo      repository.TaskRepository
	sanitizer security.TextSanitizer
	validate  *validator.Validate
	now       func() time.Time
	newID     func() string
}

// NewTaskService はTaskServiceの新しいインスタンスを生成する。
func NewTaskService(repo repository.TaskRepository, sanitizer security.TextSanitizer) *TaskService {
	return &TaskService{
		repo:      repo,
		sanitizer: sanitizer,
		validate:  newValidator(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// ListTasks はユーザーのタスクを期日の昇順で返す。
func (s *TaskService) ListTasks(ctx context.Context, userID string) ([]model.UserTask, error) {
	tasks, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// CreateTask はタスクを作成する。
// taskTypeとdueDateは必須。テキスト項目はHTMLタグを除去してから保存する。
func (s *TaskService) CreateTask(ctx context.Context, userID string, req CreateTaskRequest) (*model.UserTask, error) {
	in := taskInput{
		TaskType:  s.sanitizer.Sanitize(req.TaskType),
		DueDate:   strings.TrimSpace(req.DueDate),
		PlantID:   optional(identifier(req.PlantID)),
		PlantName: nil,
	}
	if req.PlantName != nil {
		in.PlantName = optional(s.sanitizer.Sanitize(*req.PlantName))
	}

	if err := s.validate.Struct(in); err != nil {
		return nil, taskValidationError(err)
	}

	task := &model.UserTask{
		ID:        s.newID(),
		UserID:    userID,
		PlantID:   in.PlantID,
		PlantName: in.PlantName,
		TaskType:  in.TaskType,
		DueDate:   in.DueDate,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}
	return task, nil
}

// DeleteTask はユーザーのタスクを削除する。
// 存在しないタスクやUUID形式でないIDの削除も成功として扱う。
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	id, err := uuid.Parse(strings.TrimSpace(taskID))
	if err != nil {
		return nil
	}
	if err := s.repo.Delete(ctx, userID, id.String()); err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	return nil
}

// taskValidationError はバリデーションエラーを400のAPIErrorに変換する。
// 必須項目の欠落を最優先で報告する。
func taskValidationError(err error) *model.APIError {
	typeTag := failedTag(err, "TaskType")
	dateTag := failedTag(err, "DueDate")

	switch {
	case typeTag == "required" || dateTag == "required":
		return model.NewValidationError(model.MsgTaskRequired)
	case dateTag == "duedate":
		return model.NewValidationError(model.MsgInvalidDueDate)
	default:
		return model.NewValidationError(model.MsgFieldTooLong)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
