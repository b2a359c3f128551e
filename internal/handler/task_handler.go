package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sproutly/internal/garden"
	"github.com/hitoshi/sproutly/internal/middleware"
	"github.com/hitoshi/sproutly/internal/model"
)

// TaskServiceInterface は手入れタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	ListTasks(ctx context.Context, userID string) ([]model.UserTask, error)
	CreateTask(ctx context.Context, userID string, req garden.CreateTaskRequest) (*model.UserTask, error)
	DeleteTask(ctx context.Context, userID, taskID string) error
}

// TaskHandler は手入れタスクのHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// ListTasks はユーザーのタスクを期日の昇順で返す。
// GET /api/user-tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err, model.MsgDatabaseError)
		return
	}
	if tasks == nil {
		tasks = []model.UserTask{}
	}

	middleware.WriteJSON(w, http.StatusOK, tasks)
}

// CreateTask はタスクを作成する。
// POST /api/user-tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req garden.CreateTaskRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if _, err := h.service.CreateTask(r.Context(), userID, req); err != nil {
		handleServiceError(w, r, err, model.MsgDatabaseError)
		return
	}

	middleware.WriteMessage(w, http.StatusOK, model.MsgTaskCreated)
}

// DeleteTask はタスクを削除する。存在しない場合も成功を返す。
// DELETE /api/user-tasks/{taskId}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTask(r.Context(), userID, chi.URLParam(r, "taskId")); err != nil {
		handleServiceError(w, r, err, model.MsgDatabaseError)
		return
	}

	middleware.WriteMessage(w, http.StatusOK, model.MsgTaskRemoved)
}
