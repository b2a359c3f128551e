// Package garden はユーザーの植物ライブラリと手入れタスクのドメインロジックを提供する。
// すべての操作は認証済みユーザーIDを引数に取り、リクエスト内のIDでは絞り込まない。
package garden

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	"github.com/hitoshi/sproutly/internal/model"
)

// AddPlantRequest は植物登録リクエストのボディ。
// plantIdは数値（Trefleの種ID）と文字列の両方を受け付ける。
type AddPlantRequest struct {
	PlantID   json.RawMessage `json:"plantId"`
	PlantData json.RawMessage `json:"plantData"`
}

// CreateTaskRequest はタスク作成リクエストのボディ。
type CreateTaskRequest struct {
	TaskType  string          `json:"taskType"`
	DueDate   string          `json:"dueDate"`
	PlantID   json.RawMessage `json:"plantId,omitempty"`
	PlantName *string         `json:"plantName,omitempty"`
}

// plantInput は正規化後の植物登録入力。
type plantInput struct {
	PlantID   string          `validate:"required,max=255"`
	PlantData json.RawMessage `validate:"required"`
}

// taskInput は正規化後のタスク作成入力。
type taskInput struct {
	TaskType  string  `validate:"required,max=100"`
	DueDate   string  `validate:"required,duedate"`
	PlantID   *string `validate:"omitempty,max=255"`
	PlantName *string `validate:"omitempty,max=255"`
}

// newValidator はgarden用のvalidatorを生成する。
// duedateタグはmodel.DueDateLayoutで解釈できる日付文字列を要求する。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("duedate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(model.DueDateLayout, fl.Field().String())
		return err == nil
	})
	return v
}

// failedTag はバリデーションエラーのうち指定フィールドで失敗したタグを返す。
// 該当しない場合は空文字。
func failedTag(err error, field string) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ""
	}
	for _, fe := range verrs {
		if fe.Field() == field {
			return fe.Tag()
		}
	}
	return ""
}

// identifier はJSON値を識別子文字列に変換する。
// 文字列と数値を受け付け、空文字・0・null・その他の型は未指定として空文字を返す。
func identifier(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	v := gjson.ParseBytes(raw)
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.Str)
	case gjson.Number:
		if v.Float() == 0 {
			return ""
		}
		return v.Raw
	default:
		return ""
	}
}

// present はplantDataが指定されているかを判定する。
// null・空文字・false・0は未指定として扱う。
func present(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	v := gjson.ParseBytes(raw)
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.String:
		return v.Str != ""
	case gjson.False:
		return false
	case gjson.Number:
		return v.Float() != 0
	default:
		return true
	}
}
