package garden

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/sproutly/internal/model"
	"github.com/hitoshi/sproutly/internal/repository"
)

// PlantService は植物ライブラリのサービス層。
type PlantService struct {
	repo     repository.PlantRepository
	validate *validator.Validate
	now      func() time.Time
}

// NewPlantService はPlantServiceの新しいインスタンスを生成する。
func NewPlantService(repo repository.PlantRepository) *PlantService {
	return &PlantService{
		repo:     repo,
		validate: newValidator(),
		now:      time.Now,
	}
}

// ListPlants はユーザーが登録した植物のplant_dataを返す。
func (s *PlantService) ListPlants(ctx context.Context, userID string) ([]json.RawMessage, error) {
	plants, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("植物一覧の取得に失敗しました: %w", err)
	}
	return plants, nil
}

// AddPlant はユーザーの植物ライブラリに植物を登録する。
// plantIdとplantDataのいずれかが未指定の場合は400エラーを返し、永続化層は呼び出さない。
// plantDataの形状は検証しない。
func (s *PlantService) AddPlant(ctx context.Context, userID string, req AddPlantRequest) error {
	in := plantInput{PlantID: identifier(req.PlantID)}
	if present(req.PlantData) {
		in.PlantData = req.PlantData
	}

	if err := s.validate.Struct(in); err != nil {
		if failedTag(err, "PlantID") == "max" {
			return model.NewValidationError(model.MsgFieldTooLong)
		}
		return model.NewValidationError(model.MsgPlantRequired)
	}

	plant := &model.UserPlant{
		UserID:    userID,
		PlantID:   in.PlantID,
		PlantData: in.PlantData,
		CreatedAt: s.now(),
	}
	if err := s.repo.Add(ctx, plant); err != nil {
		return fmt.Errorf("植物の登録に失敗しました: %w", err)
	}
	return nil
}

// RemovePlant はユーザーの植物を削除する。
// 存在しない植物の削除も成功として扱う。
func (s *PlantService) RemovePlant(ctx context.Context, userID, plantID string) error {
	plantID = strings.TrimSpace(plantID)
	if plantID == "" {
		return nil
	}
	if err := s.repo.Delete(ctx, userID, plantID); err != nil {
		return fmt.Errorf("植物の削除に失敗しました: %w", err)
	}
	return nil
}
