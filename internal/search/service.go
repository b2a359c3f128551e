// Package search はキャッシュ付きの植物種検索を提供する。
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/sproutly/internal/model"
)

// SpeciesClient は外部の植物種検索APIクライアントのインターフェース。
type SpeciesClient interface {
	Search(ctx context.Context, rawQuery string) ([]model.Species, error)
}

// ResultCache は検索結果キャッシュのインターフェース。
// cache.SearchCacheが実装する。
type ResultCache interface {
	Get(query string) ([]model.Species, bool)
	Put(query string, value []model.Species)
}

// CacheRecorder はキャッシュのヒット/ミスを記録する。nil可。
type CacheRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Service はキャッシュを優先して植物種を検索する。
type Service struct {
	client   SpeciesClient
	cache    ResultCache
	recorder CacheRecorder
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client SpeciesClient, cache ResultCache, recorder CacheRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:   client,
		cache:    cache,
		recorder: recorder,
		logger:   logger,
	}
}

// Search はqueryに一致する植物種を返す。
// 空白のみのクエリはキャッシュも外部APIも参照せずに空の結果を返す。
// 外部APIには小文字化していない元のクエリ（前後の空白は除去）を送る。
// 失敗した検索結果はキャッシュしない。
func (s *Service) Search(ctx context.Context, query string) ([]model.Species, error) {
	raw := strings.TrimSpace(query)
	if raw == "" {
		return []model.Species{}, nil
	}

	if cached, ok := s.cache.Get(raw); ok {
		s.recordHit()
		s.logger.Debug("species search cache hit", slog.String("query", raw))
		return cached, nil
	}
	s.recordMiss()

	results, err := s.client.Search(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("species search failed: %w", err)
	}

	s.cache.Put(raw, results)
	return results, nil
}

func (s *Service) recordHit() {
	if s.recorder != nil {
		s.recorder.RecordCacheHit()
	}
}

func (s *Service) recordMiss() {
	if s.recorder != nil {
		s.recorder.RecordCacheMiss()
	}
}
