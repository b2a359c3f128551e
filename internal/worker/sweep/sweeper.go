// Package sweep はインメモリ状態（検索キャッシュ、ユーザー別レートリミッター）の
// 期限切れエントリを定期的に削除するジョブを提供する。
// 検索キャッシュはGet時にも遅延失効するため、このジョブは使用メモリを抑えるためのもの。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
)

// DefaultSchedule は掃除ジョブのデフォルト実行間隔（cron式）。
const DefaultSchedule = "@every 10m"

// Target は掃除対象。Sweepは削除件数を返す。
type Target struct {
	Name  string
	Sweep func(ctx context.Context) (int, error)
	// OnSwept は削除件数の通知先（メトリクス用）。nil可。
	OnSwept func(removed int)
}

// Sweeper はcronスケジュールに従って掃除対象を順に処理する。
type Sweeper struct {
	cron     *cron.Cron
	schedule string
	targets  []Target
	logger   *slog.Logger
}

// Option はSweeperの設定を変更する。
type Option func(*Sweeper)

// WithSchedule は実行間隔のcron式を指定する。空の場合はDefaultSchedule。
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// NewSweeper は新しいSweeperを生成する。
func NewSweeper(logger *slog.Logger, targets []Target, opts ...Option) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		schedule: DefaultSchedule,
		targets:  targets,
		logger:   logger,
		cron:     cron.New(cron.WithLogger(cron.DiscardLogger)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start はジョブを登録してスケジューラーを開始する。
// cron式が不正な場合はエラーを返す。
func (s *Sweeper) Start() error {
	if len(s.targets) == 0 {
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.logger.Warn("期限切れエントリの掃除に失敗しました", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("掃除ジョブを開始しました",
		slog.String("schedule", s.schedule),
		slog.Int("targets", len(s.targets)),
	)
	return nil
}

// Stop はスケジューラーを停止する。返されたコンテキストは実行中のジョブの完了で閉じる。
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce はすべての掃除対象を順に処理する。
// 1つの対象が失敗しても残りは処理し、エラーはまとめて返す。
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := time.Now()

	var errs error
	total := 0
	for _, t := range s.targets {
		removed, err := t.Sweep(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		if t.OnSwept != nil {
			t.OnSwept(removed)
		}
		total += removed
	}

	s.logger.Debug("掃除ジョブが完了しました",
		slog.Int("removed", total),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return errs
}
