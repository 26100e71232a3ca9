// Package sweep は期限切れエクスポートトークンの定期purgeジョブを提供する。
// トークンごとに個別タイマーを張る代わりに、単一のティッカーで全トークンを走査する。
// 読み取り経路が常にexpiresAtを再チェックするため、本ジョブは
// ストレージ回収のためのベストエフォート処理であり、正しさの前提条件ではない。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blinkd/internal/repository"
)

// MetricsRecorder はスイーパーが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordTokenExpired()
}

// Sweeper は期限切れトークンの削除ジョブ。
// 冪等であり、purge対象がない場合でもエラーにならない。
type Sweeper struct {
	tokens  repository.TokenRepository
	users   repository.UserRepository
	logger  *slog.Logger
	metrics MetricsRecorder
	now     func() time.Time
}

// NewSweeper は新しいSweeperを生成する。
func NewSweeper(
	tokens repository.TokenRepository,
	users repository.UserRepository,
	logger *slog.Logger,
	metrics MetricsRecorder,
) *Sweeper {
	return &Sweeper{
		tokens:  tokens,
		users:   users,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run は期限切れトークンを1回purgeする。
// トークンレコードを削除し、所有ユーザーのexportTokenが当該トークンと
// 一致している場合のみバックリンクをクリアする（新しいトークンによる
// 置き換えを上書きしないためのガード）。
func (s *Sweeper) Run(ctx context.Context) error {
	start := s.now()

	tokens, err := s.tokens.List(ctx)
	if err != nil {
		s.logger.Error("トークン走査に失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	purged := 0
	for _, record := range tokens {
		if record.Valid(start) {
			continue
		}

		if err := s.tokens.Delete(ctx, record.Token); err != nil {
			s.logger.Error("期限切れトークンの削除に失敗しました",
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := s.clearBacklink(ctx, record.UserID, record.Token); err != nil {
			s.logger.Error("バックリンクの解除に失敗しました",
				slog.String("user_id", record.UserID),
				slog.String("error", err.Error()),
			)
		}

		purged++
		if s.metrics != nil {
			s.metrics.RecordTokenExpired()
		}
	}

	if purged > 0 {
		s.logger.Info("期限切れトークンをpurgeしました",
			slog.Int("purged_count", purged),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}

	return nil
}

// Start は指定間隔でRunを繰り返す。コンテキストのキャンセルで停止する。
// 起動直後にも1回実行する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if err := s.Run(ctx); err != nil {
		s.logger.Error("sweep job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("sweep job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// clearBacklink は所有ユーザーのexportTokenが一致する場合のみクリアする。
func (s *Sweeper) clearBacklink(ctx context.Context, userID, token string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil || user.ExportToken != token {
		return nil
	}

	user.ExportToken = ""
	user.UpdatedAt = s.now()
	return s.users.Update(ctx, user)
}
