// Package export はアカウント引き継ぎ用トークンの発行と検証を提供する。
//
// トークンの状態遷移は Issued → Valid（expiresAtまで） → Expired/Deleted のみで、
// 更新や延長はない。期限の強制は2系統で行う:
// スイーパーによる定期purge（internal/worker/sweep）と、読み取り時の無条件再チェック。
// 後者があるため、プロセス再起動でスイーパーが止まっていても
// 期限切れトークンが有効と報告されることはない。
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/blinkd/internal/model"
	"github.com/hitoshi/blinkd/internal/repository"
)

// MetricsRecorder はサービス層が記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordTokenIssued()
	RecordTokenExpired()
}

// IssueResult はエクスポート応答を表す。
type IssueResult struct {
	User      *model.User
	Token     string
	ExpiresIn int    // 秒
	ImportURL string
	QRCode    string // base64 PNG。レンダリング失敗時は空
}

// ValidateResult はインポート検証の結果を表す。
type ValidateResult struct {
	User          *model.User
	ExpiresAt     time.Time
	TimeRemaining int // 秒
}

// Service はエクスポートトークンのサービス層。
type Service struct {
	users   repository.UserRepository
	tokens  repository.TokenRepository
	qr      QREncoder
	metrics MetricsRecorder
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// baseURLはインポートURLの組み立てに使用する（例: "https://blink.example.com"）。
func NewService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	qr QREncoder,
	metrics MetricsRecorder,
	baseURL string,
	ttl time.Duration,
) *Service {
	return &Service{
		users:   users,
		tokens:  tokens,
		qr:      qr,
		metrics: metrics,
		baseURL: baseURL,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue は指定ユーザーの新しいエクスポートトークンを発行する。
// ユーザーごとに追跡されるトークンは最新の1つのみだが、
// 発行済みの古いトークンも自身のexpiresAtまでは独立して有効なまま残る。
func (s *Service) Issue(ctx context.Context, username string) (*IssueResult, error) {
	if username == "" {
		return nil, model.NewInvalidInputError("username parameter is required")
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	now := s.now()
	record := &model.ExportToken{
		Token:     model.NewID(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, err
	}

	user.ExportToken = record.Token
	user.UpdatedAt = now
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	importURL := fmt.Sprintf("%s/import?token=%s", s.baseURL, record.Token)

	// QRレンダリングの失敗は致命的ではない。テキストURLのみで応答を成立させる。
	var qrCode string
	if s.qr != nil {
		qrCode, err = s.qr.Encode(importURL)
		if err != nil {
			slog.Warn("QR code rendering failed, degrading to text-only response",
				slog.String("error", err.Error()),
			)
			qrCode = ""
		}
	}

	if s.metrics != nil {
		s.metrics.RecordTokenIssued()
	}
	slog.Info("export token issued",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", record.ExpiresAt),
	)

	return &IssueResult{
		User:      user,
		Token:     record.Token,
		ExpiresIn: int(s.ttl.Seconds()),
		ImportURL: importURL,
		QRCode:    qrCode,
	}, nil
}

// Validate は指定トークンを検証し、有効であれば所有ユーザーと残り時間を返す。
// 期限切れを検出した場合はレコードを遅延削除してTOKEN_EXPIREDを返す。
// 消費型ではないため、有効期間内であれば何度でも呼び出せる。
func (s *Service) Validate(ctx context.Context, token string) (*ValidateResult, error) {
	if token == "" {
		return nil, model.NewInvalidInputError("token parameter is required")
	}

	record, err := s.tokens.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	if record == nil {
		return nil, model.NewTokenNotFoundError()
	}

	now := s.now()
	if !record.Valid(now) {
		s.expire(ctx, record)
		return nil, model.NewTokenExpiredError()
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find token owner: %w", err)
	}
	if user == nil {
		// ユーザーが消えた宙吊りトークン。整合性の崩れはNOT_FOUNDに縮退させる
		return nil, model.NewUserNotFoundError()
	}

	return &ValidateResult{
		User:          user,
		ExpiresAt:     record.ExpiresAt,
		TimeRemaining: int(record.ExpiresAt.Sub(now).Seconds()),
	}, nil
}

// expire は期限切れトークンをpurgeし、所有ユーザーのバックリンクを解除する。
// バックリンクはより新しいトークンで置き換えられている可能性があるため、
// 一致する場合のみクリアする。削除の失敗は検証結果に影響させない。
func (s *Service) expire(ctx context.Context, record *model.ExportToken) {
	if err := s.tokens.Delete(ctx, record.Token); err != nil {
		slog.Error("failed to delete expired token", slog.String("error", err.Error()))
		return
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil || user == nil {
		return
	}
	if user.ExportToken == record.Token {
		user.ExportToken = ""
		user.UpdatedAt = s.now()
		if err := s.users.Update(ctx, user); err != nil {
			slog.Error("failed to clear export token backlink", slog.String("error", err.Error()))
			return
		}
	}

	if s.metrics != nil {
		s.metrics.RecordTokenExpired()
	}
}
