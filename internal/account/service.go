// Package account はユーザー登録とスコア管理のドメインロジックを提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hitoshi/blinkd/internal/model"
	"github.com/hitoshi/blinkd/internal/repository"
)

// UsernameSanitizer はユーザー名サニタイズのインターフェース。
// security.UsernameSanitizerServiceの部分集合として定義する。
type UsernameSanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder はサービス層が記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordRegistration()
	RecordBlink()
}

// SyncResult は同期応答を表す。サーバー側の値が常に正となる。
type SyncResult struct {
	Changed    bool
	Blinkscore int
	TreeStates []int
}

// Service はアカウント管理のサービス層。
// 登録・スコア更新・同期・リセットのビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	sanitizer UsernameSanitizer
	metrics   MetricsRecorder
	gridSlots int
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// gridSlotsはtreeStatesの有効なスロット番号の上限（排他的）を指定する。
func NewService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	sanitizer UsernameSanitizer,
	metrics MetricsRecorder,
	gridSlots int,
) *Service {
	return &Service{
		users:     users,
		tokens:    tokens,
		sanitizer: sanitizer,
		metrics:   metrics,
		gridSlots: gridSlots,
		now:       time.Now,
	}
}

// Register は新規ユーザーを登録する。
// ユーザー名はサニタイズ・トリム後に空でないことを要求し、
// 既存ユーザーと大文字小文字を区別せず衝突しないことを確認する。
// IDは128ビットの乱数から生成するため明示的な衝突リトライは行わない。
func (s *Service) Register(ctx context.Context, username string) (*model.User, error) {
	if s.sanitizer != nil {
		username = s.sanitizer.Sanitize(username)
	}
	if username == "" {
		return nil, model.NewInvalidInputError("username parameter is required")
	}

	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, model.NewUsernameTakenError(username)
	}

	now := s.now()
	user := &model.User{
		ID:         model.NewID(),
		Username:   username,
		Blinkscore: 0,
		TreeStates: []int{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// 走査とCreateの間の競合はCreate内のインデックス獲得で吸収される
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRegistration()
	}
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// ListUsers は全ユーザーを返す。
func (s *Service) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Blink はブリンクイベントを記録する。
// blinkscoreを1加算し、hasTreesが真の場合はtreeStatesを検証のうえ上書きする。
func (s *Service) Blink(ctx context.Context, id string, trees []int, hasTrees bool) (*model.User, error) {
	if id == "" {
		return nil, model.NewInvalidInputError("id parameter is required")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	user.Blinkscore++
	if hasTrees {
		normalized, err := s.normalizeTreeStates(trees)
		if err != nil {
			return nil, err
		}
		user.TreeStates = normalized
	}
	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordBlink()
	}

	return user, nil
}

// Sync はクライアントの申告値とサーバー側の値を突き合わせる。
// サーバー側の値が常に正であり、差分の有無のみをchangedで通知する。
// treeStatesの比較は順序を無視した集合比較で行う。
func (s *Service) Sync(ctx context.Context, id string, clientScore int, clientTrees []int) (*SyncResult, error) {
	if id == "" {
		return nil, model.NewInvalidInputError("id parameter is required")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	changed := clientScore != user.Blinkscore || !treeSetsEqual(clientTrees, user.TreeStates)

	return &SyncResult{
		Changed:    changed,
		Blinkscore: user.Blinkscore,
		TreeStates: user.TreeStates,
	}, nil
}

// ResetTrees は指定ユーザーのtreeStatesをクリアする。
func (s *Service) ResetTrees(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, model.NewInvalidInputError("id parameter is required")
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	user.TreeStates = []int{}
	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ResetAll は全ユーザーと全エクスポートトークンを削除する。
// 開発・テスト用の管理操作であり、本番公開は想定しない。
func (s *Service) ResetAll(ctx context.Context) error {
	if err := s.users.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to delete users: %w", err)
	}
	if s.tokens != nil {
		if err := s.tokens.DeleteAll(ctx); err != nil {
			return fmt.Errorf("failed to delete tokens: %w", err)
		}
	}

	slog.Info("all records reset")
	return nil
}

// normalizeTreeStates はスロット番号の範囲検証と重複排除を行い、昇順で返す。
// 範囲は [0, gridSlots)。同一スロットは高々1回しか植えられない。
func (s *Service) normalizeTreeStates(trees []int) ([]int, error) {
	seen := make(map[int]bool, len(trees))
	normalized := make([]int, 0, len(trees))
	for _, slot := range trees {
		if slot < 0 || slot >= s.gridSlots {
			return nil, model.NewInvalidInputError(fmt.Sprintf("tree slot %d out of range [0, %d)", slot, s.gridSlots))
		}
		if seen[slot] {
			continue
		}
		seen[slot] = true
		normalized = append(normalized, slot)
	}
	sort.Ints(normalized)
	return normalized, nil
}

// treeSetsEqual は2つのスロット集合を順序を無視して比較する。
func treeSetsEqual(a, b []int) bool {
	setA := make(map[int]bool, len(a))
	for _, v := range a {
		setA[v] = true
	}
	setB := make(map[int]bool, len(b))
	for _, v := range b {
		setB[v] = true
	}
	if len(setA) != len(setB) {
		return false
	}
	for v := range setA {
		if !setB[v] {
			return false
		}
	}
	return true
}
