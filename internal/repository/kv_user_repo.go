package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/blinkd/internal/model"
	"github.com/hitoshi/blinkd/internal/store"
)

// KVUserRepo はキーバリューストアを使用したユーザーリポジトリ。
type KVUserRepo struct {
	store   store.Store
	timeout time.Duration
}

// NewKVUserRepo はKVUserRepoを生成する。
// timeoutは個々のストア呼び出しに適用される上限時間。
func NewKVUserRepo(s store.Store, timeout time.Duration) *KVUserRepo {
	return &KVUserRepo{store: s, timeout: timeout}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *KVUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	data, err := r.store.Get(ctx, userKeyPrefix+id)
	if err != nil {
		return nil, mapStoreError(fmt.Errorf("failed to find user by ID: %w", err))
	}
	if data == nil {
		return nil, nil
	}

	user := &model.User{}
	if err := decodeRecord(data, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FindByUsername はユーザー名でユーザーを検索する（大文字小文字を区別しない）。
// 全ユーザーの線形走査で実装される。小規模利用前提の既知のショートカット。
func (r *KVUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, nil
}

// Create はユーザーを新規作成する。
// 先にユーザー名インデックスキーをSetNXで獲得することで、同時登録の競合を
// ストアのサポートする範囲で直列化する。獲得に失敗した場合はUSERNAME_TAKENを返す。
func (r *KVUserRepo) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	claimed, err := r.store.SetNX(ctx, usernameKeyPrefix+strings.ToLower(user.Username), []byte(user.ID))
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to claim username index: %w", err))
	}
	if !claimed {
		return model.NewUsernameTakenError(user.Username)
	}

	data, err := encodeRecord(user)
	if err != nil {
		r.releaseUsernameIndex(ctx, user.Username)
		return err
	}
	if err := r.store.Set(ctx, userKeyPrefix+user.ID, data); err != nil {
		// インデックスだけ残るとこのユーザー名は二度と登録できなくなるため、
		// 獲得済みのインデックスキーを解放してから返す
		r.releaseUsernameIndex(ctx, user.Username)
		return mapStoreError(fmt.Errorf("failed to insert user: %w", err))
	}
	return nil
}

// releaseUsernameIndex はCreate失敗時に獲得済みのユーザー名インデックスを解放する。
// 元のコンテキストはタイムアウト済みの可能性があるため、新しい上限時間で実行する。
// ベストエフォートであり、失敗はログに残すのみでCreateのエラーを上書きしない。
func (r *KVUserRepo) releaseUsernameIndex(ctx context.Context, username string) {
	ctx, cancel := boundedCtx(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.store.Delete(ctx, usernameKeyPrefix+strings.ToLower(username)); err != nil {
		slog.Error("failed to release username index",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
	}
}

// Update は既存ユーザーを上書き保存する。
func (r *KVUserRepo) Update(ctx context.Context, user *model.User) error {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	data, err := encodeRecord(user)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, userKeyPrefix+user.ID, data); err != nil {
		return mapStoreError(fmt.Errorf("failed to update user: %w", err))
	}
	return nil
}

// List は全ユーザーを返す。
func (r *KVUserRepo) List(ctx context.Context) ([]*model.User, error) {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	keys, err := r.store.List(ctx, userKeyPrefix)
	if err != nil {
		return nil, mapStoreError(fmt.Errorf("failed to list users: %w", err))
	}

	users := make([]*model.User, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, mapStoreError(fmt.Errorf("failed to get user %q: %w", key, err))
		}
		if data == nil {
			// 走査中に削除されたキーはスキップする
			continue
		}
		user := &model.User{}
		if err := decodeRecord(data, user); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// DeleteAll は全ユーザーレコードとユーザー名インデックスを削除する。
func (r *KVUserRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	for _, prefix := range []string{userKeyPrefix, usernameKeyPrefix} {
		keys, err := r.store.List(ctx, prefix)
		if err != nil {
			return mapStoreError(fmt.Errorf("failed to list keys %q: %w", prefix, err))
		}
		for _, key := range keys {
			if err := r.store.Delete(ctx, key); err != nil {
				return mapStoreError(fmt.Errorf("failed to delete key %q: %w", key, err))
			}
		}
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*KVUserRepo)(nil)
