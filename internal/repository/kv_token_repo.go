package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/blinkd/internal/model"
	"github.com/hitoshi/blinkd/internal/store"
)

// KVTokenRepo はキーバリューストアを使用したエクスポートトークンリポジトリ。
type KVTokenRepo struct {
	store   store.Store
	timeout time.Duration
}

// NewKVTokenRepo はKVTokenRepoを生成する。
func NewKVTokenRepo(s store.Store, timeout time.Duration) *KVTokenRepo {
	return &KVTokenRepo{store: s, timeout: timeout}
}

// Create はトークンレコードを作成する。
func (r *KVTokenRepo) Create(ctx context.Context, token *model.ExportToken) error {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	data, err := encodeRecord(token)
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, tokenKeyPrefix+token.Token, data); err != nil {
		return mapStoreError(fmt.Errorf("failed to insert token: %w", err))
	}
	return nil
}

// FindByToken は指定トークンのレコードを取得する。見つからない場合はnilを返す。
func (r *KVTokenRepo) FindByToken(ctx context.Context, token string) (*model.ExportToken, error) {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	data, err := r.store.Get(ctx, tokenKeyPrefix+token)
	if err != nil {
		return nil, mapStoreError(fmt.Errorf("failed to find token: %w", err))
	}
	if data == nil {
		return nil, nil
	}

	record := &model.ExportToken{}
	if err := decodeRecord(data, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Delete は指定トークンのレコードを削除する。
func (r *KVTokenRepo) Delete(ctx context.Context, token string) error {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	if err := r.store.Delete(ctx, tokenKeyPrefix+token); err != nil {
		return mapStoreError(fmt.Errorf("failed to delete token: %w", err))
	}
	return nil
}

// List は全トークンレコードを返す。
func (r *KVTokenRepo) List(ctx context.Context) ([]*model.ExportToken, error) {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	keys, err := r.store.List(ctx, tokenKeyPrefix)
	if err != nil {
		return nil, mapStoreError(fmt.Errorf("failed to list tokens: %w", err))
	}

	tokens := make([]*model.ExportToken, 0, len(keys))
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, mapStoreError(fmt.Errorf("failed to get token %q: %w", key, err))
		}
		if data == nil {
			continue
		}
		record := &model.ExportToken{}
		if err := decodeRecord(data, record); err != nil {
			return nil, err
		}
		tokens = append(tokens, record)
	}
	return tokens, nil
}

// DeleteAll は全トークンレコードを削除する。
func (r *KVTokenRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := boundedCtx(ctx, r.timeout)
	defer cancel()

	keys, err := r.store.List(ctx, tokenKeyPrefix)
	if err != nil {
		return mapStoreError(fmt.Errorf("failed to list tokens: %w", err))
	}
	for _, key := range keys {
		if err := r.store.Delete(ctx, key); err != nil {
			return mapStoreError(fmt.Errorf("failed to delete token %q: %w", key, err))
		}
	}
	return nil
}

// compile-time interface check
var _ TokenRepository = (*KVTokenRepo)(nil)
