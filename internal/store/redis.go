package store

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Redis はgo-redisクライアントを使用したストア実装。
// TTLは使用しない。トークンの期限判定はレコード内のexpiresAtで行うため、
// ストア側の自動失効に依存しない（スイーパーと読み取り時チェックで purge する）。
type Redis struct {
	client *goredis.Client
}

// NewRedis は指定クライアントを使用するRedisストアを生成する。
func NewRedis(client *goredis.Client) *Redis {
	return &Redis{client: client}
}

// Get は指定キーの値を取得する。見つからない場合は (nil, nil) を返す。
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return data, nil
}

// Set は指定キーに値を書き込む。
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// SetNX はキーが存在しない場合のみ値を書き込む。
func (r *Redis) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %q: %w", key, err)
	}
	return ok, nil
}

// Delete は指定キーを削除する。
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// List はプレフィックスに一致する全キーをSCANで収集して返す。
func (r *Redis) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %q: %w", prefix, err)
	}
	return keys, nil
}

// compile-time interface check
var _ Store = (*Redis)(nil)
