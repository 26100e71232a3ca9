package store

import (
	"context"
	"strings"
	"sync"
)

// Memory はインメモリのストア実装。
// 開発・テスト用途を想定し、プロセス終了でデータは失われる。
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory は空のMemoryストアを生成する。
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get は指定キーの値を取得する。見つからない場合は (nil, nil) を返す。
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	// 呼び出し側の変更から保護するためコピーを返す
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set は指定キーに値を書き込む。
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

// SetNX はキーが存在しない場合のみ値を書き込む。
func (m *Memory) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.data[key]; exists {
		return false, nil
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return true, nil
}

// Delete は指定キーを削除する。
func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// List はプレフィックスに一致する全キーを返す。
func (m *Memory) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// compile-time interface check
var _ Store = (*Memory)(nil)
