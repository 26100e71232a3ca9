package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/blinkd/internal/model"
)

// キープレフィックス
const (
	userKeyPrefix     = "user:"
	usernameKeyPrefix = "username:"
	tokenKeyPrefix    = "token:"
)

// decodeRecord はストアから取得したJSONバイト列をvにデコードする。
// 一部のマネージドKVストアは値を {"value": <record>} のエンベロープで包んで返すため、
// エンベロープ形式と裸のレコードの両方を受け付けて正規化する。
func decodeRecord(data []byte, v any) error {
	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Value) > 0 {
		data = envelope.Value
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// encodeRecord はレコードをJSONバイト列にエンコードする。
func encodeRecord(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// boundedCtx はストア呼び出しに共通タイムアウトを適用したコンテキストを返す。
// 呼び出し元のコンテキストが先に期限を迎える場合はそちらが優先される。
func boundedCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// mapStoreError はストア起因のエラーをAPIエラーに変換する。
// タイムアウト・接続断はSTORE_UNAVAILABLEとして呼び出し元に伝わり、
// 接続をハングさせることなく即座にエラー応答できる。
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewStoreUnavailableError()
	}
	return err
}
