// Package store はキーバリューストアの抽象と各バックエンド実装を提供する。
//
// すべての実装は同一の契約に従う:
//   - Get は存在しないキーに対して (nil, nil) を返す。
//   - Set は上書きを許可する。
//   - SetNX はキーが未使用の場合のみ書き込み、獲得できたかどうかを返す。
//   - List はプレフィックスに一致するキー一覧を返す。
//
// 値はJSONバイト列として扱い、スキーマの解釈は呼び出し側に委ねる。
package store

import "context"

// Store はキーバリューストアの契約。
type Store interface {
	// Get は指定キーの値を取得する。見つからない場合は (nil, nil) を返す。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set は指定キーに値を書き込む。既存の値は上書きされる。
	Set(ctx context.Context, key string, value []byte) error

	// SetNX はキーが存在しない場合のみ値を書き込む。
	// 書き込めた場合はtrueを返す。ユーザー名インデックスの競合ガードに使用する。
	SetNX(ctx context.Context, key string, value []byte) (bool, error)

	// Delete は指定キーを削除する。存在しないキーの削除はエラーにならない。
	Delete(ctx context.Context, key string) error

	// List はプレフィックスに一致する全キーを返す。
	List(ctx context.Context, prefix string) ([]string, error)
}
