// Package repository はキーバリューストア上のデータ永続化を提供する。
//
// キー設計:
//   - "user:<id>"            ユーザーレコード（JSON）
//   - "username:<lower名>"   ユーザー名インデックス（値はユーザーID）
//   - "token:<token>"        エクスポートトークンレコード（JSON）
package repository

import (
	"context"

	"github.com/hitoshi/blinkd/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する（大文字小文字を区別しない）。
	// 見つからない場合はnilを返す。全ユーザーの線形走査で実装される。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを新規作成する。ユーザー名インデックスの獲得に失敗した場合は
	// USERNAME_TAKENエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// Update は既存ユーザーを上書き保存する。
	Update(ctx context.Context, user *model.User) error

	// List は全ユーザーを返す。
	List(ctx context.Context) ([]*model.User, error)

	// DeleteAll は全ユーザーレコードとユーザー名インデックスを削除する。
	DeleteAll(ctx context.Context) error
}

// TokenRepository はエクスポートトークンの永続化インターフェース。
type TokenRepository interface {
	// Create はトークンレコードを作成する。
	Create(ctx context.Context, token *model.ExportToken) error

	// FindByToken は指定トークンのレコードを取得する。見つからない場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.ExportToken, error)

	// Delete は指定トークンのレコードを削除する。
	Delete(ctx context.Context, token string) error

	// List は全トークンレコードを返す。スイーパーの走査に使用する。
	List(ctx context.Context) ([]*model.ExportToken, error)

	// DeleteAll は全トークンレコードを削除する。
	DeleteAll(ctx context.Context) error
}
