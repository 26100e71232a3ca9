// Package model はドメインモデルを定義する。
package model

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// User はサービス利用ユーザーを表す。
// usernameは登録時に一度だけ設定され、以降変更されない。
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Blinkscore  int       `json:"blinkscore"`
	TreeStates  []int     `json:"treeStates"`
	ExportToken string    `json:"exportToken"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ExportToken はアカウント引き継ぎ用の短命トークンを表す。
// 有効期限は発行時に固定され、更新されることはない。
type ExportToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid は指定時刻においてトークンが有効かどうかを返す。
func (t *ExportToken) Valid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}

// NewID は128ビットの乱数から32文字の16進IDを生成する。
// ユーザーIDとエクスポートトークンの両方で使用する。
func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
