// Package security はアプリケーションのセキュリティ機能を提供する。
//
// UsernameSanitizerService は登録時のユーザー名入力をサニタイズし、
// HTMLタグや制御文字の混入からフロントエンドを保護する。
// ユーザー名はそのままJSON応答に載るため、保存前に必ず通すこと。
package security

import (
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// UsernameSanitizerService はユーザー名サニタイズのインターフェースを定義する。
type UsernameSanitizerService interface {
	// Sanitize はユーザー名からHTMLタグ・制御文字を除去し、前後の空白を落として返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// usernameSanitizer はUsernameSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに処理を行う。
type usernameSanitizer struct {
	policy *bluemonday.Policy
}

// NewUsernameSanitizer はUsernameSanitizerServiceの新しいインスタンスを生成する。
func NewUsernameSanitizer() *usernameSanitizer {
	return &usernameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はユーザー名からHTMLタグと制御文字を除去する。
func (s *usernameSanitizer) Sanitize(raw string) string {
	cleaned := s.policy.Sanitize(raw)
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	return strings.TrimSpace(cleaned)
}
