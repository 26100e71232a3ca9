package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// コードはHTTPステータスへのマッピングとクライアント側の分岐に使用する。
type APIError struct {
	Code    string // エラーコード
	Message string // エラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeUsernameTaken    = "USERNAME_TAKEN"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeTokenNotFound    = "TOKEN_NOT_FOUND"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
)

// NewInvalidInputError は必須パラメータ不足・不正値エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("invalid input: %s", reason),
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
// 大文字小文字を区別しない比較で衝突した場合に返す。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:    ErrCodeUsernameTaken,
		Message: fmt.Sprintf("username already exists: %s", username),
	}
}

// NewUserNotFoundError はユーザー未検出エラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeUserNotFound,
		Message: "user not found",
	}
}

// NewTokenNotFoundError はエクスポートトークン未検出エラーを生成する。
func NewTokenNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeTokenNotFound,
		Message: "export token not found",
	}
}

// NewTokenExpiredError はエクスポートトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:    ErrCodeTokenExpired,
		Message: "export token has expired",
	}
}

// NewStoreUnavailableError はストア接続失敗・タイムアウトエラーを生成する。
func NewStoreUnavailableError() *APIError {
	return &APIError{
		Code:    ErrCodeStoreUnavailable,
		Message: "key-value store is unavailable",
	}
}
