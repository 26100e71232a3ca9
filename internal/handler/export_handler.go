package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/blinkd/internal/export"
)

// ExportServiceInterface はエクスポートハンドラーが必要とするサービスインターフェース。
type ExportServiceInterface interface {
	// Issue は指定ユーザーの新しいエクスポートトークンを発行する。
	Issue(ctx context.Context, username string) (*export.IssueResult, error)
	// Validate は指定トークンを検証する。
	Validate(ctx context.Context, token string) (*export.ValidateResult, error)
}

// ExportHandler はアカウント引き継ぎのHTTPハンドラー。
type ExportHandler struct {
	service ExportServiceInterface
}

// NewExportHandler はExportHandlerを生成する。
func NewExportHandler(service ExportServiceInterface) *ExportHandler {
	return &ExportHandler{service: service}
}

// exportResponse はエクスポート応答。
// QRレンダリングが失敗した場合、qr_codeは省略されテキストURLのみが返る。
type exportResponse struct {
	Username  string `json:"username"`
	ID        string `json:"id"`
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
	ImportURL string `json:"import_url"`
	QRCode    string `json:"qr_code,omitempty"`
}

// importResponse はインポート検証応答。
type importResponse struct {
	Valid         bool             `json:"valid"`
	User          registerResponse `json:"user"`
	ExpiresAt     time.Time        `json:"expires_at"`
	TimeRemaining int              `json:"time_remaining"`
}

// importCheckResponse はユーザー情報を含まない軽量な検証応答。
type importCheckResponse struct {
	Valid         bool      `json:"valid"`
	ExpiresAt     time.Time `json:"expires_at"`
	TimeRemaining int       `json:"time_remaining"`
}

// Export はエクスポートトークン発行を処理する。
// GET|POST /export?username=
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		if body := decodeBody(r); body != nil {
			username = body.Username
		}
	}

	result, err := h.service.Issue(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, exportResponse{
		Username:  result.User.Username,
		ID:        result.User.ID,
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
		ImportURL: result.ImportURL,
		QRCode:    result.QRCode,
	})
}

// Import はトークンによるアカウント取り込みを処理する。
// GET /import?token=
func (h *ExportHandler) Import(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Validate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		Valid: true,
		User: registerResponse{
			ID:         result.User.ID,
			Username:   result.User.Username,
			Blinkscore: result.User.Blinkscore,
		},
		ExpiresAt:     result.ExpiresAt,
		TimeRemaining: result.TimeRemaining,
	})
}

// ImportCheck はトークンの有効性のみを確認する。
// GET /importcheck?token=
func (h *ExportHandler) ImportCheck(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Validate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, importCheckResponse{
		Valid:         true,
		ExpiresAt:     result.ExpiresAt,
		TimeRemaining: result.TimeRemaining,
	})
}
