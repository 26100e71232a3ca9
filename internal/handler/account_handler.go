package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blinkd/internal/account"
	"github.com/hitoshi/blinkd/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// Register は新規ユーザーを登録する。
	Register(ctx context.Context, username string) (*model.User, error)
	// ListUsers は全ユーザーを返す。
	ListUsers(ctx context.Context) ([]*model.User, error)
	// Blink はblinkscoreを1加算し、指定があればtreeStatesを上書きする。
	Blink(ctx context.Context, id string, trees []int, hasTrees bool) (*model.User, error)
	// Sync はクライアント申告値とサーバー値を突き合わせる。
	Sync(ctx context.Context, id string, clientScore int, clientTrees []int) (*account.SyncResult, error)
	// ResetTrees は指定ユーザーのtreeStatesをクリアする。
	ResetTrees(ctx context.Context, id string) (*model.User, error)
	// ResetAll は全ユーザーと全トークンを削除する。
	ResetAll(ctx context.Context) error
}

// AccountHandler はアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// registerResponse は登録応答。
type registerResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Blinkscore int    `json:"blinkscore"`
}

// userResponse はユーザーレコードの応答。
type userResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Blinkscore int    `json:"blinkscore"`
	TreeStates []int  `json:"treeStates"`
}

// allResponse は全ユーザー一覧の応答。
type allResponse struct {
	Users      []registerResponse `json:"users"`
	TotalUsers int                `json:"total_users"`
}

// syncResponse は同期応答。サーバー側の値が常に含まれる。
type syncResponse struct {
	Changed    bool  `json:"changed"`
	Blinkscore int   `json:"blinkscore"`
	TreeStates []int `json:"treeStates"`
}

// resetResponse は全体リセットの応答。
type resetResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Register は新規ユーザー登録を処理する。
// GET|POST /register?username=
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		if body := decodeBody(r); body != nil {
			username = body.Username
		}
	}

	user, err := h.service.Register(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, registerResponse{
		ID:         user.ID,
		Username:   user.Username,
		Blinkscore: user.Blinkscore,
	})
}

// All は全ユーザー一覧を返す。
// GET /all
func (h *AccountHandler) All(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := allResponse{
		Users:      make([]registerResponse, len(users)),
		TotalUsers: len(users),
	}
	for i, u := range users {
		resp.Users[i] = registerResponse{
			ID:         u.ID,
			Username:   u.Username,
			Blinkscore: u.Blinkscore,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Blink はブリンクイベントを処理する。
// GET|POST /blink?id=&treestates=
func (h *AccountHandler) Blink(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")

	var trees []int
	raw, hasTrees := treeStatesParam(r)
	if hasTrees {
		parsed, err := parseTreeStates(raw)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		trees = parsed
	}

	if body := decodeBody(r); body != nil {
		if id == "" {
			id = body.ID
		}
		if !hasTrees && body.TreeStates != nil {
			trees = *body.TreeStates
			hasTrees = true
		}
	}

	user, err := h.service.Blink(r.Context(), id, trees, hasTrees)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:         user.ID,
		Username:   user.Username,
		Blinkscore: user.Blinkscore,
		TreeStates: user.TreeStates,
	})
}

// Sync は同期要求を処理する。
// GET|POST /sync?id=&blinkscore=&treestates=
func (h *AccountHandler) Sync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")

	scoreRaw := q.Get("blinkscore")
	if scoreRaw == "" {
		scoreRaw = q.Get("currentBlinkscore")
	}

	var trees []int
	raw, hasTrees := treeStatesParam(r)
	if hasTrees {
		parsed, err := parseTreeStates(raw)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		trees = parsed
	}

	var score int
	var hasScore bool
	if scoreRaw != "" {
		parsed, err := strconv.Atoi(scoreRaw)
		if err != nil {
			handleServiceError(w, model.NewInvalidInputError("blinkscore must be an integer"))
			return
		}
		score = parsed
		hasScore = true
	}

	if body := decodeBody(r); body != nil {
		if id == "" {
			id = body.ID
		}
		if !hasScore {
			if body.CurrentBlinkscore != nil {
				score = *body.CurrentBlinkscore
				hasScore = true
			} else if body.Blinkscore != nil {
				score = *body.Blinkscore
				hasScore = true
			}
		}
		if !hasTrees {
			if body.CurrentTreeStates != nil {
				trees = *body.CurrentTreeStates
			} else if body.TreeStates != nil {
				trees = *body.TreeStates
			}
		}
	}

	// クライアント申告スコアは必須入力。欠けていても0との比較に縮退させない
	if !hasScore {
		handleServiceError(w, model.NewInvalidInputError("blinkscore parameter is required"))
		return
	}

	result, err := h.service.Sync(r.Context(), id, score, trees)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Changed:    result.Changed,
		Blinkscore: result.Blinkscore,
		TreeStates: result.TreeStates,
	})
}

// ResetTrees は指定ユーザーのtreeStatesをクリアする。
// GET|POST /resettrees/{id}
func (h *AccountHandler) ResetTrees(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.service.ResetTrees(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:         user.ID,
		Username:   user.Username,
		Blinkscore: user.Blinkscore,
		TreeStates: user.TreeStates,
	})
}

// Reset は全レコードを削除する管理操作。
// GET|POST /reset
func (h *AccountHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetAll(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resetResponse{
		Message:   "all records deleted",
		Timestamp: time.Now().UTC(),
	})
}
