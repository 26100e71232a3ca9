package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/blinkd/internal/model"
)

// mutateBody はPOST変種で受け付けるJSONボディ。
// 歴史的経緯によりすべての変更系操作はGET+クエリパラメータでも動作し、
// ボディはクエリパラメータが欠けている場合にのみ参照される。
type mutateBody struct {
	Username          string `json:"username"`
	ID                string `json:"id"`
	Blinkscore        *int   `json:"blinkscore"`
	CurrentBlinkscore *int   `json:"currentBlinkscore"`
	TreeStates        *[]int `json:"treeStates"`
	CurrentTreeStates *[]int `json:"currentTreeStates"`
}

// decodeBody はPOSTのJSONボディをデコードする。
// GETリクエストやJSON以外のボディに対してはnilを返す。
func decodeBody(r *http.Request) *mutateBody {
	if r.Method != http.MethodPost || r.Body == nil {
		return nil
	}
	if !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return nil
	}
	var body mutateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil
	}
	return &body
}

// parseTreeStates はカンマ区切りのスロット番号リストをパースする。
// 空文字列は空のスロット集合としてパースされる。
func parseTreeStates(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	// "[1,2,3]" 形式も受け付ける
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return []int{}, nil
	}

	parts := strings.Split(raw, ",")
	trees := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		slot, err := strconv.Atoi(part)
		if err != nil {
			return nil, model.NewInvalidInputError("treestates must be a comma-separated list of integers")
		}
		trees = append(trees, slot)
	}
	return trees, nil
}

// treeStatesParam はクエリからtreeStatesパラメータを取り出す。
// 第2戻り値はパラメータが明示的に与えられたかどうかを表す。
func treeStatesParam(r *http.Request) (string, bool) {
	q := r.URL.Query()
	for _, name := range []string{"treestates", "treeStates", "currentTreeStates"} {
		if vals, ok := q[name]; ok && len(vals) > 0 {
			return vals[0], true
		}
	}
	return "", false
}
