package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/blinkd/internal/model"
	"github.com/hitoshi/blinkd/internal/repository"
	"github.com/hitoshi/blinkd/internal/store"
)

// mockQREncoder は差し替え可能なEncode実装を持つQREncoderモック。
type mockQREncoder struct {
	encodeFunc func(url string) (string, error)
}

func (m *mockQREncoder) Encode(url string) (string, error) {
	if m.encodeFunc != nil {
		return m.encodeFunc(url)
	}
	return "fake-qr-png", nil
}

type tokenMetrics struct {
	issued  int
	expired int
}

func (m *tokenMetrics) RecordTokenIssued()  { m.issued++ }
func (m *tokenMetrics) RecordTokenExpired() { m.expired++ }

type testEnv struct {
	svc    *Service
	users  repository.UserRepository
	tokens repository.TokenRepository
	m      *tokenMetrics
}

func newTestEnv(qr QREncoder) *testEnv {
	kv := store.NewMemory()
	users := repository.NewKVUserRepo(kv, time.Second)
	tokens := repository.NewKVTokenRepo(kv, time.Second)
	m := &tokenMetrics{}
	svc := NewService(users, tokens, qr, m, "https://blink.example.com", 180*time.Second)
	return &testEnv{svc: svc, users: users, tokens: tokens, m: m}
}

func seedUser(t *testing.T, env *testEnv, username string) *model.User {
	t.Helper()
	now := time.Now()
	user := &model.User{
		ID:         model.NewID(),
		Username:   username,
		TreeStates: []int{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

func TestService_Issue_Success(t *testing.T) {
	env := newTestEnv(&mockQREncoder{})
	user := seedUser(t, env, "alice")

	result, err := env.svc.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if len(result.Token) != 32 {
		t.Errorf("len(token) = %d, want 32 hex chars", len(result.Token))
	}
	if result.ExpiresIn != 180 {
		t.Errorf("expiresIn = %d, want 180", result.ExpiresIn)
	}
	wantURL := "https://blink.example.com/import?token=" + result.Token
	if result.ImportURL != wantURL {
		t.Errorf("importURL = %q, want %q", result.ImportURL, wantURL)
	}
	if result.QRCode != "fake-qr-png" {
		t.Errorf("qrCode = %q, want mock output", result.QRCode)
	}
	if env.m.issued != 1 {
		t.Errorf("issued metric = %d, want 1", env.m.issued)
	}

	// ユーザーレコードにバックリンクが張られること
	updated, _ := env.users.FindByID(context.Background(), user.ID)
	if updated.ExportToken != result.Token {
		t.Errorf("user.exportToken = %q, want %q", updated.ExportToken, result.Token)
	}
}

func TestService_Issue_UnknownUser(t *testing.T) {
	env := newTestEnv(&mockQREncoder{})

	_, err := env.svc.Issue(context.Background(), "nobody")
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}

func TestService_Issue_QRFailureDegradesToTextOnly(t *testing.T) {
	qr := &mockQREncoder{encodeFunc: func(string) (string, error) {
		return "", errors.New("render failed")
	}}
	env := newTestEnv(qr)
	seedUser(t, env, "alice")

	result, err := env.svc.Issue(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if result.QRCode != "" {
		t.Errorf("qrCode = %q, want empty on render failure", result.QRCode)
	}
	if !strings.Contains(result.ImportURL, result.Token) {
		t.Errorf("importURL %q missing token", result.ImportURL)
	}
}

func TestService_Issue_ReissueTracksLatestToken(t *testing.T) {
	env := newTestEnv(&mockQREncoder{})
	user := seedUser(t, env, "alice")
	ctx := context.Background()

	first, _ := env.svc.Issue(ctx, "alice")
	second, _ := env.svc.Issue(ctx, "alice")

	updated, _ := env.users.FindByID(ctx, user.ID)
	if updated.ExportToken != second.Token {
		t.Errorf("user.exportToken = %q, want latest %q", updated.ExportToken, second.Token)
	}

	// 古いトークンも自身の期限までは独立して有効
	if _, err := env.svc.Validate(ctx, first.Token); err != nil {
		t.Errorf("Validate(first) returned error: %v", err)
	}
}

func TestService_Validate_Success(t *testing.T) {
	env := newTestEnv(&mockQREncoder{})
	user := seedUser(t, env, "alice")
	ctx := context.Background()

	issued, _ := env.svc.Issue(ctx, "alice")

	result, err := env.svc.Validate(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.User.ID != user.ID {
		t.Errorf("user.id = %q, want %q", result.User.ID, user.ID)
	}
	if result.TimeRemaining <= 0 || result.TimeRemaining > 180 {
		t.Errorf("timeRemaining = %d, want (0, 180]", result.TimeRemaining)
	}

	// 消費型ではないので再検証も成功する
	if _, err := env.svc.Validate(ctx, issued.Token); err != nil {
		t.Errorf("second Validate returned error: %v", err)
	}
}

func TestService_Validate_UnknownToken(t *testing.T) {
	env := newTestEnv(&mockQREncoder{})

	_, err := env.svc.Validate(context.Background(), "deadbeef")
	assertAPIErrorCode(t, err, model.ErrCodeTokenNotFound)
}

func TestService_Validate_ExpiredToken(t *testing.T) {
	env := newTestEnv(&mockQREncoder{})
	user := seedUser(t, env, "alice")
	ctx := context.Background()

	base := time.Now()
	env.svc.now = func() time.Time { return base }
	issued, _ := env.svc.Issue(ctx, "alice")

	// TTL境界の1秒後に時計を進める
	env.svc.now = func() time.Time { return base.Add(181 * time.Second) }

	_, err := env.svc.Validate(ctx, issued.Token)
	assertAPIErrorCode(t, err, model.ErrCodeTokenExpired)

	// 遅延削除によりレコードは消え、以後はNOT_FOUNDとなる
	_, err = env.svc.Validate(ctx, issued.Token)
	assertAPIErrorCode(t, err, model.ErrCodeTokenNotFound)

	// バックリンクも解除されること
	updated, _ := env.users.FindByID(ctx, user.ID)
	if updated.ExportToken != "" {
		t.Errorf("user.exportToken = %q, want cleared", updated.ExportToken)
	}
	if env.m.expired != 1 {
		t.Errorf("expired metric = %d, want 1", env.m.expired)
	}
}

func TestService_Validate_ExpiryBoundary(t *testing.T) {
	env := newTestEnv(&mockQREncoder{})
	seedUser(t, env, "alice")
	ctx := context.Background()

	base := time.Now()
	env.svc.now = func() time.Time { return base }
	issued, _ := env.svc.Issue(ctx, "alice")

	// expiresAtの直前までは有効
	env.svc.now = func() time.Time { return base.Add(180*time.Second - time.Nanosecond) }
	if _, err := env.svc.Validate(ctx, issued.Token); err != nil {
		t.Errorf("Validate just before expiry returned error: %v", err)
	}

	// expiresAtちょうどで既に無効
	env.svc.now = func() time.Time { return base.Add(180 * time.Second) }
	_, err := env.svc.Validate(ctx, issued.Token)
	assertAPIErrorCode(t, err, model.ErrCodeTokenExpired)
}

func TestService_Validate_ExpiredToken_KeepsNewerBacklink(t *testing.T) {
	env := newTestEnv(&mockQREncoder{})
	user := seedUser(t, env, "alice")
	ctx := context.Background()

	base := time.Now()
	env.svc.now = func() time.Time { return base }
	first, _ := env.svc.Issue(ctx, "alice")

	// 古いトークンだけ期限切れになるよう再発行を遅らせる
	env.svc.now = func() time.Time { return base.Add(120 * time.Second) }
	second, _ := env.svc.Issue(ctx, "alice")

	env.svc.now = func() time.Time { return base.Add(181 * time.Second) }
	_, err := env.svc.Validate(ctx, first.Token)
	assertAPIErrorCode(t, err, model.ErrCodeTokenExpired)

	// 新しいトークンのバックリンクは温存される
	updated, _ := env.users.FindByID(ctx, user.ID)
	if updated.ExportToken != second.Token {
		t.Errorf("user.exportToken = %q, want %q preserved", updated.ExportToken, second.Token)
	}
}

func TestService_Validate_DanglingToken(t *testing.T) {
	env := newTestEnv(&mockQREncoder{})
	seedUser(t, env, "alice")
	ctx := context.Background()

	issued, _ := env.svc.Issue(ctx, "alice")

	// 所有ユーザーだけ消す
	if err := env.users.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll returned error: %v", err)
	}

	_, err := env.svc.Validate(ctx, issued.Token)
	assertAPIErrorCode(t, err, model.ErrCodeUserNotFound)
}
