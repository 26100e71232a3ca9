package sweep

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/blinkd/internal/model"
	"github.com/hitoshi/blinkd/internal/repository"
	"github.com/hitoshi/blinkd/internal/store"
)

type sweepMetrics struct {
	expired int
}

func (m *sweepMetrics) RecordTokenExpired() { m.expired++ }

type sweepEnv struct {
	sweeper *Sweeper
	users   repository.UserRepository
	tokens  repository.TokenRepository
	m       *sweepMetrics
}

func newSweepEnv() *sweepEnv {
	kv := store.NewMemory()
	users := repository.NewKVUserRepo(kv, time.Second)
	tokens := repository.NewKVTokenRepo(kv, time.Second)
	m := &sweepMetrics{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return &sweepEnv{
		sweeper: NewSweeper(tokens, users, logger, m),
		users:   users,
		tokens:  tokens,
		m:       m,
	}
}

func seedToken(t *testing.T, env *sweepEnv, userID string, expiresAt time.Time) *model.ExportToken {
	t.Helper()
	record := &model.ExportToken{
		Token:     model.NewID(),
		UserID:    userID,
		CreatedAt: expiresAt.Add(-180 * time.Second),
		ExpiresAt: expiresAt,
	}
	if err := env.tokens.Create(context.Background(), record); err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}
	return record
}

func seedOwner(t *testing.T, env *sweepEnv, token string) *model.User {
	t.Helper()
	user := &model.User{
		ID:          model.NewID(),
		Username:    "alice",
		TreeStates:  []int{},
		ExportToken: token,
	}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func TestSweeper_Run_PurgesExpiredOnly(t *testing.T) {
	env := newSweepEnv()
	ctx := context.Background()
	now := time.Now()
	env.sweeper.now = func() time.Time { return now }

	expired := seedToken(t, env, "u1", now.Add(-time.Second))
	live := seedToken(t, env, "u2", now.Add(time.Minute))

	if err := env.sweeper.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if got, _ := env.tokens.FindByToken(ctx, expired.Token); got != nil {
		t.Error("expired token still present after sweep")
	}
	if got, _ := env.tokens.FindByToken(ctx, live.Token); got == nil {
		t.Error("live token was purged")
	}
	if env.m.expired != 1 {
		t.Errorf("expired metric = %d, want 1", env.m.expired)
	}
}

func TestSweeper_Run_ClearsMatchingBacklink(t *testing.T) {
	env := newSweepEnv()
	ctx := context.Background()
	now := time.Now()
	env.sweeper.now = func() time.Time { return now }

	user := seedOwner(t, env, "")
	record := seedToken(t, env, user.ID, now.Add(-time.Second))
	user.ExportToken = record.Token
	if err := env.users.Update(ctx, user); err != nil {
		t.Fatalf("failed to set backlink: %v", err)
	}

	if err := env.sweeper.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	updated, _ := env.users.FindByID(ctx, user.ID)
	if updated.ExportToken != "" {
		t.Errorf("user.exportToken = %q, want cleared", updated.ExportToken)
	}
}

func TestSweeper_Run_PreservesNewerBacklink(t *testing.T) {
	env := newSweepEnv()
	ctx := context.Background()
	now := time.Now()
	env.sweeper.now = func() time.Time { return now }

	// ユーザーのバックリンクはすでに新しいトークンを指している
	user := seedOwner(t, env, "")
	newer := seedToken(t, env, user.ID, now.Add(time.Minute))
	seedToken(t, env, user.ID, now.Add(-time.Second))
	user.ExportToken = newer.Token
	if err := env.users.Update(ctx, user); err != nil {
		t.Fatalf("failed to set backlink: %v", err)
	}

	if err := env.sweeper.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	updated, _ := env.users.FindByID(ctx, user.ID)
	if updated.ExportToken != newer.Token {
		t.Errorf("user.exportToken = %q, want %q preserved", updated.ExportToken, newer.Token)
	}
}

func TestSweeper_Run_IdempotentOnEmptyStore(t *testing.T) {
	env := newSweepEnv()
	ctx := context.Background()

	if err := env.sweeper.Run(ctx); err != nil {
		t.Fatalf("first Run returned error: %v", err)
	}
	if err := env.sweeper.Run(ctx); err != nil {
		t.Fatalf("second Run returned error: %v", err)
	}
	if env.m.expired != 0 {
		t.Errorf("expired metric = %d, want 0", env.m.expired)
	}
}

func TestSweeper_Start_StopsOnContextCancel(t *testing.T) {
	env := newSweepEnv()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		env.sweeper.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}
