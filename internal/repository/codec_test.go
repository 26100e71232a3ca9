package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/blinkd/internal/model"
)

func TestDecodeRecord_BareRecord(t *testing.T) {
	data := []byte(`{"id":"abc","username":"alice","blinkscore":3}`)

	user := &model.User{}
	if err := decodeRecord(data, user); err != nil {
		t.Fatalf("decodeRecord returned error: %v", err)
	}

	if user.ID != "abc" || user.Username != "alice" || user.Blinkscore != 3 {
		t.Errorf("user = %+v, want id=abc username=alice blinkscore=3", user)
	}
}

func TestDecodeRecord_EnvelopeWrapped(t *testing.T) {
	// エンベロープで包むストアからの応答も正規化できること
	data := []byte(`{"value":{"id":"abc","username":"alice","blinkscore":3}}`)

	user := &model.User{}
	if err := decodeRecord(data, user); err != nil {
		t.Fatalf("decodeRecord returned error: %v", err)
	}

	if user.ID != "abc" || user.Blinkscore != 3 {
		t.Errorf("user = %+v, want id=abc blinkscore=3", user)
	}
}

func TestDecodeRecord_InvalidJSON(t *testing.T) {
	user := &model.User{}
	if err := decodeRecord([]byte(`{not json`), user); err == nil {
		t.Error("decodeRecord should fail on invalid JSON")
	}
}

func TestMapStoreError_DeadlineExceeded(t *testing.T) {
	err := mapStoreError(context.DeadlineExceeded)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeStoreUnavailable {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeStoreUnavailable)
	}
}

func TestMapStoreError_WrappedDeadline(t *testing.T) {
	wrapped := errors.Join(errors.New("failed to get key"), context.DeadlineExceeded)
	err := mapStoreError(wrapped)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError", err)
	}
}

func TestBoundedCtx_AppliesTimeout(t *testing.T) {
	ctx, cancel := boundedCtx(context.Background(), 10*time.Millisecond)
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline to be set")
	}
	if time.Until(deadline) > 10*time.Millisecond {
		t.Errorf("deadline too far in the future: %v", deadline)
	}
}

func TestBoundedCtx_ZeroTimeoutMeansNoDeadline(t *testing.T) {
	ctx, cancel := boundedCtx(context.Background(), 0)
	defer cancel()

	if _, ok := ctx.Deadline(); ok {
		t.Error("expected no deadline for zero timeout")
	}
}
