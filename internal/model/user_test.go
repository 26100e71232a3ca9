package model

import (
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	id := NewID()
	if len(id) != 32 {
		t.Errorf("len(id) = %d, want 32", len(id))
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Errorf("id %q contains non-hex character %q", id, r)
			break
		}
	}

	if NewID() == id {
		t.Error("consecutive NewID calls returned identical values")
	}
}

func TestExportToken_Valid(t *testing.T) {
	now := time.Now()
	token := &ExportToken{
		Token:     NewID(),
		ExpiresAt: now.Add(180 * time.Second),
	}

	if !token.Valid(now) {
		t.Error("Valid(now) = false, want true before expiry")
	}
	if !token.Valid(now.Add(179 * time.Second)) {
		t.Error("Valid = false just before expiry, want true")
	}
	// expiresAtちょうどは期限切れ扱い
	if token.Valid(now.Add(180 * time.Second)) {
		t.Error("Valid = true at expiry instant, want false")
	}
	if token.Valid(now.Add(181 * time.Second)) {
		t.Error("Valid = true after expiry, want false")
	}
}
