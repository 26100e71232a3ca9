package security

import "testing"

func TestUsernameSanitizer_Sanitize(t *testing.T) {
	s := NewUsernameSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"通常のユーザー名", "alice", "alice"},
		{"前後の空白を除去", "  alice  ", "alice"},
		{"HTMLタグを除去", "<script>alert(1)</script>alice", "alice"},
		{"インラインタグを除去", "<b>alice</b>", "alice"},
		{"制御文字を除去", "ali\x00ce\n", "alice"},
		{"空白のみは空になる", "   ", ""},
		{"タグのみは空になる", "<img src=x>", ""},
		{"日本語はそのまま", "まばたき太郎", "まばたき太郎"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestUsernameSanitizer_Idempotent(t *testing.T) {
	s := NewUsernameSanitizer()

	input := "  <b>alice</b>  "
	once := s.Sanitize(input)
	twice := s.Sanitize(once)
	if once != twice {
		t.Errorf("Sanitize is not idempotent: %q != %q", once, twice)
	}
}
