//go:build windows

package process

import "testing"

func TestFirstToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`C:\bin\tool.exe a b`, `C:\bin\tool.exe`},
		{`"C:\Program Files\tool.exe" "a b"`, `C:\Program Files\tool.exe`},
		{`  tool`, `tool`},
		{`"unterminated`, `unterminated`},
		{``, ``},
	}
	for _, tt := range tests {
		if got := firstToken(tt.in); got != tt.want {
			t.Errorf("firstToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
