package natskv

import "testing"

func TestEncodeKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{"mcp.tools.3f1c-aa", "mcp.tools.3f1c-aa"},
		{"mcp.tools.a b:c", "mcp.tools.a_b_c"},
		{"k=v/x", "k=v/x"},
	}
	for _, tt := range tests {
		if got := encodeKey(tt.in); got != tt.want {
			t.Errorf("encodeKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
