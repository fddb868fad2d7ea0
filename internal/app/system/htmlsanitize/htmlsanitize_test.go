package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/htmlsanitize"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Ship the release", "Ship the release"},
		{"trims", "  spaced  ", "spaced"},
		{"strips tags", "<b>Bold</b> title", "Bold title"},
		{"keeps ampersand", "Tom & Jerry", "Tom & Jerry"},
		{"removes script", "Hi<script>alert(1)</script>", "Hi"},
		{"escaped markup stays stripped", "&lt;script&gt;alert(1)&lt;/script&gt;ok", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.Text(tt.in); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestText_NeverReturnsTags(t *testing.T) {
	inputs := []string{
		"&amp;lt;img src=x onerror=alert(1)&amp;gt;",
		"<<script>script>alert(1)<</script>/script>",
	}
	for _, in := range inputs {
		if got := htmlsanitize.Text(in); strings.Contains(got, "<script") || strings.Contains(got, "<img") {
			t.Errorf("Text(%q) returned markup: %q", in, got)
		}
	}
}

func TestRich_KeepsFormatting(t *testing.T) {
	in := "<p><strong>Bold</strong> and <em>italic</em></p>"
	if got := htmlsanitize.Rich(in); got != in {
		t.Errorf("Rich(%q) = %q", in, got)
	}
}

func TestRich_RemovesDangerousContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		bad  string
	}{
		{"script", "<p>Hello</p><script>alert('xss')</script>", "<script"},
		{"onclick", `<a href="https://example.com" onclick="alert(1)">x</a>`, "onclick"},
		{"javascript href", `<a href="javascript:alert(1)">x</a>`, "javascript:"},
		{"iframe", `<iframe src="https://evil.example"></iframe>`, "iframe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.Rich(tt.in); strings.Contains(got, tt.bad) {
				t.Errorf("Rich(%q) kept %q: %q", tt.in, tt.bad, got)
			}
		})
	}
}
