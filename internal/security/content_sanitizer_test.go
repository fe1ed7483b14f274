package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は許可タグが正しく通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		// want に含まれるべき部分文字列
		wantContains []string
	}{
		{
			name:         "strongタグが許可される",
			input:        "<strong>太字テキスト</strong>",
			wantContains: []string{"<strong>太字テキスト</strong>"},
		},
		{
			name:         "emタグが許可される",
			input:        "<em>強調テキスト</em>",
			wantContains: []string{"<em>強調テキスト</em>"},
		},
		{
			name:         "codeタグが許可される",
			input:        "<code>fmt.Println</code>",
			wantContains: []string{"<code>fmt.Println</code>"},
		},
		{
			name:         "aタグが許可される",
			input:        `<a href="https://example.com">リンク</a>`,
			wantContains: []string{"<a", "href", "https://example.com", "リンク", "</a>"},
		},
		{
			name:         "プレーンテキストはそのまま通過する",
			input:        "素敵な写真ですね",
			wantContains: []string{"素敵な写真ですね"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, 期待される部分文字列 %q が含まれていません", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenTags は危険なタグと属性が除去されることを検証する。
func TestSanitize_ForbiddenTags(t *testing.T) {
	sanitizer := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		// got に含まれてはいけない部分文字列
		wantNotContains []string
	}{
		{
			name:            "scriptタグが除去される",
			input:           `コメント<script>alert("xss")</script>`,
			wantNotContains: []string{"<script>", "alert"},
		},
		{
			name:            "iframeタグが除去される",
			input:           `<iframe src="https://evil.example.com"></iframe>本文`,
			wantNotContains: []string{"<iframe", "evil.example.com"},
		},
		{
			name:            "styleタグが除去される",
			input:           "<style>body{display:none}</style>本文",
			wantNotContains: []string{"<style>", "display:none"},
		},
		{
			name:            "onclickイベント属性が除去される",
			input:           `<strong onclick="alert(1)">太字</strong>`,
			wantNotContains: []string{"onclick", "alert"},
		},
		{
			name:            "javascriptスキームのリンクが除去される",
			input:           `<a href="javascript:alert(1)">リンク</a>`,
			wantNotContains: []string{"javascript:"},
		},
		{
			name:            "imgタグが除去される",
			input:           `<img src="https://example.com/a.png">本文`,
			wantNotContains: []string{"<img"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, notWant := range tt.wantNotContains {
				if strings.Contains(got, notWant) {
					t.Errorf("Sanitize(%q) = %q, 除去されるべき部分文字列 %q が含まれています", tt.input, got, notWant)
				}
			}
		})
	}
}

// TestSanitize_LinkHardening はリンクにtarget/relが強制付与されることを検証する。
func TestSanitize_LinkHardening(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize(`<a href="https://example.com">リンク</a>`)
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("target=\"_blank\" が付与されていません: %q", got)
	}
	if !strings.Contains(got, "noopener") || !strings.Contains(got, "noreferrer") {
		t.Errorf("rel属性が付与されていません: %q", got)
	}
}

// TestSanitize_TrimsWhitespace は前後の空白が取り除かれることを検証する。
func TestSanitize_TrimsWhitespace(t *testing.T) {
	sanitizer := NewContentSanitizer()

	got := sanitizer.Sanitize("  <script>x</script>コメント  \n")
	if got != "コメント" {
		t.Errorf("Sanitize = %q, want %q", got, "コメント")
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力を返すことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewContentSanitizer()

	input := `<strong>太字</strong><script>alert(1)</script>素敵な写真`
	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("冪等性が保たれていません: first=%q second=%q", first, second)
	}
}

// TestSanitize_EmptyInput は空文字列の入力に空文字列を返すことを検証する。
func TestSanitize_EmptyInput(t *testing.T) {
	sanitizer := NewContentSanitizer()

	if got := sanitizer.Sanitize(""); got != "" {
		t.Errorf("Sanitize(\"\") = %q, want \"\"", got)
	}
}
