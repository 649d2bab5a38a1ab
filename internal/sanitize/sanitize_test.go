package sanitize

import "testing"

func TestHTMLText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello   world", "hello world"},
		{"entities", "it&#x27;s &quot;fine&quot; &amp; good", `it's "fine" & good`},
		{"paragraphs", "first<p>second<p>third", "first\n\nsecond\n\nthird"},
		{"italic", "an <i>important</i> point", "an important point"},
		{"link", `see <a href="https://go.dev/doc">the docs</a>`, "see the docs (https://go.dev/doc)"},
		{"bare link", `<a href="https://go.dev">https://go.dev</a>`, "https://go.dev"},
		{"truncated link", `<a href="https://example.com/a/very/long/path">https://example.com/a/very/...</a>`, "https://example.com/a/very/..."},
		{"pre", "code:<pre><code>  if x {\n    y()\n  }\n</code></pre>", "code:\n\n  if x {\n    y()\n  }"},
		{"br", "one<br>two", "one\ntwo"},
		{"script", "ok<script>alert(1)</script>", "ok"},
		{"escape codes", "red \x1b[31mtext\x1b[0m", "red [31mtext[0m"},
		{"escape in html", "<p>\x1b]0;title\x07x</p>", "]0;titlex"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Plain(tt.in); got != tt.want {
				t.Errorf("Plain(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHideLinks(t *testing.T) {
	got := HTML{HideLinks: true}.Text(`<a href="https://x.y">here</a>`)
	if got != "here" {
		t.Fatalf("got %q", got)
	}
}
