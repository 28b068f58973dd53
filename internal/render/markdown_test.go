package render

import (
	"strings"
	"testing"
)

func TestMarkdownHTML(t *testing.T) {
	md := NewMarkdown()
	tests := []struct {
		name     string
		in       string
		contains []string
		excludes []string
	}{
		{"emphasis", "**bold** and _it_", []string{"<strong>bold</strong>", "<em>it</em>"}, nil},
		{"code fence", "```go\nfmt.Println(1)\n```", []string{`<code class="language-go">`}, nil},
		{"gfm table", "| a | b |\n|---|---|\n| 1 | 2 |", []string{"<table>", "<td>1</td>"}, nil},
		{"strikethrough", "~~old~~", []string{"<del>old</del>"}, nil},
		{"raw html dropped", "<script>alert(1)</script>", nil, []string{"<script>"}},
		{"hard wraps", "line one\nline two", []string{"<br>"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := md.HTML(tt.in)
			if err != nil {
				t.Fatalf("HTML: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Fatalf("output missing %q:\n%s", want, out)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(out, bad) {
					t.Fatalf("output contains %q:\n%s", bad, out)
				}
			}
		})
	}
}
