package jira

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTMLToMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "just plain text", "just plain text"},
		{"heading", "<h2>Steps to reproduce</h2>", "## Steps to reproduce"},
		{"bold", "restart the <strong>frontend</strong> pod", "restart the **frontend** pod"},
		{"italic", "this is <em>probably</em> a regression", "this is *probably* a regression"},
		{"inline code", "run <code>make deploy</code> first", "run `make deploy` first"},
		{"link", `see <a href="https://example.com/wiki">the wiki</a>`, "see [the wiki](https://example.com/wiki)"},
		{"link without href", `<a>orphan link</a>`, "orphan link"},
		{"line break", "first line<br>second line", "first line\nsecond line"},
		{
			"paragraphs",
			"<p>first paragraph</p><p>second paragraph</p>",
			"first paragraph\n\nsecond paragraph",
		},
		{
			"code block",
			"<pre>panic: runtime error\ngoroutine 1</pre>",
			"```\npanic: runtime error\ngoroutine 1\n```",
		},
		{
			"unordered list",
			"<ul><li>check logs</li><li>restart <code>nginx</code></li></ul>",
			"- check logs\n- restart `nginx`",
		},
		{
			"nested structure",
			"<h3>Workaround</h3><p>apply the patch from <strong>DEMO-12</strong></p>",
			"### Workaround\napply the patch from **DEMO-12**",
		},
		{"unknown tags stripped", "<div><span>wrapped text</span></div>", "wrapped text"},
		{"script dropped", "before<script>alert(1)</script>after", "beforeafter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToMarkdown(tt.input))
		})
	}
}

func TestHTMLToMarkdownWhitespace(t *testing.T) {
	got := HTMLToMarkdown("<p>a</p>\n\n\n\n<p>b</p>")
	assert.Equal(t, "a\n\nb", got)

	got = HTMLToMarkdown("too   many    spaces")
	assert.Equal(t, "too many spaces", got)
}
