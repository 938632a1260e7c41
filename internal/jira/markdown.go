package jira

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	multiNewline  = regexp.MustCompile(`\n\s*\n\s*\n+`)
	multiSpace    = regexp.MustCompile(`[ \t]+`)
	lineLeadSpace = regexp.MustCompile(`\n +`)
)

// HTMLToMarkdown converts the HTML fragments JIRA embeds in issue
// fields into Markdown. Unknown tags are stripped, keeping their text.
// Plain text passes through untouched.
func HTMLToMarkdown(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		// JIRA fields are not guaranteed to be valid HTML.
		return content
	}

	var b strings.Builder
	renderNode(&b, root)

	out := b.String()
	out = multiNewline.ReplaceAllString(out, "\n\n")
	out = multiSpace.ReplaceAllString(out, " ")
	out = lineLeadSpace.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			level := int(n.Data[1] - '0')
			text := strings.TrimSpace(textContent(n))
			if text != "" {
				b.WriteString("\n" + strings.Repeat("#", level) + " " + text + "\n")
			}
			return
		case atom.Pre:
			b.WriteString("\n\n```\n" + strings.Trim(textContent(n), "\n") + "\n```\n\n")
			return
		case atom.Code:
			b.WriteString("`" + textContent(n) + "`")
			return
		case atom.Strong, atom.B:
			b.WriteString("**" + textContent(n) + "**")
			return
		case atom.Em, atom.I:
			b.WriteString("*" + textContent(n) + "*")
			return
		case atom.A:
			renderLink(b, n)
			return
		case atom.Br:
			b.WriteString("\n")
			return
		case atom.P:
			renderChildren(b, n)
			b.WriteString("\n\n")
			return
		case atom.Ul, atom.Ol:
			renderList(b, n)
			return
		case atom.Script, atom.Style:
			return
		}
	}
	renderChildren(b, n)
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func renderLink(b *strings.Builder, n *html.Node) {
	text := strings.TrimSpace(textContent(n))
	href := attrValue(n, "href")
	switch {
	case text != "" && href != "":
		b.WriteString("[" + text + "](" + href + ")")
	case text != "":
		b.WriteString(text)
	}
}

func renderList(b *strings.Builder, n *html.Node) {
	b.WriteString("\n")
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		// Render the item body so nested markup (code, bold, links)
		// survives inside the bullet.
		var item strings.Builder
		renderChildren(&item, c)
		text := strings.TrimSpace(item.String())
		if text != "" {
			b.WriteString("- " + text + "\n")
		}
	}
	b.WriteString("\n")
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
