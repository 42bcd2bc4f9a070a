package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// CleanBody converts a body fragment that may contain HTML into plain
// Markdown. Headings, emphasis, anchors, blockquotes and lists become their
// Markdown equivalents; every other tag is stripped while its text is kept.
// The function is pure and idempotent, tolerates unterminated or otherwise
// malformed markup, and its output never contains a raw '<' character.
func CleanBody(text string) string {
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		// html.Parse does not fail on fragment input in practice, but a
		// broken body is still better than no body.
		return strings.TrimSpace(excessNewlines.ReplaceAllString(text, "\n\n"))
	}

	var b strings.Builder
	renderNode(&b, doc)

	out := excessNewlines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		// Escaping '<' keeps entity-encoded tags inert and makes repeated
		// cleaning a fixed point.
		b.WriteString(strings.ReplaceAll(n.Data, "<", "&lt;"))
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "head":
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			depth := int(n.Data[1] - '0')
			writeBlock(b, strings.Repeat("#", depth)+" "+strings.TrimSpace(renderChildren(n)))
			return
		case "p", "div", "section", "article":
			writeBlock(b, strings.TrimSpace(renderChildren(n)))
			return
		case "br":
			b.WriteString("\n")
			return
		case "strong", "b":
			wrapInline(b, n, "**")
			return
		case "em", "i":
			wrapInline(b, n, "*")
			return
		case "a":
			text := strings.TrimSpace(renderChildren(n))
			href := attr(n, "href")
			if text == "" {
				text = href
			}
			if href == "" {
				b.WriteString(text)
			} else {
				fmt.Fprintf(b, "[%s](%s)", text, href)
			}
			return
		case "blockquote":
			inner := strings.TrimSpace(renderChildren(n))
			var quoted []string
			for _, line := range strings.Split(inner, "\n") {
				quoted = append(quoted, "> "+strings.TrimSpace(line))
			}
			writeBlock(b, strings.Join(quoted, "\n"))
			return
		case "ul":
			writeBlock(b, renderList(n, false))
			return
		case "ol":
			writeBlock(b, renderList(n, true))
			return
		case "li":
			// Stray list item outside ul/ol.
			writeBlock(b, "- "+strings.TrimSpace(renderChildren(n)))
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func renderChildren(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(&b, c)
	}
	return b.String()
}

func renderList(n *html.Node, ordered bool) string {
	var items []string
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		i++
		text := strings.TrimSpace(renderChildren(c))
		if ordered {
			items = append(items, fmt.Sprintf("%d. %s", i, text))
		} else {
			items = append(items, "- "+text)
		}
	}
	return strings.Join(items, "\n")
}

func wrapInline(b *strings.Builder, n *html.Node, marker string) {
	inner := strings.TrimSpace(renderChildren(n))
	if inner == "" {
		return
	}
	b.WriteString(marker + inner + marker)
}

func writeBlock(b *strings.Builder, block string) {
	if block == "" {
		return
	}
	b.WriteString("\n\n" + block + "\n\n")
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
