package markdown

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultSummaryLength is the rune limit applied to page summaries.
const DefaultSummaryLength = 200

// Summary returns the plain text of the first paragraph of rendered HTML,
// whitespace collapsed and cut at a word boundary after maxRunes runes.
func Summary(rendered []byte, maxRunes int) string {
	doc, err := html.Parse(bytes.NewReader(rendered))
	if err != nil {
		return ""
	}
	p := firstElement(doc, "p")
	if p == nil {
		return ""
	}
	text := strings.Join(strings.Fields(textContent(p)), " ")
	return truncate(text, maxRunes)
}

func firstElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
		if c.Type == html.ElementNode && c.Data == "br" {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:maxRunes])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:.") + "…"
}
