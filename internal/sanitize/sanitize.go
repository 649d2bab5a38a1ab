// Package sanitize turns the HTML fragments found in comment and story text
// into plain terminal text.
package sanitize

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Sanitizer converts untrusted rich text into displayable plain text.
type Sanitizer interface {
	Text(raw string) string
}

// HTML renders paragraphs as blank-line separated blocks, keeps preformatted
// text verbatim, and appends link targets in parentheses when they differ
// from the link text. Control characters, including terminal escapes, are
// removed from the output.
type HTML struct {
	HideLinks bool
}

var _ Sanitizer = HTML{}

// Text implements Sanitizer. Input that fails to parse is returned with
// control characters stripped.
func (h HTML) Text(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.ContainsAny(raw, "<&") {
		return collapse(stripControl(raw))
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return stripControl(raw)
	}
	w := &writer{hideLinks: h.HideLinks}
	for _, n := range doc.Find("body").Nodes {
		w.children(n)
	}
	return w.result()
}

// Plain is HTML{}.Text.
func Plain(raw string) string {
	return HTML{}.Text(raw)
}

type writer struct {
	blocks    []string
	cur       strings.Builder
	hideLinks bool
}

func (w *writer) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *writer) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.cur.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.Data {
	case "script", "style":
		return
	case "p", "div", "blockquote", "li":
		w.flush()
		w.children(n)
		w.flush()
	case "br":
		w.cur.WriteString("\x00")
	case "pre":
		w.flush()
		w.blocks = append(w.blocks, "\x01"+strings.TrimRight(goquery.NewDocumentFromNode(n).Text(), "\n"))
	case "a":
		text := goquery.NewDocumentFromNode(n).Text()
		href := attr(n, "href")
		w.cur.WriteString(text)
		if !w.hideLinks && href != "" && strings.TrimSpace(text) != href && !isTruncatedOf(text, href) {
			w.cur.WriteString(" (" + href + ")")
		}
	default:
		w.children(n)
	}
}

// flush closes the current paragraph.
func (w *writer) flush() {
	if s := w.cur.String(); strings.TrimSpace(strings.ReplaceAll(s, "\x00", "")) != "" {
		w.blocks = append(w.blocks, s)
	}
	w.cur.Reset()
}

func (w *writer) result() string {
	w.flush()
	out := make([]string, 0, len(w.blocks))
	for _, b := range w.blocks {
		if pre, ok := strings.CutPrefix(b, "\x01"); ok {
			out = append(out, stripControlKeepLayout(pre))
			continue
		}
		lines := strings.Split(b, "\x00")
		for i, ln := range lines {
			lines[i] = collapse(stripControl(ln))
		}
		out = append(out, strings.Trim(strings.Join(lines, "\n"), "\n"))
	}
	return strings.Join(out, "\n\n")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// isTruncatedOf matches link texts shortened with a trailing ellipsis, as
// Hacker News renders long URLs.
func isTruncatedOf(text, href string) bool {
	text = strings.TrimSpace(text)
	prefix, ok := strings.CutSuffix(text, "...")
	return ok && prefix != "" && strings.HasPrefix(href, prefix)
}

// collapse folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			if r == '\n' || r == '\t' {
				return ' '
			}
			return -1
		}
		return r
	}, s)
}

func stripControlKeepLayout(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
