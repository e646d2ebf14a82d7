package source

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

func parseHTML(body []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(body))
}

// textOf concatenates every text node below n, separated by spaces.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return cleanText(sb.String())
}

// firstText returns the cleaned text of the first node matching sel.
func firstText(root *html.Node, sel cascadia.Selector) string {
	return textOf(sel.MatchFirst(root))
}

var spaceRe = regexp.MustCompile(`\s+`)

var escapeReplacer = strings.NewReplacer(
	`\n`, " ", `\r`, " ", `\t`, " ",
	"\n", " ", "\r", " ", "\t", " ",
	`\`, " ",
)

// cleanText flattens escaped and real line breaks, drops stray backslashes,
// collapses whitespace and applies NFC.
func cleanText(text string) string {
	if text == "" {
		return ""
	}
	text = escapeReplacer.Replace(text)
	text = spaceRe.ReplaceAllString(text, " ")
	return norm.NFC.String(strings.TrimSpace(text))
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// closest walks up from n to the nearest element with the given tag and class.
func closest(n *html.Node, tag, class string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag && hasClass(p, class) {
			return p
		}
	}
	return nil
}
