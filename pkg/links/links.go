package links

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// DefaultBase resolves relative links found in reddit bodies
const DefaultBase = "https://www.reddit.com"

var md = goldmark.New(goldmark.WithExtensions(extension.Linkify))

// FromHTML returns the absolute http(s) targets of every anchor in an HTML
// body, in document order and without duplicates. Escaped HTML, as reddit
// sends it without raw_json, is unescaped first.
func FromHTML(body string) ([]string, error) {
	if strings.Contains(body, "&lt;") {
		body = html.UnescapeString(body)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, _ := url.Parse(DefaultBase)
	seen := make(map[string]bool)
	var result []string
	doc.Find("a[href]").Each(func(i int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if u := Normalize(href, base); u != "" && !seen[u] {
			seen[u] = true
			result = append(result, u)
		}
	})
	return result, nil
}

// FromMarkdown returns the link targets of a markdown body, including bare
// URLs, in document order and without duplicates.
func FromMarkdown(src string) []string {
	source := []byte(src)
	root := md.Parser().Parse(text.NewReader(source))

	base, _ := url.Parse(DefaultBase)
	seen := make(map[string]bool)
	var result []string
	add := func(href string) {
		if u := Normalize(href, base); u != "" && !seen[u] {
			seen[u] = true
			result = append(result, u)
		}
	}
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			add(string(node.Destination))
		case *ast.AutoLink:
			add(string(node.URL(source)))
		}
		return ast.WalkContinue, nil
	})
	return result
}

// Normalize resolves href against base and returns it only when it is an
// http(s) URL. Fragments are dropped.
func Normalize(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
