package content

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// Body is the text of a self post or a comment in both of the forms reddit
// provides
type Body struct {
	Title    string
	HTML     string
	Markdown string
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))

// RenderMarkdown converts reddit markdown to HTML.
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return buf.String(), nil
}

// bodyHTML returns the HTML form of b, rendering the markdown when reddit did
// not supply HTML.
func (b Body) bodyHTML() (string, error) {
	if strings.TrimSpace(b.HTML) != "" {
		return html.UnescapeString(b.HTML), nil
	}
	return RenderMarkdown(b.Markdown)
}

// ExtractText extracts readable plain text from an HTML fragment
func ExtractText(htmlContent string) (string, error) {
	article, err := readability.FromReader(strings.NewReader(htmlContent), nil)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text, nil
		}
	}

	// Fallback: short fragments often have no "article" for readability
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	return strings.TrimSpace(doc.Text()), nil
}

// PlainText renders b as a text file
func PlainText(b Body) (string, error) {
	text := ""
	if strings.TrimSpace(b.HTML) != "" {
		var err error
		if text, err = ExtractText(html.UnescapeString(b.HTML)); err != nil {
			return "", err
		}
	}
	if text == "" {
		text = strings.TrimSpace(b.Markdown)
	}
	if b.Title != "" {
		text = b.Title + "\n\n" + text
	}
	return text + "\n", nil
}

// HTMLDocument renders b as a standalone HTML page
func HTMLDocument(b Body) (string, error) {
	body, err := b.bodyHTML()
	if err != nil {
		return "", err
	}
	title := html.EscapeString(b.Title)
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	sb.WriteString("<title>" + title + "</title>\n</head>\n<body>\n")
	if title != "" {
		sb.WriteString("<h1>" + title + "</h1>\n")
	}
	sb.WriteString(body)
	sb.WriteString("\n</body>\n</html>\n")
	return sb.String(), nil
}

// Render renders b in the given format and returns the text and the file
// extension to use.
func Render(format domain.SelfTextFormat, b Body) (string, string, error) {
	if format == domain.FormatHTML {
		doc, err := HTMLDocument(b)
		return doc, "html", err
	}
	text, err := PlainText(b)
	return text, "txt", err
}
