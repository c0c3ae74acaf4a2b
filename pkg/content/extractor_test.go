package content

import (
	"strings"
	"testing"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

func TestPlainTextFromHTML(t *testing.T) {
	b := Body{
		Title: "My post",
		HTML:  "&lt;div class=\"md\"&gt;&lt;p&gt;Hello there, this is a longer paragraph of ordinary text written about the whole wide &lt;a href=\"https://x.com\"&gt;world&lt;/a&gt; we all live in today.&lt;/p&gt;&lt;/div&gt;",
	}
	text, ext, err := Render(domain.FormatText, b)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if ext != "txt" {
		t.Fatalf("Expected txt extension, got %s", ext)
	}
	if !strings.HasPrefix(text, "My post\n\n") {
		t.Fatalf("Expected title header, got %q", text)
	}
	if !strings.Contains(text, "Hello") || !strings.Contains(text, "world") {
		t.Fatalf("Expected body text, got %q", text)
	}
	if strings.Contains(text, "<p>") {
		t.Fatalf("Expected tags to be stripped, got %q", text)
	}
}

func TestPlainTextFallsBackToMarkdown(t *testing.T) {
	text, err := PlainText(Body{Markdown: "  just **markdown**  "})
	if err != nil {
		t.Fatal(err)
	}
	if text != "just **markdown**\n" {
		t.Fatalf("Unexpected text %q", text)
	}
}

func TestHTMLDocumentRendersMarkdown(t *testing.T) {
	doc, ext, err := Render(domain.FormatHTML, Body{Title: "A & B", Markdown: "see https://example.com/a.jpg"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if ext != "html" {
		t.Fatalf("Expected html extension, got %s", ext)
	}
	if !strings.Contains(doc, "<title>A &amp; B</title>") {
		t.Fatalf("Expected escaped title, got %q", doc)
	}
	if !strings.Contains(doc, `<a href="https://example.com/a.jpg">`) {
		t.Fatalf("Expected linkified markdown, got %q", doc)
	}
}
