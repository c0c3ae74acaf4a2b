package links

import (
	"reflect"
	"testing"
)

func TestFromHTML(t *testing.T) {
	body := `<div class="md"><p>Look <a href="https://i.imgur.com/a.jpg">here</a> and
		<a href="/r/pics/comments/x">there</a>, again <a href="https://i.imgur.com/a.jpg#frag">here</a>,
		<a href="mailto:me@example.com">mail</a> <a href="#top">top</a></p></div>`
	got, err := FromHTML(body)
	if err != nil {
		t.Fatalf("FromHTML failed: %v", err)
	}
	want := []string{"https://i.imgur.com/a.jpg", "https://www.reddit.com/r/pics/comments/x"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestFromHTMLEscaped(t *testing.T) {
	got, err := FromHTML(`&lt;p&gt;&lt;a href="https://v.redd.it/abc"&gt;vid&lt;/a&gt;&lt;/p&gt;`)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "https://v.redd.it/abc" {
		t.Fatalf("Unexpected links %v", got)
	}
}

func TestFromMarkdown(t *testing.T) {
	src := "First [one](https://a.com/1.png), then https://b.com/2.gif and <https://c.com/3.mp4>.\n\n[again](https://a.com/1.png)"
	got := FromMarkdown(src)
	want := []string{"https://a.com/1.png", "https://b.com/2.gif", "https://c.com/3.mp4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("ftp://x.com/a", nil); got != "" {
		t.Fatalf("Expected non-http scheme to be dropped, got %q", got)
	}
	if got := Normalize(" https://x.com/a#b ", nil); got != "https://x.com/a" {
		t.Fatalf("Unexpected normalized url %q", got)
	}
}
