package extractor

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
)

var vidbleSizeSuffixes = []string{"_med", "_sqr"}

// Vidble scrapes show and album pages for full size images.
type Vidble struct {
	Base
}

// NewVidble creates a vidble extractor
func NewVidble(env *Env, src Source) Extractor {
	return &Vidble{Base: newBase(env, src)}
}

func (x *Vidble) Name() string { return "vidble" }

func (x *Vidble) Extract(ctx context.Context) {
	x.run(ctx, x.Name(), x.extract)
}

func (x *Vidble) extract(ctx context.Context) error {
	if ext := ExtensionFromURL(x.src.URL); ext != "" {
		_, err := x.MakeContent(ctx, x.src.URL, ext)
		return err
	}

	page, err := url.Parse(x.src.URL)
	if err != nil {
		return Fail(domain.FailedToLocate, "invalid vidble url %s", x.src.URL)
	}
	resp, err := x.env.Web.Get(ctx, x.src.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return &httpclient.StatusError{Code: resp.StatusCode, URL: x.src.URL}
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Fail(domain.FailedToLocate, "failed to parse vidble page: %v", err)
	}

	images := vidbleImages(doc, page)
	if len(images) == 0 {
		return Fail(domain.FailedToLocate, "no images found on %s", x.src.URL)
	}
	for i, img := range images {
		if !x.Continue() {
			return nil
		}
		var opts []Option
		if len(images) > 1 {
			opts = append(opts, WithSequence(i+1))
		}
		if _, err := x.MakeContent(ctx, img, ExtensionFromURL(img), opts...); err != nil {
			return err
		}
	}
	return nil
}

// vidbleImages returns absolute full size image urls in page order.
func vidbleImages(doc *goquery.Document, page *url.URL) []string {
	var out []string
	seen := make(map[string]bool)
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if !isVidbleThumb(src) {
			return
		}
		for _, suffix := range vidbleSizeSuffixes {
			src = strings.Replace(src, suffix+".", ".", 1)
		}
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := page.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})
	return out
}

func isVidbleThumb(src string) bool {
	for _, suffix := range vidbleSizeSuffixes {
		if strings.Contains(src, suffix+".") {
			return true
		}
	}
	return false
}
