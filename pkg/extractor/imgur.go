package extractor

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/httpclient"
)

type imgurImage struct {
	ID       string `json:"id"`
	Link     string `json:"link"`
	Type     string `json:"type"`
	Animated bool   `json:"animated"`
	MP4      string `json:"mp4"`
}

// Imgur resolves single images and albums through the imgur API.
type Imgur struct {
	Base
}

// NewImgur creates an imgur extractor
func NewImgur(env *Env, src Source) Extractor {
	return &Imgur{Base: newBase(env, src)}
}

func (x *Imgur) Name() string { return "imgur" }

func (x *Imgur) Extract(ctx context.Context) {
	x.run(ctx, x.Name(), x.extract)
}

func (x *Imgur) extract(ctx context.Context) error {
	u, err := url.Parse(x.src.URL)
	if err != nil {
		return Fail(domain.FailedToLocate, "invalid imgur url %s", x.src.URL)
	}
	if ext := ExtensionFromURL(x.src.URL); ext != "" && ext != "gifv" && strings.HasPrefix(u.Host, "i.") {
		_, err := x.MakeContent(ctx, x.src.URL, ext)
		return err
	}

	segs := segments(u)
	if len(segs) == 0 {
		return Fail(domain.FailedToLocate, "no imgur id in %s", x.src.URL)
	}
	if len(segs) >= 2 && (segs[0] == "a" || segs[0] == "gallery") {
		return x.album(ctx, stripExt(segs[1]))
	}
	return x.single(ctx, stripExt(segs[len(segs)-1]))
}

func (x *Imgur) single(ctx context.Context, id string) error {
	var resp struct {
		Data imgurImage `json:"data"`
	}
	if err := x.getJSON(ctx, "/image/"+id, &resp); err != nil {
		return err
	}
	link, ext := imageLink(resp.Data)
	if link == "" {
		return Fail(domain.FailedToLocate, "imgur image %s has no link", id)
	}
	_, err := x.MakeContent(ctx, link, ext, WithMediaID(resp.Data.ID))
	return err
}

func (x *Imgur) album(ctx context.Context, id string) error {
	var resp struct {
		Data []imgurImage `json:"data"`
	}
	if err := x.getJSON(ctx, "/album/"+id+"/images", &resp); err != nil {
		return err
	}
	if len(resp.Data) == 0 {
		return Fail(domain.FailedToLocate, "imgur album %s is empty", id)
	}
	for i, img := range resp.Data {
		if !x.Continue() {
			return nil
		}
		link, ext := imageLink(img)
		if link == "" {
			continue
		}
		opts := []Option{WithMediaID(img.ID)}
		if len(resp.Data) > 1 {
			opts = append(opts, WithSequence(i+1))
		}
		if _, err := x.MakeContent(ctx, link, ext, opts...); err != nil {
			return err
		}
	}
	return nil
}

func imageLink(img imgurImage) (string, string) {
	if img.Animated && img.MP4 != "" {
		return img.MP4, "mp4"
	}
	ext := ExtensionFromURL(img.Link)
	if ext == "gifv" {
		return gifvToMP4(img.Link), "mp4"
	}
	return img.Link, ext
}

// getJSON calls the imgur API. An exhausted client credit allowance is
// reported as CreditError rather than a plain rate limit.
func (x *Imgur) getJSON(ctx context.Context, path string, out interface{}) error {
	cfg := x.env.Settings.Imgur
	header := http.Header{}
	if cfg.ClientID != "" {
		header.Set("Authorization", "Client-ID "+cfg.ClientID)
	}
	respHeader, err := x.env.API.GetJSON(ctx, strings.TrimRight(cfg.APIBase, "/")+path, header, out)
	if err == nil {
		return nil
	}
	if respHeader != nil && respHeader.Get("X-RateLimit-ClientRemaining") == "0" {
		return Fail(domain.CreditError, "imgur client credits exhausted")
	}
	if httpclient.Kind(err) == domain.RateLimitError {
		return Fail(domain.RateLimitError, "imgur rate limit: %v", err)
	}
	return err
}
