package extractor

import (
	"context"
	"net/url"
	"strings"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

type gfyItem struct {
	GfyID   string `json:"gfyId"`
	MP4URL  string `json:"mp4Url"`
	WebMURL string `json:"webmUrl"`
}

// HostedVideo resolves gfycat style hosts, which share one API shape.
type HostedVideo struct {
	Base
	name    string
	apiBase string
}

// NewGfycat creates a hosted video extractor for gfycat
func NewGfycat(env *Env, src Source) Extractor {
	return &HostedVideo{Base: newBase(env, src), name: "gfycat", apiBase: env.Settings.Gfycat.APIBase}
}

// NewRedgifs creates a hosted video extractor for redgifs
func NewRedgifs(env *Env, src Source) Extractor {
	return &HostedVideo{Base: newBase(env, src), name: "redgifs", apiBase: env.Settings.Redgifs.APIBase}
}

func (x *HostedVideo) Name() string { return x.name }

func (x *HostedVideo) Extract(ctx context.Context) {
	x.run(ctx, x.Name(), x.extract)
}

func (x *HostedVideo) extract(ctx context.Context) error {
	id := hostedID(x.src.URL)
	if id == "" {
		return Fail(domain.FailedToLocate, "no video id in %s", x.src.URL)
	}
	var resp struct {
		Item gfyItem `json:"gfyItem"`
	}
	if _, err := x.env.API.GetJSON(ctx, strings.TrimRight(x.apiBase, "/")+"/gfycats/"+id, nil, &resp); err != nil {
		return err
	}
	switch {
	case resp.Item.MP4URL != "":
		_, err := x.MakeContent(ctx, resp.Item.MP4URL, "mp4", WithMediaID(id))
		return err
	case resp.Item.WebMURL != "":
		_, err := x.MakeContent(ctx, resp.Item.WebMURL, "webm", WithMediaID(id))
		return err
	}
	return Fail(domain.FailedToLocate, "no download url in response for %s", id)
}

// hostedID extracts the video id from urls such as /watch/ID, /ifr/ID or
// /ID-descriptive-tags.
func hostedID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	id := stripExt(lastSegment(u))
	if i := strings.Index(id, "-"); i > 0 {
		id = id[:i]
	}
	return strings.ToLower(id)
}
