package extractor

import (
	"context"
	"net/url"
	"strings"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// Direct handles urls that already point at a media file.
type Direct struct {
	Base
}

// NewDirect creates a direct extractor
func NewDirect(env *Env, src Source) Extractor {
	return &Direct{Base: newBase(env, src)}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) Extract(ctx context.Context) {
	d.run(ctx, d.Name(), d.extract)
}

func (d *Direct) extract(ctx context.Context) error {
	target := d.src.URL
	ext := ExtensionFromURL(target)
	if ext == "" {
		return Fail(domain.UnrecognizedExtension, "no extension in %s", target)
	}
	// gifv is an html wrapper around an mp4
	if ext == "gifv" {
		target, ext = gifvToMP4(target), "mp4"
	}
	_, err := d.MakeContent(ctx, target, ext)
	return err
}

func gifvToMP4(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.TrimSuffix(rawURL, ".gifv") + ".mp4"
	}
	u.Path = strings.TrimSuffix(u.Path, ".gifv") + ".mp4"
	return u.String()
}
