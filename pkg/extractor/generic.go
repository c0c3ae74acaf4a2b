package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// URLResolver finds the direct media location behind a video page.
type URLResolver interface {
	ResolveURL(ctx context.Context, pageURL string) (string, error)
}

// YTDLP resolves media urls with the yt-dlp binary.
type YTDLP struct {
	Format string
}

// ResolveURL asks yt-dlp for the first url of the selected format.
func (y YTDLP) ResolveURL(ctx context.Context, pageURL string) (string, error) {
	format := y.Format
	if format == "" {
		format = "best"
	}
	result, err := ytdlp.New().
		Format(format).
		NoPlaylist().
		GetURL().
		Run(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("yt-dlp failed for %s: %w", pageURL, err)
	}
	for _, line := range strings.Split(result.Stdout, "\n") {
		if line = strings.TrimSpace(line); strings.HasPrefix(line, "http") {
			return line, nil
		}
	}
	return "", fmt.Errorf("yt-dlp returned no url for %s", pageURL)
}

// GenericVideo handles any site on the supported sites list.
type GenericVideo struct {
	Base
}

// NewGenericVideo creates a generic video extractor
func NewGenericVideo(env *Env, src Source) Extractor {
	return &GenericVideo{Base: newBase(env, src)}
}

func (x *GenericVideo) Name() string { return "generic_video" }

func (x *GenericVideo) Extract(ctx context.Context) {
	x.run(ctx, x.Name(), x.extract)
}

func (x *GenericVideo) extract(ctx context.Context) error {
	if x.env.Resolver == nil {
		return Fail(domain.UnsupportedDomain, "no video resolver configured for %s", x.src.URL)
	}
	media, err := x.env.Resolver.ResolveURL(ctx, x.src.URL)
	if err != nil {
		return Fail(domain.FailedToLocate, "%v", err)
	}
	ext := ExtensionFromURL(media)
	if !domain.IsMediaExtension(ext) {
		ext = "mp4"
	}
	_, err = x.MakeContent(ctx, media, ext)
	return err
}
