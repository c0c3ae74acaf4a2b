package extractor

import (
	"context"
	"net/url"
	"regexp"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

var dashSegment = regexp.MustCompile(`DASH_[^/]+$`)

// RedditVideo handles natively hosted videos. Audio is a separate track and
// is paired with the video for a later mux.
type RedditVideo struct {
	Base
}

// NewRedditVideo creates a reddit video extractor
func NewRedditVideo(env *Env, src Source) Extractor {
	return &RedditVideo{Base: newBase(env, src)}
}

func (x *RedditVideo) Name() string { return "reddit_video" }

func (x *RedditVideo) Extract(ctx context.Context) {
	x.run(ctx, x.Name(), x.extract)
}

func (x *RedditVideo) extract(ctx context.Context) error {
	sub, err := x.origin(ctx)
	if err != nil {
		return err
	}
	video := sub.RedditVideo()
	if video == nil || video.FallbackURL == "" {
		return Fail(domain.FailedToLocate, "no video metadata for %s", sub.ID)
	}
	videoURL := video.FallbackURL

	audioURL := AudioURL(videoURL)
	if video.IsGif || audioURL == "" || !x.env.Web.Exists(ctx, audioURL) {
		_, err := x.MakeContent(ctx, videoURL, "mp4")
		return err
	}

	v, err := x.MakeContent(ctx, videoURL, "mp4", WithModifier("(video)"))
	if err != nil {
		return err
	}
	a, err := x.MakeContent(ctx, audioURL, "mp4", WithModifier("(audio)"))
	if err != nil {
		return err
	}
	if v != nil && a != nil {
		x.env.Merges.Add(v.ID, a.ID)
	}
	return nil
}

// AudioURL derives the audio track location from a DASH video url.
func AudioURL(videoURL string) string {
	u, err := url.Parse(videoURL)
	if err != nil || !dashSegment.MatchString(u.Path) {
		return ""
	}
	u.Path = dashSegment.ReplaceAllString(u.Path, "DASH_audio.mp4")
	u.RawQuery = ""
	return u.String()
}
