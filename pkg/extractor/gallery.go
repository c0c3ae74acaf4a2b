package extractor

import (
	"context"
	"html"
	"strings"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// RedditGallery emits one content row per gallery member, in display order.
type RedditGallery struct {
	Base
}

// NewRedditGallery creates a gallery extractor
func NewRedditGallery(env *Env, src Source) Extractor {
	return &RedditGallery{Base: newBase(env, src)}
}

func (x *RedditGallery) Name() string { return "reddit_gallery" }

func (x *RedditGallery) Extract(ctx context.Context) {
	x.run(ctx, x.Name(), x.extract)
}

func (x *RedditGallery) extract(ctx context.Context) error {
	sub, err := x.origin(ctx)
	if err != nil {
		return err
	}
	if sub.GalleryData == nil || len(sub.GalleryData.Items) == 0 {
		return Fail(domain.FailedToLocate, "no gallery data for %s", sub.ID)
	}
	for i, item := range sub.GalleryData.Items {
		if !x.Continue() {
			return nil
		}
		meta, ok := sub.MediaMetadata[item.MediaID]
		if !ok || (meta.Status != "" && meta.Status != "valid") {
			x.log().WithField("media_id", item.MediaID).Warn("Gallery item has no usable metadata")
			continue
		}
		link, ext := galleryLink(item.MediaID, meta.Mime, meta.Source.URL, meta.Source.MP4)
		if link == "" {
			continue
		}
		if _, err := x.MakeContent(ctx, link, ext, WithSequence(i+1), WithMediaID(item.MediaID)); err != nil {
			return err
		}
	}
	return nil
}

// galleryLink prefers the direct i.redd.it location derived from the mime
// type, falling back to the escaped source url.
func galleryLink(mediaID, mime, source, mp4 string) (string, string) {
	if mp4 != "" {
		return html.UnescapeString(mp4), "mp4"
	}
	if i := strings.Index(mime, "/"); i >= 0 && mediaID != "" {
		ext := strings.ToLower(mime[i+1:])
		if ext == "jpeg" {
			ext = "jpg"
		}
		return "https://i.redd.it/" + mediaID + "." + ext, ext
	}
	if source == "" {
		return "", ""
	}
	source = html.UnescapeString(source)
	return source, ExtensionFromURL(source)
}
