package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/content"
	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// SelfText writes the body of a self post or a comment to a text or html
// file. The file is written during extraction, so the content row is
// already downloaded when it reaches the download queue.
type SelfText struct {
	Base
}

// NewSelfText creates a self text extractor. src.URL is the permalink of
// the post or comment.
func NewSelfText(env *Env, src Source) Extractor {
	return &SelfText{Base: newBase(env, src)}
}

func (x *SelfText) Name() string { return "self_text" }

func (x *SelfText) Extract(ctx context.Context) {
	x.run(ctx, x.Name(), x.extract)
}

func (x *SelfText) body(ctx context.Context) (content.Body, error) {
	if c := x.src.Comment; c != nil {
		return content.Body{HTML: c.BodyHTML, Markdown: c.Body}, nil
	}
	sub, err := x.submission(ctx)
	if err != nil {
		return content.Body{}, err
	}
	return content.Body{Title: sub.Title, HTML: sub.SelfTextHTML, Markdown: sub.SelfText}, nil
}

func (x *SelfText) extract(ctx context.Context) error {
	body, err := x.body(ctx)
	if err != nil {
		return err
	}
	text, ext, err := content.Render(x.src.Object.Settings.SelfPostFormat, body)
	if err != nil {
		return Fail(domain.UnknownError, "render text: %v", err)
	}

	c, err := x.MakeContent(ctx, x.src.URL, ext)
	if err != nil || c == nil {
		return err
	}
	title := x.env.Names.Claim(c.DirectoryPath, c.DownloadTitle, ext)
	if err := os.MkdirAll(c.DirectoryPath, 0o755); err != nil {
		x.env.Names.Release(c.DirectoryPath, title, ext)
		return Fail(domain.UnknownError, "create directory: %v", err)
	}
	target := filepath.Join(c.DirectoryPath, title+"."+ext)
	if err := os.WriteFile(target, []byte(text), 0o644); err != nil {
		x.env.Names.Release(c.DirectoryPath, title, ext)
		return Fail(domain.UnknownError, "write %s: %v", target, err)
	}
	if title != c.DownloadTitle {
		if err := x.env.Store.SetContentLocation(ctx, c.ID, c.DirectoryPath, title); err != nil {
			return fmt.Errorf("record text location: %w", err)
		}
		c.DownloadTitle = title
	}
	if err := x.env.Store.MarkContentDownloaded(ctx, c.ID, x.env.SessionID); err != nil {
		return fmt.Errorf("mark text downloaded: %w", err)
	}
	c.Downloaded = true
	return nil
}
