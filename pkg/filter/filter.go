package filter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// RedditVideoDomain is the platform's own video host
const RedditVideoDomain = "v.redd.it"

// Candidate is a content item about to be persisted
type Candidate struct {
	Post      *domain.Post
	Settings  domain.ObjectSettings
	URL       string
	Extension string
}

// Filter defines the interface for one content check. A rejection carries a
// human readable reason.
type Filter interface {
	ShouldKeep(ctx context.Context, c Candidate) (bool, string)
}

// URLCounter is the store query used by the duplicate check
type URLCounter interface {
	CountContentByURL(ctx context.Context, url string) (int, error)
}

// DuplicateFilter rejects urls that already have a content row when the
// governing object avoids duplicates
type DuplicateFilter struct {
	store URLCounter
}

// NewDuplicateFilter creates a new duplicate filter
func NewDuplicateFilter(store URLCounter) *DuplicateFilter {
	return &DuplicateFilter{store: store}
}

// ShouldKeep returns false if the url is already stored
func (f *DuplicateFilter) ShouldKeep(ctx context.Context, c Candidate) (bool, string) {
	if !c.Settings.AvoidDuplicates {
		return true, ""
	}
	n, err := f.store.CountContentByURL(ctx, c.URL)
	switch {
	case err != nil:
		return false, fmt.Sprintf("duplicate check failed for %s: %v", c.URL, err)
	case n == 1:
		return false, fmt.Sprintf("duplicate url: %s", c.URL)
	case n > 1:
		return false, fmt.Sprintf("ambiguous duplicate url (%d rows): %s", n, c.URL)
	}
	return true, ""
}

// RedditVideoFilter rejects platform-hosted video when globally disabled
type RedditVideoFilter struct {
	allowed func() bool
}

// NewRedditVideoFilter creates a new reddit video filter. allowed is
// consulted on every call.
func NewRedditVideoFilter(allowed func() bool) *RedditVideoFilter {
	return &RedditVideoFilter{allowed: allowed}
}

// ShouldKeep returns false for v.redd.it posts when downloads are disabled
func (f *RedditVideoFilter) ShouldKeep(_ context.Context, c Candidate) (bool, string) {
	if c.Post != nil && strings.EqualFold(c.Post.Domain, RedditVideoDomain) && !f.allowed() {
		return false, "reddit video downloads are disabled"
	}
	return true, ""
}

// FileTypeFilter rejects media kinds the governing object does not download
type FileTypeFilter struct{}

// ShouldKeep returns false if the extension's kind is toggled off
func (FileTypeFilter) ShouldKeep(_ context.Context, c Candidate) (bool, string) {
	kind := domain.ClassifyExtension(c.Extension)
	allowed := true
	switch kind {
	case domain.ImageFile:
		allowed = c.Settings.DownloadImages
	case domain.GifFile:
		allowed = c.Settings.DownloadGifs
	case domain.VideoFile:
		allowed = c.Settings.DownloadVideos
	}
	if !allowed {
		return false, fmt.Sprintf("%s downloads are disabled: %s", kind, c.URL)
	}
	return true, ""
}

// ContentFilter runs every check in order and remembers the most recent
// rejection reason. It never mutates stored state.
type ContentFilter struct {
	filters []Filter

	mu      sync.Mutex
	message string
}

// NewContentFilter creates a new content filter from the given checks
func NewContentFilter(filters ...Filter) *ContentFilter {
	return &ContentFilter{filters: filters}
}

// Default builds the standard duplicate, reddit video and file type chain.
func Default(store URLCounter, redditVideos func() bool) *ContentFilter {
	return NewContentFilter(NewDuplicateFilter(store), NewRedditVideoFilter(redditVideos), FileTypeFilter{})
}

// Check reports whether c passes every filter and, if not, why.
func (f *ContentFilter) Check(ctx context.Context, c Candidate) (bool, string) {
	for _, flt := range f.filters {
		if keep, reason := flt.ShouldKeep(ctx, c); !keep {
			f.mu.Lock()
			f.message = reason
			f.mu.Unlock()
			return false, reason
		}
	}
	return true, ""
}

// FilterContent reports whether the url of post may become a content row.
func (f *ContentFilter) FilterContent(ctx context.Context, post *domain.Post, settings domain.ObjectSettings, url, ext string) bool {
	keep, _ := f.Check(ctx, Candidate{Post: post, Settings: settings, URL: url, Extension: ext})
	return keep
}

// Message returns the most recent rejection reason.
func (f *ContentFilter) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}
