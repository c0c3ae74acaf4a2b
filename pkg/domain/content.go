package domain

import (
	"strings"
	"time"
)

// Content is one downloadable file resolved from a post or a comment.
type Content struct {
	ID            int64
	Title         string
	Extension     string
	URL           string
	UserName      string
	SubredditName string
	PostID        int64
	// CommentID is set only for content resolved from a comment.
	CommentID int64

	DirectoryPath string
	DownloadTitle string

	Downloaded        bool
	DownloadError     ErrorKind
	ErrorMessage      string
	DownloadSessionID int64
	DateCreated       time.Time
}

// FileName returns the download title joined with the extension.
func (c *Content) FileName() string {
	if c.Extension == "" {
		return c.DownloadTitle
	}
	return c.DownloadTitle + "." + c.Extension
}

// FileKind is the closed set of media classes used by the file-type filter.
type FileKind int

const (
	OtherFile FileKind = iota
	ImageFile
	GifFile
	VideoFile
)

func (k FileKind) String() string {
	switch k {
	case ImageFile:
		return "image"
	case GifFile:
		return "gif"
	case VideoFile:
		return "video"
	default:
		return "other"
	}
}

var extensionKinds = map[string]FileKind{
	"jpg":  ImageFile,
	"jpeg": ImageFile,
	"png":  ImageFile,
	"bmp":  ImageFile,
	"webp": ImageFile,
	"tif":  ImageFile,
	"tiff": ImageFile,
	"heic": ImageFile,
	"gif":  GifFile,
	"gifv": GifFile,
	"mp4":  VideoFile,
	"webm": VideoFile,
	"mkv":  VideoFile,
	"mov":  VideoFile,
	"avi":  VideoFile,
	"flv":  VideoFile,
	"m4v":  VideoFile,
	"wmv":  VideoFile,
}

// ClassifyExtension maps a file extension, with or without a leading dot, to
// its FileKind. Unknown extensions are OtherFile.
func ClassifyExtension(ext string) FileKind {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if kind, ok := extensionKinds[ext]; ok {
		return kind
	}
	return OtherFile
}

// IsMediaExtension reports whether ext is a recognised media extension.
func IsMediaExtension(ext string) bool {
	return ClassifyExtension(ext) != OtherFile
}

// MergeSet pairs a video content item with its separately hosted audio track.
// It lives in memory only, for the duration of one session.
type MergeSet struct {
	VideoID int64
	AudioID int64
	Created time.Time
}

// DownloadSession is one logical run of the pipeline.
type DownloadSession struct {
	ID                int64
	Name              string
	StartTime         time.Time
	EndTime           time.Time
	ExtractionThreads int
	DownloadThreads   int
	ExtractedCount    int
	DownloadedCount   int
}
