package domain

import (
	"fmt"
	"time"
)

// ObjectType distinguishes the two kinds of tracked content source.
type ObjectType string

const (
	UserObject      ObjectType = "USER"
	SubredditObject ObjectType = "SUBREDDIT"
)

// CommentSort is the order in which a submission's comments are requested.
type CommentSort int

const (
	SortBest CommentSort = iota
	SortTop
	SortNew
	SortControversial
	SortOld
	SortQA
)

// ProviderKeyword returns the value the remote API expects for the sort
// parameter.
func (s CommentSort) ProviderKeyword() string {
	switch s {
	case SortTop:
		return "top"
	case SortNew:
		return "new"
	case SortControversial:
		return "controversial"
	case SortOld:
		return "old"
	case SortQA:
		return "qa"
	default:
		return "confidence"
	}
}

func (s CommentSort) String() string {
	switch s {
	case SortBest:
		return "best"
	case SortQA:
		return "q&a"
	default:
		return s.ProviderKeyword()
	}
}

// ParseCommentSort accepts the names returned by CommentSort.String.
func ParseCommentSort(name string) (CommentSort, error) {
	for s := SortBest; s <= SortQA; s++ {
		if s.String() == name || s.ProviderKeyword() == name {
			return s, nil
		}
	}
	return SortBest, fmt.Errorf("unknown comment sort %q", name)
}

// SelfTextFormat selects how self-post and comment bodies are written to disk.
type SelfTextFormat string

const (
	FormatText SelfTextFormat = "txt"
	FormatHTML SelfTextFormat = "html"
)

// ObjectSettings is the per-object download policy that governs every post
// for which the object is the significant reddit object.
type ObjectSettings struct {
	PostLimit int       `json:"post_limit" mapstructure:"post_limit"`
	MinScore  int       `json:"min_score" mapstructure:"min_score"`
	DateLimit time.Time `json:"date_limit" mapstructure:"date_limit"`

	AvoidDuplicates bool `json:"avoid_duplicates" mapstructure:"avoid_duplicates"`
	DownloadImages  bool `json:"download_images" mapstructure:"download_images"`
	DownloadGifs    bool `json:"download_gifs" mapstructure:"download_gifs"`
	DownloadVideos  bool `json:"download_videos" mapstructure:"download_videos"`

	DownloadSelfPostText bool           `json:"download_self_post_text" mapstructure:"download_self_post_text"`
	ExtractSelfPostLinks bool           `json:"extract_self_post_links" mapstructure:"extract_self_post_links"`
	SelfPostFormat       SelfTextFormat `json:"self_post_format" mapstructure:"self_post_format"`

	ExtractComments          bool        `json:"extract_comments" mapstructure:"extract_comments"`
	CommentScoreLimit        int         `json:"comment_score_limit" mapstructure:"comment_score_limit"`
	DownloadComments         bool        `json:"download_comments" mapstructure:"download_comments"`
	DownloadCommentScore     int         `json:"download_comment_score" mapstructure:"download_comment_score"`
	ExtractCommentLinks      bool        `json:"extract_comment_links" mapstructure:"extract_comment_links"`
	ExtractCommentLinksScore int         `json:"extract_comment_links_score" mapstructure:"extract_comment_links_score"`
	CommentSort              CommentSort `json:"comment_sort" mapstructure:"comment_sort"`
	MaxCommentDepth          int         `json:"max_comment_depth" mapstructure:"max_comment_depth"`
	MaxCommentReplies        int         `json:"max_comment_replies" mapstructure:"max_comment_replies"`

	PostTitleTemplate    string `json:"post_title_template" mapstructure:"post_title_template"`
	PostPathTemplate     string `json:"post_path_template" mapstructure:"post_path_template"`
	CommentTitleTemplate string `json:"comment_title_template" mapstructure:"comment_title_template"`
	CommentPathTemplate  string `json:"comment_path_template" mapstructure:"comment_path_template"`
}

// RedditObject is a named content source, either a user or a subreddit.
// Name is unique within its ObjectType.
type RedditObject struct {
	ID         int64
	Name       string
	ObjectType ObjectType
	Settings   ObjectSettings
	DateAdded  time.Time
	// LastDownload is the posted time of the newest post seen by a previous
	// session, used to avoid re-listing old submissions.
	LastDownload time.Time
}
