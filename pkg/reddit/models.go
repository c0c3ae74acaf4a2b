package reddit

import (
	"encoding/json"
	"strings"
	"time"
)

// Listing mimics reddit's paged listing response
type Listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string  `json:"after"`
		Children []Thing `json:"children"`
	} `json:"data"`
}

// Thing is one listing child. Data is decoded according to Kind.
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Submission is a link or self post
type Submission struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"` // fullname, e.g. "t3_abc123"
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	Domain       string  `json:"domain"`
	Permalink    string  `json:"permalink"`
	Author       string  `json:"author"`
	Subreddit    string  `json:"subreddit"`
	Score        int     `json:"score"`
	IsSelf       bool    `json:"is_self"`
	IsVideo      bool    `json:"is_video"`
	IsGallery    bool    `json:"is_gallery"`
	SelfText     string  `json:"selftext"`
	SelfTextHTML string  `json:"selftext_html"`
	CreatedUTC   float64 `json:"created_utc"`

	Media       *Media `json:"media"`
	SecureMedia *Media `json:"secure_media"`

	CrosspostParent     string        `json:"crosspost_parent"`
	CrosspostParentList []*Submission `json:"crosspost_parent_list"`

	GalleryData   *GalleryData             `json:"gallery_data"`
	MediaMetadata map[string]MediaMetadata `json:"media_metadata"`
}

// Created returns the posted time
func (s *Submission) Created() time.Time {
	return time.Unix(int64(s.CreatedUTC), 0).UTC()
}

// IsCrosspost reports whether the submission links to a parent submission.
func (s *Submission) IsCrosspost() bool {
	return s.CrosspostParent != ""
}

// ParentID returns the bare id of the crosspost parent.
func (s *Submission) ParentID() string {
	return strings.TrimPrefix(s.CrosspostParent, "t3_")
}

// RedditVideo returns the native video metadata, preferring secure_media.
func (s *Submission) RedditVideo() *Video {
	if s.SecureMedia != nil && s.SecureMedia.RedditVideo != nil {
		return s.SecureMedia.RedditVideo
	}
	if s.Media != nil {
		return s.Media.RedditVideo
	}
	return nil
}

// Media holds embedded media metadata
type Media struct {
	RedditVideo *Video `json:"reddit_video"`
}

// Video describes a v.redd.it upload
type Video struct {
	FallbackURL string `json:"fallback_url"`
	DashURL     string `json:"dash_url"`
	HLSURL      string `json:"hls_url"`
	HasAudio    bool   `json:"has_audio"`
	IsGif       bool   `json:"is_gif"`
	Height      int    `json:"height"`
	Width       int    `json:"width"`
}

// GalleryData lists gallery members in display order
type GalleryData struct {
	Items []GalleryItem `json:"items"`
}

// GalleryItem references one entry of media_metadata
type GalleryItem struct {
	MediaID string `json:"media_id"`
	ID      int64  `json:"id"`
}

// MediaMetadata describes one gallery member
type MediaMetadata struct {
	Status string `json:"status"`
	Kind   string `json:"e"`
	Mime   string `json:"m"`
	Source struct {
		URL string `json:"u"`
		GIF string `json:"gif"`
		MP4 string `json:"mp4"`
	} `json:"s"`
}

// Comment is one node of a reply tree
type Comment struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"` // fullname, e.g. "t1_xyz789"
	Author     string  `json:"author"`
	Subreddit  string  `json:"subreddit"`
	Body       string  `json:"body"`
	BodyHTML   string  `json:"body_html"`
	Score      int     `json:"score"`
	LinkID     string  `json:"link_id"`
	ParentID   string  `json:"parent_id"`
	CreatedUTC float64 `json:"created_utc"`
	Replies    Replies `json:"replies"`
}

// Created returns the posted time
func (c *Comment) Created() time.Time {
	return time.Unix(int64(c.CreatedUTC), 0).UTC()
}

// SubmissionID returns the bare id of the submission the comment belongs to.
func (c *Comment) SubmissionID() string {
	return strings.TrimPrefix(c.LinkID, "t3_")
}

// Replies is the decoded replies field, which reddit sends as either an empty
// string or a listing. More is set when the listing was truncated.
type Replies struct {
	Comments []*Comment
	More     bool
}

func (r *Replies) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] == '"' || string(data) == "null" {
		return nil
	}
	var l Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return err
	}
	comments, more, err := decodeComments(&l)
	if err != nil {
		return err
	}
	r.Comments, r.More = comments, more
	return nil
}

func decodeComments(l *Listing) ([]*Comment, bool, error) {
	var (
		out  []*Comment
		more bool
	)
	for _, child := range l.Data.Children {
		switch child.Kind {
		case "t1":
			var c Comment
			if err := json.Unmarshal(child.Data, &c); err != nil {
				return nil, false, err
			}
			out = append(out, &c)
		case "more":
			more = true
		}
	}
	return out, more, nil
}

func decodeSubmissions(l *Listing) ([]*Submission, error) {
	var out []*Submission
	for _, child := range l.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var s Submission
		if err := json.Unmarshal(child.Data, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, nil
}
