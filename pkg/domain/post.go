package domain

import "time"

// Post is the metadata persisted for one submission.
type Post struct {
	ID        int64
	RedditID  string
	Title     string
	URL       string
	Domain    string
	Permalink string
	Score     int
	IsSelf    bool

	AuthorID      int64
	AuthorName    string
	SubredditID   int64
	SubredditName string
	// SignificantID is the RedditObject whose settings govern this post. It is
	// fixed when the post is created.
	SignificantID int64

	DatePosted        time.Time
	DownloadSessionID int64

	Extracted       bool
	ExtractionError ErrorKind
	ErrorMessage    string
}

// Failed reports whether a terminal extraction error is recorded.
func (p *Post) Failed() bool {
	return p.ExtractionError != NoError
}

// Comment is one node of a submission's reply tree. ParentID is zero for
// top level comments.
type Comment struct {
	ID            int64
	RedditID      string
	PostID        int64
	ParentID      int64
	AuthorName    string
	SubredditName string
	Body          string
	BodyHTML      string
	Score         int
	Depth         int
	DatePosted    time.Time

	Extracted       bool
	ExtractionError ErrorKind
	ErrorMessage    string
}
