package naming

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// MaxNameLength bounds a single sanitized path element, in runes
const MaxNameLength = 180

// Context is the fixed set of values a title or path template can reference.
// It is built once per content candidate and never mutates domain rows.
type Context struct {
	Title           string
	ID              string
	AuthorName      string
	SubredditName   string
	SignificantName string
	Domain          string
	DatePosted      time.Time
	Score           int

	// Set for comment-derived content only.
	CommentID     string
	CommentAuthor string
	CommentScore  int

	MediaID    string
	Sequence   int
	LinkNumber int
	Modifier   string
}

// PostContext builds the naming context of a post.
func PostContext(p *domain.Post, significantName string) Context {
	return Context{
		Title:           p.Title,
		ID:              p.RedditID,
		AuthorName:      p.AuthorName,
		SubredditName:   p.SubredditName,
		SignificantName: significantName,
		Domain:          p.Domain,
		DatePosted:      p.DatePosted,
		Score:           p.Score,
	}
}

// CommentContext builds the naming context of a comment of p.
func CommentContext(p *domain.Post, c *domain.Comment, significantName string) Context {
	ctx := PostContext(p, significantName)
	ctx.CommentID = c.RedditID
	ctx.CommentAuthor = c.AuthorName
	ctx.CommentScore = c.Score
	return ctx
}

var placeholder = regexp.MustCompile(`%\[([a-z_]+)\]`)

func (c Context) value(key string) (string, bool) {
	switch key {
	case "title":
		return c.Title, true
	case "id":
		return c.ID, true
	case "author_name":
		return c.AuthorName, true
	case "subreddit_name":
		return c.SubredditName, true
	case "significant_name":
		return c.SignificantName, true
	case "domain":
		return c.Domain, true
	case "date_posted":
		if c.DatePosted.IsZero() {
			return "", true
		}
		return c.DatePosted.Format("2006-01-02"), true
	case "score":
		return strconv.Itoa(c.Score), true
	case "media_id":
		return c.MediaID, true
	case "comment_id":
		return c.CommentID, true
	case "comment_author":
		return c.CommentAuthor, true
	case "comment_score":
		return strconv.Itoa(c.CommentScore), true
	}
	return "", false
}

// Render substitutes placeholders in template. Unknown placeholders are left
// as written.
func Render(template string, ctx Context) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := ctx.value(key); ok {
			return v
		}
		return m
	})
}

// Title renders the title template and appends the link number, the album
// sequence and the name modifier, then sanitizes the result.
func Title(template string, ctx Context) string {
	if template == "" {
		template = "%[title]"
	}
	title := Render(template, ctx)
	if ctx.LinkNumber > 0 {
		title += " " + strconv.Itoa(ctx.LinkNumber)
	}
	if ctx.Sequence > 0 {
		title += " " + strconv.Itoa(ctx.Sequence)
	}
	if ctx.Modifier != "" {
		title += " " + ctx.Modifier
	}
	title = Sanitize(title)
	if title == "" {
		title = Sanitize(ctx.ID)
	}
	if title == "" {
		title = "untitled"
	}
	return title
}

// Path renders the path template below root. Each template segment is
// sanitized on its own so values cannot introduce extra directories.
func Path(root, template string, ctx Context) string {
	parts := []string{root}
	for _, seg := range strings.Split(template, "/") {
		if name := Sanitize(Render(seg, ctx)); name != "" {
			parts = append(parts, name)
		}
	}
	return filepath.Join(parts...)
}

// Sanitize makes s safe to use as a single file or directory name.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		case unicode.IsControl(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if runes := []rune(out); len(runes) > MaxNameLength {
		out = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	out = strings.TrimRight(out, ". ")
	if out == "." || out == ".." {
		return ""
	}
	return out
}
