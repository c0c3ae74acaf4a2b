package extractor

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// minSiteKeyLen drops keys short enough to match unrelated urls.
const minSiteKeyLen = 4

// SupportedSites holds the generic video site keys loaded from a yt-dlp
// supportedsites.md file. Keys are reloaded once the TTL has passed.
type SupportedSites struct {
	path string
	ttl  time.Duration
	log  logrus.FieldLogger
	now  func() time.Time

	mu       sync.Mutex
	keys     []string
	loadedAt time.Time
}

// NewSupportedSites creates a lazily loaded site list. An empty path
// disables generic video extraction.
func NewSupportedSites(path string, ttl time.Duration, log logrus.FieldLogger) *SupportedSites {
	return &SupportedSites{path: path, ttl: ttl, log: log, now: time.Now}
}

// Keys returns the current site keys, reloading them when stale. A load
// failure leaves the list empty until the next reload.
func (s *SupportedSites) Keys() []string {
	if s == nil || s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.loadedAt.IsZero() && (s.ttl <= 0 || now.Sub(s.loadedAt) < s.ttl) {
		return s.keys
	}
	s.loadedAt = now
	src, err := os.ReadFile(s.path)
	if err != nil {
		s.keys = nil
		s.log.WithError(err).WithField("path", s.path).Warn("Failed to load supported sites")
		return nil
	}
	s.keys = ParseSupportedSites(src)
	s.log.WithField("count", len(s.keys)).Debug("Loaded supported sites")
	return s.keys
}

// ParseSupportedSites returns the lowercased site keys named in bold inside
// list items, with any ":subtype" suffix removed.
func ParseSupportedSites(src []byte) []string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	seen := make(map[string]bool)
	var keys []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		em, ok := n.(*ast.Emphasis)
		if !ok || em.Level != 2 || !inListItem(n) {
			return ast.WalkContinue, nil
		}
		key := strings.ToLower(strings.TrimSpace(plainText(em, src)))
		if i := strings.Index(key, ":"); i >= 0 {
			key = key[:i]
		}
		if len(key) >= minSiteKeyLen && key != "generic" && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		return ast.WalkSkipChildren, nil
	})
	return keys
}

func inListItem(n ast.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.ListItem); ok {
			return true
		}
	}
	return false
}

func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(src))
			continue
		}
		sb.WriteString(plainText(c, src))
	}
	return sb.String()
}
