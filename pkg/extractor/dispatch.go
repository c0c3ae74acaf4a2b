package extractor

import (
	"net/url"
	"strings"

	"github.com/MalloyDelacroix/DownloaderForReddit-sub002/pkg/domain"
)

// Registration binds an extractor constructor to the url substrings it
// handles. Keys is consulted on every assignment so dynamic lists stay
// current.
type Registration struct {
	Name string
	Keys func() []string
	New  func(env *Env, src Source) Extractor
}

func staticKeys(keys ...string) func() []string {
	return func() []string { return keys }
}

// Table assigns urls to extractors. Registrations are tried in order and
// the first enabled one with a matching key wins. Urls matching no key fall
// back to the direct extractor when they name a media file.
type Table struct {
	regs    []Registration
	direct  Registration
	enabled func(name string) bool
}

// NewTable creates the table of built in extractors. enabled reports
// whether a registration may be used; nil enables all of them.
func NewTable(sites *SupportedSites, enabled func(name string) bool) *Table {
	if enabled == nil {
		enabled = func(string) bool { return true }
	}
	return &Table{
		regs: []Registration{
			{Name: "imgur", Keys: staticKeys("imgur.com"), New: NewImgur},
			{Name: "vidble", Keys: staticKeys("vidble.com"), New: NewVidble},
			{Name: "gfycat", Keys: staticKeys("gfycat.com"), New: NewGfycat},
			{Name: "redgifs", Keys: staticKeys("redgifs.com"), New: NewRedgifs},
			{Name: "reddit_video", Keys: staticKeys("v.redd.it"), New: NewRedditVideo},
			{Name: "reddit_gallery", Keys: staticKeys("reddit.com/gallery"), New: NewRedditGallery},
			{Name: "generic_video", Keys: sites.Keys, New: NewGenericVideo},
		},
		direct:  Registration{Name: "direct", New: NewDirect},
		enabled: enabled,
	}
}

// Assign returns the registration responsible for rawURL. Keys are matched
// against the host and path only.
func (t *Table) Assign(rawURL string) (Registration, bool) {
	lower := strings.ToLower(rawURL)
	target := lower
	if u, err := url.Parse(lower); err == nil && u.Host != "" {
		target = u.Host + u.Path
	}
	for _, reg := range t.regs {
		if !t.enabled(reg.Name) {
			continue
		}
		for _, key := range reg.Keys() {
			if key != "" && strings.Contains(target, key) {
				return reg, true
			}
		}
	}
	if t.enabled(t.direct.Name) && domain.IsMediaExtension(ExtensionFromURL(lower)) {
		return t.direct, true
	}
	return Registration{}, false
}

// Extractor builds the extractor for src.URL.
func (t *Table) Extractor(env *Env, src Source) (Extractor, bool) {
	reg, ok := t.Assign(src.URL)
	if !ok {
		return nil, false
	}
	return reg.New(env, src), true
}
