package naming

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Registry hands out collision-free file names for one session. A name is
// taken when another download in the session claimed it or a file with that
// name is already on disk.
type Registry struct {
	mu      sync.Mutex
	claimed map[string]bool
	exists  func(path string) bool
}

// NewRegistry creates a registry that checks the local filesystem
func NewRegistry() *Registry {
	return &Registry{
		claimed: make(map[string]bool),
		exists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// Claim reserves dir/title.ext, or the first free "title (n).ext", and returns
// the title to use.
func (r *Registry) Claim(dir, title, ext string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := title
	for n := 1; ; n++ {
		path := filepath.Join(dir, fileName(candidate, ext))
		if !r.claimed[path] && !r.exists(path) {
			r.claimed[path] = true
			return candidate
		}
		candidate = title + " (" + strconv.Itoa(n) + ")"
	}
}

// Release forgets a claim, for downloads that never wrote a file.
func (r *Registry) Release(dir, title, ext string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, filepath.Join(dir, fileName(title, ext)))
}

func fileName(title, ext string) string {
	if ext == "" {
		return title
	}
	return title + "." + ext
}
