// Package naming derives output PDF names from the original file name and
// the message date, and guarantees uniqueness within a batch.
package naming

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	// Ext is the extension appended to every assigned name.
	Ext = ".pdf"
	// FallbackDate replaces the date component when no send time could be
	// parsed.
	FallbackDate = "NoDate"
	// FallbackWords replaces the word component when nothing survives
	// sanitization.
	FallbackWords = "NoName"
)

var disallowed = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// BaseName computes the canonical output name (without extension) for a
// message: the send date as YYYY-MM-DD (or the fallback token), a fixed
// Email marker, and the first three sanitized words of the original file
// stem.
func BaseName(stem string, sentAt *time.Time) string {
	date := FallbackDate
	if sentAt != nil {
		date = sentAt.Format("2006-01-02")
	}
	return date + "_Email_" + SanitizeStem(stem)
}

// SanitizeStem joins the first three whitespace-delimited tokens of the
// stem with underscores, stripping characters outside [A-Za-z0-9_].
// Sanitizing an already-sanitized stem is a no-op.
func SanitizeStem(stem string) string {
	words := strings.Fields(stem)
	if len(words) > 3 {
		words = words[:3]
	}

	kept := words[:0]
	for _, word := range words {
		if word = disallowed.ReplaceAllString(word, ""); word != "" {
			kept = append(kept, word)
		}
	}

	if len(kept) == 0 {
		return FallbackWords
	}
	return strings.Join(kept, "_")
}

// Registry hands out collision-free output names for one batch run. The
// check-and-reserve sequence runs under a single lock, so no two concurrent
// tasks can claim the same free slot, and suffixes are deterministic given
// reservation order. Names already present in the output directory are
// loaded up front and treated as taken.
type Registry struct {
	mu    sync.Mutex
	taken map[string]struct{}
}

// NewRegistry seeds a registry with the file names already present in dir.
func NewRegistry(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}

	taken := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			taken[entry.Name()] = struct{}{}
		}
	}
	return &Registry{taken: taken}, nil
}

// Reserve claims the first free name for base, appending _1, _2, … until an
// unused slot is found, and returns the assigned file name including the
// extension.
func (r *Registry) Reserve(base string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := base + Ext
	for counter := 1; ; counter++ {
		if _, exists := r.taken[name]; !exists {
			break
		}
		name = fmt.Sprintf("%s_%d%s", base, counter, Ext)
	}

	r.taken[name] = struct{}{}
	return name
}
