package watcher

import (
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Change is what happened to a path.
type Change string

const (
	// EventModified means the file was created or written and has settled.
	EventModified Change = "modified"
	// EventRemoved means the file was deleted or renamed away.
	EventRemoved Change = "removed"
)

// Event is one settled change under a watched directory.
type Event struct {
	Type Change
	Path string
}

// editorLeftovers are the swap, backup and probe files editors write next
// to a template while it is being saved.
var editorLeftovers = []string{"*.swp", "*.swx", "*~", "4913", ".DS_Store"}

// Options configures the watcher.
type Options struct {
	// IgnorePatterns are matched against base names. Nil selects the
	// editor leftovers and also turns IgnoreHidden on.
	IgnorePatterns []string
	// SettleDelay is how long a file must stay quiet before its change is reported.
	SettleDelay  time.Duration
	IgnoreHidden bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 100 * time.Millisecond
	}
	if o.IgnorePatterns == nil {
		o.IgnorePatterns = slices.Clone(editorLeftovers)
		o.IgnoreHidden = true
	}
}

func (o *Options) shouldIgnore(path string) bool {
	if o.IgnoreHidden && hasHiddenSegment(path) {
		return true
	}
	base := filepath.Base(path)
	return slices.ContainsFunc(o.IgnorePatterns, func(pattern string) bool {
		ok, err := filepath.Match(pattern, base)
		return err == nil && ok
	})
}

func hasHiddenSegment(path string) bool {
	for _, part := range strings.Split(filepath.Clean(path), string(filepath.Separator)) {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
