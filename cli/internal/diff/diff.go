// Package diff collects a repository's staged changes into per-file entries
// that are rendered as one text blob for the commit-message prompt.
//
// # Order
// Entries follow the order git reports in "git diff --cached --name-status".
//
// # Exclusions
// A staged path is excluded when it is a substring of any exclusion entry
// (default: instructions_prompt.md plus the prompt file in use). Excluded
// files are reported by name only. Substring matching can exclude a short
// path such as "a.md" when an entry happens to contain it; this is kept for
// compatibility with existing prompt setups.
//
// # Deleted files
// Deleted files are reported as a one-line note; their diff is never read.
//
// # Large files
// Each file's diff is capped at Collector.MaxBytes (see Limit). 0 disables
// the cap.
//
// # Empty index
// When nothing is staged, Collect returns an error matching
// ErrNoStagedChanges rather than an empty result.
package diff

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"convcommit/cli/internal/erruser"
	"convcommit/cli/internal/git"
)

// DefaultMaxBytes is the default per-file diff budget in bytes.
const DefaultMaxBytes = 1024

// DefaultPromptName is always on the exclusion list.
const DefaultPromptName = "instructions_prompt.md"

// ErrNoStagedChanges indicates the index has no changes relative to HEAD.
var ErrNoStagedChanges = errors.New("no staged changes")

// Collector builds Entries from the staged changes of a repository.
type Collector struct {
	// MaxBytes is the per-file diff budget; 0 means unlimited.
	MaxBytes int
	// Exclude lists extra exclusion entries; DefaultPromptName is always included.
	Exclude []string
}

// NewCollector returns a Collector with the given budget and extra exclusions.
func NewCollector(maxBytes int, exclude ...string) *Collector {
	return &Collector{MaxBytes: maxBytes, Exclude: exclude}
}

// Collect resolves the repository containing repoPath and returns one Entry
// per staged file. Fails with git.ErrNotRepository, git.ErrBareRepository or
// ErrNoStagedChanges (all matchable with errors.Is).
func (c *Collector) Collect(ctx context.Context, repoPath string) ([]Entry, error) {
	root, err := git.RepoRoot(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	changes, err := git.StagedChanges(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return nil, erruser.New("No changes are staged for commit.", ErrNoStagedChanges)
	}

	entries := make([]Entry, 0, len(changes))
	for _, ch := range changes {
		e := Entry{Path: ch.Path, OrigPath: ch.OrigPath, Status: ch.Status}
		switch {
		case c.excluded(ch.Path):
			e.Kind = KindExcluded
		case ch.Status == git.StatusDeleted:
			e.Kind = KindDeleted
		default:
			raw, err := git.StagedDiff(ctx, root, ch)
			if err != nil {
				return nil, err
			}
			text, truncated := Limit(strings.TrimRight(raw, "\n"), c.MaxBytes)
			e.Text = text
			e.Kind = KindDiff
			if truncated {
				e.Kind = KindTruncated
				e.Limit = c.MaxBytes
			}
			log.Debug().Str("file", ch.Path).Int("bytes", len(raw)).Bool("truncated", truncated).Msg("staged diff")
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// excluded reports whether path is contained in any exclusion entry.
func (c *Collector) excluded(path string) bool {
	if strings.Contains(DefaultPromptName, path) {
		return true
	}
	for _, x := range c.Exclude {
		if x != "" && strings.Contains(x, path) {
			return true
		}
	}
	return false
}

// Render joins the rendered entries, one block per line, in order.
func Render(entries []Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "\n")
}
