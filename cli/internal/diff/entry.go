package diff

import (
	"fmt"

	"convcommit/cli/internal/git"
)

// Kind says how an Entry is rendered.
type Kind int

const (
	// KindDiff carries the full staged diff.
	KindDiff Kind = iota
	// KindTruncated carries a diff cut to Limit bytes plus the truncation notice.
	KindTruncated
	// KindExcluded is a placeholder for a file on the exclusion list.
	KindExcluded
	// KindDeleted is a note for a deleted file.
	KindDeleted
)

// Entry is one staged file. Text is empty for KindExcluded and KindDeleted.
type Entry struct {
	Path     string
	OrigPath string
	Status   git.Status
	Kind     Kind
	Text     string
	Limit    int
}

// String renders the entry as it appears in the prompt.
func (e Entry) String() string {
	switch e.Kind {
	case KindExcluded:
		return fmt.Sprintf("* Changes to %s were made", e.Path)
	case KindDeleted:
		return fmt.Sprintf("* file: %s was deleted", e.Path)
	case KindTruncated:
		return fmt.Sprintf("Diff for %s is too large, truncated:\n%s\n", e.Path, e.Text)
	default:
		return e.Text
	}
}
