// Package git (staged.go) lists staged changes and their per-file diffs.
package git

import (
	"context"
	"fmt"
	"strings"

	"convcommit/cli/internal/erruser"
)

// Status is the single-letter change status reported by git diff --name-status.
type Status byte

const (
	StatusAdded       Status = 'A'
	StatusModified    Status = 'M'
	StatusDeleted     Status = 'D'
	StatusRenamed     Status = 'R'
	StatusCopied      Status = 'C'
	StatusTypeChanged Status = 'T'
	StatusUnmerged    Status = 'U'
	StatusUnknown     Status = 'X'
)

// String returns a lowercase description of s (e.g. "modified").
func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusModified:
		return "modified"
	case StatusDeleted:
		return "deleted"
	case StatusRenamed:
		return "renamed"
	case StatusCopied:
		return "copied"
	case StatusTypeChanged:
		return "type-changed"
	case StatusUnmerged:
		return "unmerged"
	default:
		return "unknown"
	}
}

// Change is one staged file as reported by the index. OrigPath is set only
// for renames and copies; Path is always the destination path.
type Change struct {
	Status   Status
	Path     string
	OrigPath string
}

// StagedChanges returns the staged files in the order git reports them.
// Runs "git diff --cached --name-status -M -z" so paths are never quoted.
// An empty index yields a nil slice and no error.
func StagedChanges(ctx context.Context, repoRoot string) ([]Change, error) {
	out, err := output(ctx, repoRoot, "diff", "--cached", "--name-status", "-M", "-z")
	if err != nil {
		return nil, erruser.New("Could not list staged changes.", err)
	}
	changes, err := parseNameStatus(out)
	if err != nil {
		return nil, erruser.New("Could not list staged changes.", err)
	}
	return changes, nil
}

// parseNameStatus parses NUL-separated --name-status -z output: a status
// token followed by one path, or two paths (source, destination) for R and C.
func parseNameStatus(out string) ([]Change, error) {
	fields := strings.Split(out, "\x00")
	var changes []Change
	for i := 0; i < len(fields); i++ {
		tok := fields[i]
		if tok == "" {
			continue
		}
		st := Status(tok[0])
		if st == StatusRenamed || st == StatusCopied {
			if i+2 >= len(fields) || fields[i+2] == "" {
				return nil, fmt.Errorf("name-status: %q missing paths", tok)
			}
			changes = append(changes, Change{Status: st, OrigPath: fields[i+1], Path: fields[i+2]})
			i += 2
			continue
		}
		if i+1 >= len(fields) || fields[i+1] == "" {
			return nil, fmt.Errorf("name-status: %q missing path", tok)
		}
		switch st {
		case StatusAdded, StatusModified, StatusDeleted, StatusTypeChanged, StatusUnmerged:
		default:
			st = StatusUnknown
		}
		changes = append(changes, Change{Status: st, Path: fields[i+1]})
		i++
	}
	return changes, nil
}

// StagedDiff returns the staged unified diff for a single change. Renames and
// copies pass both paths so git can pair them. Paths are literal pathspecs, so
// "file[1].txt" never matches "file1.txt".
func StagedDiff(ctx context.Context, repoRoot string, c Change) (string, error) {
	args := []string{"--literal-pathspecs", "diff", "--cached", "--no-color", "--no-ext-diff", "-M", "--"}
	if c.OrigPath != "" {
		args = append(args, c.OrigPath)
	}
	args = append(args, c.Path)
	out, err := output(ctx, repoRoot, args...)
	if err != nil {
		return "", erruser.New(fmt.Sprintf("Could not read staged diff for %s.", c.Path), err)
	}
	return out, nil
}
