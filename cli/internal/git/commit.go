// Package git (commit.go) hands a generated message to git's commit editor.
package git

import (
	"context"
	"io"
	"os"
	"os/exec"

	"convcommit/cli/internal/erruser"
)

// ErrNothingStaged is returned by CommitEdit when the index matches HEAD.
var ErrNothingStaged = erruser.New("No changes are staged for commit.", nil)

// Streams connects an interactive git subprocess to the terminal.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// CommitEdit runs "git commit --edit -m message" in repoRoot so the user can
// review the message in their editor. Unlike other helpers it inherits the
// full environment (EDITOR, GIT_EDITOR, TERM).
func CommitEdit(ctx context.Context, repoRoot, message string, s Streams) error {
	staged, err := HasStagedChanges(ctx, repoRoot)
	if err != nil {
		return err
	}
	if !staged {
		return ErrNothingStaged
	}
	cmd := exec.CommandContext(ctx, "git", "-C", repoRoot, "commit", "--edit", "-m", message)
	cmd.Env = os.Environ()
	cmd.Stdin, cmd.Stdout, cmd.Stderr = s.In, s.Out, s.Err
	if err := cmd.Run(); err != nil {
		return erruser.New("git commit did not complete.", err)
	}
	return nil
}
