// Package git (repo.go) provides repository discovery and index status helpers.
package git

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"convcommit/cli/internal/erruser"
)

var (
	// ErrNotRepository indicates the directory is not inside a git work tree.
	ErrNotRepository = errors.New("not a git repository")
	// ErrBareRepository indicates the directory is a bare repository (no work tree, no index to diff).
	ErrBareRepository = errors.New("bare git repository")
)

// RepoRoot returns the absolute path of the git repository root containing dir.
// Runs "git rev-parse --is-bare-repository --show-toplevel" with Dir=dir.
// Returns an error matching ErrBareRepository for bare repositories and
// ErrNotRepository when dir is not inside a repository.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := output(ctx, dir, "rev-parse", "--is-bare-repository")
	if err != nil {
		return "", erruser.New("This directory is not inside a Git repository.", errors.Join(ErrNotRepository, err))
	}
	if strings.TrimSpace(out) == "true" {
		return "", erruser.New("The provided path is a bare repository or not a valid Git repository.", ErrBareRepository)
	}
	out, err = output(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", erruser.New("This directory is not inside a Git repository.", errors.Join(ErrNotRepository, err))
	}
	return filepath.Abs(strings.TrimSpace(out))
}

// HasStagedChanges reports whether the index at repoRoot differs from HEAD.
// Runs "git diff --cached --quiet"; exit 1 means changes are staged.
func HasStagedChanges(ctx context.Context, repoRoot string) (bool, error) {
	cmd := command(ctx, repoRoot, "diff", "--cached", "--quiet")
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, erruser.New("Could not check staged changes.", err)
}

// command builds a git subprocess rooted at dir with the minimal environment.
func command(ctx context.Context, dir string, args ...string) *exec.Cmd {
	log.Debug().Str("dir", dir).Strs("args", args).Msg("git")
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = minimalEnv()
	return cmd
}

// output runs git with args in dir and returns stdout. On failure the error
// includes git's trimmed stderr.
func output(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := command(ctx, dir, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", errors.Join(err, errors.New(strings.TrimSpace(string(exitErr.Stderr))))
		}
		return "", err
	}
	return string(out), nil
}
