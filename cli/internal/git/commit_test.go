package git

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

// Not parallel: sets GIT_EDITOR for the inherited environment.
func TestCommitEdit(t *testing.T) {
	t.Setenv("GIT_EDITOR", "true")
	ctx := context.Background()
	repo := initRepo(t)
	writeFile(t, repo, "f1.txt", "a\nb\n")
	run(t, repo, "git", "add", "f1.txt")

	var out, errOut bytes.Buffer
	if err := CommitEdit(ctx, repo, "feat: add b", Streams{Out: &out, Err: &errOut}); err != nil {
		t.Fatalf("CommitEdit: %v\n%s", err, errOut.String())
	}
	if got := runOut(t, repo, "git", "log", "-1", "--format=%s"); got != "feat: add b" {
		t.Errorf("HEAD subject = %q, want %q", got, "feat: add b")
	}
}

func TestCommitEdit_nothingStaged(t *testing.T) {
	t.Setenv("GIT_EDITOR", "true")
	repo := initRepo(t)
	err := CommitEdit(context.Background(), repo, "feat: nothing", Streams{})
	if !errors.Is(err, ErrNothingStaged) {
		t.Errorf("CommitEdit err = %v, want ErrNothingStaged", err)
	}
}
