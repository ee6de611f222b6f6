package diff

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"convcommit/cli/internal/git"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// initRepoDiff creates a repo with one commit holding keep.txt, gone.txt and
// instructions_prompt.md.
func initRepoDiff(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@convcommit.local")
	runGit(t, dir, "config", "user.name", "Test")
	writeFile(t, dir, "keep.txt", "one\n")
	writeFile(t, dir, "gone.txt", "doomed\n")
	writeFile(t, dir, DefaultPromptName, "Write a conventional commit.\n")
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "init")
	return dir
}

func TestCollect_modifiedUnderBudget_fullDiff(t *testing.T) {
	t.Parallel()
	repo := initRepoDiff(t)
	writeFile(t, repo, "keep.txt", "one\ntwo\n")
	runGit(t, repo, "add", "keep.txt")

	entries, err := NewCollector(DefaultMaxBytes).Collect(context.Background(), repo)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Kind != KindDiff || e.Path != "keep.txt" || e.Status != git.StatusModified {
		t.Errorf("entry = %+v", e)
	}
	if !strings.HasPrefix(e.Text, "diff --git a/keep.txt b/keep.txt") || !strings.Contains(e.Text, "+two") {
		t.Errorf("entry text is not the full diff:\n%s", e.Text)
	}
	if strings.HasSuffix(e.Text, "\n") {
		t.Error("entry text should not end with a newline")
	}
	if Render(entries) != e.Text {
		t.Error("Render of a single diff entry should be its text")
	}
}

func TestCollect_deletedFile_note(t *testing.T) {
	t.Parallel()
	repo := initRepoDiff(t)
	runGit(t, repo, "rm", "-q", "gone.txt")

	entries, err := NewCollector(DefaultMaxBytes).Collect(context.Background(), repo)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != KindDeleted {
		t.Fatalf("entries = %+v, want one deletion", entries)
	}
	got := Render(entries)
	if got != "* file: gone.txt was deleted" {
		t.Errorf("Render = %q", got)
	}
	if strings.Contains(got, "doomed") {
		t.Error("deleted file content leaked into output")
	}
}

func TestCollect_excludedPrompt_placeholder(t *testing.T) {
	t.Parallel()
	repo := initRepoDiff(t)
	writeFile(t, repo, DefaultPromptName, "Changed instructions.\n")
	writeFile(t, repo, "prompts/custom.md", "custom\n")
	runGit(t, repo, "add", ".")

	c := NewCollector(DefaultMaxBytes, filepath.Join(repo, "prompts", "custom.md"))
	entries, err := c.Collect(context.Background(), repo)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := Render(entries)
	want := "* Changes to instructions_prompt.md were made\n* Changes to prompts/custom.md were made"
	if got != want {
		t.Errorf("Render =\n%s\nwant\n%s", got, want)
	}
}

func TestCollect_largeFile_truncated(t *testing.T) {
	t.Parallel()
	repo := initRepoDiff(t)
	writeFile(t, repo, "big.txt", strings.Repeat("a long line of text\n", 200))
	runGit(t, repo, "add", "big.txt")

	entries, err := NewCollector(256).Collect(context.Background(), repo)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	e := entries[0]
	if e.Kind != KindTruncated || e.Limit != 256 || e.Status != git.StatusAdded {
		t.Fatalf("entry = %+v", e)
	}
	head := strings.TrimSuffix(e.Text, TruncationNotice(256))
	if len(head) > 256 || head == e.Text {
		t.Errorf("head len = %d, notice present = %v", len(head), head != e.Text)
	}
	rendered := e.String()
	if !strings.HasPrefix(rendered, "Diff for big.txt is too large, truncated:\n") ||
		!strings.HasSuffix(rendered, "... [truncated up to 256 bytes]\n") {
		t.Errorf("rendered = %q", rendered)
	}
}

func TestCollect_zeroBudget_unlimited(t *testing.T) {
	t.Parallel()
	repo := initRepoDiff(t)
	writeFile(t, repo, "big.txt", strings.Repeat("a long line of text\n", 200))
	runGit(t, repo, "add", "big.txt")

	entries, err := NewCollector(0).Collect(context.Background(), repo)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if entries[0].Kind != KindDiff || strings.Count(entries[0].Text, "+a long line of text") != 200 {
		t.Errorf("want the whole diff, got kind %d len %d", entries[0].Kind, len(entries[0].Text))
	}
}

func TestCollect_order(t *testing.T) {
	t.Parallel()
	repo := initRepoDiff(t)
	writeFile(t, repo, "keep.txt", "one\nchanged\n")
	writeFile(t, repo, "a_new.txt", "new\n")
	runGit(t, repo, "rm", "-q", "gone.txt")
	runGit(t, repo, "add", ".")

	entries, err := NewCollector(DefaultMaxBytes).Collect(context.Background(), repo)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	if got := strings.Join(paths, ","); got != "a_new.txt,gone.txt,keep.txt" {
		t.Errorf("order = %s", got)
	}
	blocks := Render(entries)
	if !strings.Contains(blocks, "\n* file: gone.txt was deleted\ndiff --git a/keep.txt") {
		t.Errorf("entries not joined one per line:\n%s", blocks)
	}
}

func TestCollect_noStagedChanges(t *testing.T) {
	t.Parallel()
	repo := initRepoDiff(t)
	writeFile(t, repo, "keep.txt", "unstaged edit\n")
	_, err := NewCollector(DefaultMaxBytes).Collect(context.Background(), repo)
	if !errors.Is(err, ErrNoStagedChanges) {
		t.Errorf("Collect err = %v, want ErrNoStagedChanges", err)
	}
}

func TestCollect_notARepository(t *testing.T) {
	t.Parallel()
	_, err := NewCollector(DefaultMaxBytes).Collect(context.Background(), t.TempDir())
	if !errors.Is(err, git.ErrNotRepository) {
		t.Errorf("Collect err = %v, want git.ErrNotRepository", err)
	}
}

func TestEntry_String(t *testing.T) {
	t.Parallel()
	tests := []struct {
		e    Entry
		want string
	}{
		{Entry{Path: "x.go", Kind: KindDiff, Text: "diff --git a/x.go b/x.go"}, "diff --git a/x.go b/x.go"},
		{Entry{Path: "x.go", Kind: KindExcluded}, "* Changes to x.go were made"},
		{Entry{Path: "x.go", Kind: KindDeleted, Status: git.StatusDeleted}, "* file: x.go was deleted"},
		{Entry{Path: "x.go", Kind: KindTruncated, Text: "abc... [truncated up to 3 bytes]", Limit: 3},
			"Diff for x.go is too large, truncated:\nabc... [truncated up to 3 bytes]\n"},
	}
	for _, tt := range tests {
		if got := tt.e.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCollect_exclusionMatchesBySubstring(t *testing.T) {
	t.Parallel()
	repo := initRepoDiff(t)
	writeFile(t, repo, "prompt.md", "not the instructions file\n")
	runGit(t, repo, "add", "prompt.md")

	entries, err := NewCollector(DefaultMaxBytes).Collect(context.Background(), repo)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	// "prompt.md" is contained in "instructions_prompt.md", so it is reported by name only.
	if len(entries) != 1 || entries[0].Kind != KindExcluded {
		t.Errorf("entries = %+v, want one excluded entry", entries)
	}
}

func TestCollect_bracketedPathGetsOnlyItsOwnDiff(t *testing.T) {
	t.Parallel()
	repo := initRepoDiff(t)
	writeFile(t, repo, "file[1].txt", "bracket\n")
	writeFile(t, repo, "file1.txt", "unique-other-content\n")
	runGit(t, repo, "add", ".")

	entries, err := NewCollector(0).Collect(context.Background(), repo)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if n := strings.Count(Render(entries), "unique-other-content"); n != 1 {
		t.Errorf("file1.txt content appears %d times in rendered diff, want 1", n)
	}
	for _, e := range entries {
		if e.Path == "file[1].txt" && strings.Contains(e.Text, "file1.txt") {
			t.Errorf("entry for file[1].txt contains file1.txt:\n%s", e.Text)
		}
	}
}
