// Package prompt loads the instructions template and assembles the chat
// messages sent to the completion endpoint.
//
// A template may open with YAML front matter between "---" lines:
//
//	---
//	model: qwen2.5-coder:7b
//	temperature: 0.2
//	max_tokens: 2048
//	---
//	Write a conventional commit message for the diff below.
//
// Front matter is optional; a file without it is used verbatim.
package prompt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"convcommit/cli/internal/erruser"
	"convcommit/cli/internal/openai"
)

// SystemMessage establishes the assistant's behavior for every request.
const SystemMessage = "You are a precise assistant that follows the instructions exactly as provided."

// Meta holds per-template overrides from front matter. Nil means unset.
type Meta struct {
	Model       *string  `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

// Template is a loaded instructions file.
type Template struct {
	Path         string
	Instructions string
	Meta         Meta
}

// Load reads the template at path. A missing file returns an error matching
// fs.ErrNotExist whose message is shown to the user as-is.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, erruser.New(fmt.Sprintf("Error: The file at %s was not found.", path), err)
		}
		return nil, erruser.New("Could not read prompt file.", err)
	}
	meta, body, err := splitFrontMatter(string(data))
	if err != nil {
		return nil, erruser.New(fmt.Sprintf("Invalid front matter in %s.", path), err)
	}
	return &Template{Path: path, Instructions: body, Meta: meta}, nil
}

// splitFrontMatter separates an optional leading YAML block from the body.
// An opening "---" without a closing line is not front matter.
func splitFrontMatter(s string) (Meta, string, error) {
	var meta Meta
	norm := strings.ReplaceAll(s, "\r\n", "\n")
	if !strings.HasPrefix(norm, "---\n") {
		return meta, s, nil
	}
	rest := norm[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	var block, body string
	switch {
	case strings.HasPrefix(rest, "---\n"):
		block, body = "", rest[len("---\n"):]
	case end >= 0:
		block, body = rest[:end], rest[end+len("\n---\n"):]
	case strings.HasSuffix(rest, "\n---"):
		block, body = strings.TrimSuffix(rest, "\n---"), ""
	default:
		return meta, s, nil
	}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return Meta{}, "", err
	}
	return meta, body, nil
}

// Messages builds the request payload: the system message and one user
// message holding the instructions block and the user input block.
func (t *Template) Messages(input string) []openai.Message {
	return []openai.Message{
		{Role: "system", Content: SystemMessage},
		{Role: "user", Content: UserContent(t.Instructions, input)},
	}
}

// UserContent formats the instructions and user input blocks.
func UserContent(instructions, input string) string {
	return "Instructions:\n\n" + instructions + "\n\nUser input:\n\n" + input
}

// Resolve locates the prompt file. Absolute paths are returned as-is. A
// relative path is tried against the working directory, then against
// repoRoot (if set). If neither exists, path is returned unchanged so the
// caller reports the name the user gave.
func Resolve(path, repoRoot string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	if repoRoot != "" {
		candidate := filepath.Join(repoRoot, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return path
}
