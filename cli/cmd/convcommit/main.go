package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"convcommit/cli/internal/commitmsg"
	"convcommit/cli/internal/config"
	"convcommit/cli/internal/diff"
	"convcommit/cli/internal/erruser"
	"convcommit/cli/internal/git"
	"convcommit/cli/internal/openai"
	"convcommit/cli/internal/prompt"
	"convcommit/cli/internal/spinner"
	"convcommit/cli/internal/ui"
	"convcommit/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

const missingInputMessage = "Error: repository_path or direct_diff_as_input variable is not set or is not a valid directory."

// copyToClipboard writes the message to the system clipboard. Tests replace it.
var copyToClipboard = clipboard.WriteAll

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI. It is exported for testing.
func Run() int {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	return execute(args, os.Stdin, os.Stdout, os.Stderr)
}

// execute runs the root command with explicit streams and maps errors to exit codes.
func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.Execute(); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		printError(stderr, err)
		return 1
	}
	return 0
}

// printError writes the user-facing message, its cause, and any hint.
func printError(w io.Writer, err error) {
	ui.Error(w, "%s", err.Error())
	if u := errors.Unwrap(err); u != nil {
		fmt.Fprintf(w, "Details: %v\n", u)
	}
	if h := erruser.Hint(err); h != "" {
		ui.Hint(w, h)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convcommit",
		Short: "Generate a conventional commit message from staged changes",
		Long: `convcommit sends the staged diff of a Git repository (or a diff read from a
file or stdin) together with an instructions prompt to an OpenAI-compatible
chat-completion endpoint and prints the suggested commit message.`,
		Version:       version.String(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runGenerate,
	}
	pf := cmd.PersistentFlags()
	pf.StringP("repository-path", "r", ".", "Path to the Git repository (env REPO_PATH)")
	pf.StringP("prompt-file", "p", diff.DefaultPromptName, "Instructions prompt file")
	pf.StringP("model", "m", "gpt-4o-mini", `Model to use (env MODEL); empty or "auto" selects the first listed model`)
	pf.StringP("openai-api-key", "k", "no-api-key", "API key (env OPENAI_API_KEY)")
	pf.String("base-url", openai.DefaultBaseURL, "Base URL of the OpenAI-compatible API (env BASE_URL)")
	pf.Duration("timeout", 0, "HTTP request timeout (0 = none)")
	pf.BoolP("verbose", "v", false, "Log debug details to stderr (env VERBOSE)")

	f := cmd.Flags()
	f.StringP("diff-from-stdin", "d", "", "Read the diff from a file instead of the repository (- for stdin)")
	f.BoolP("debug-diff", "D", false, "Show the diff that was analyzed")
	f.IntP("max-bytes-in-diff", "b", diff.DefaultMaxBytes, "Max bytes of diff per file (0 = unlimited)")
	f.Int("max-tokens", 8192, "Completion token ceiling")
	f.Float64("temperature", 0, "Sampling temperature")
	f.BoolP("edit", "e", false, "Open git commit --edit with the generated message")
	f.BoolP("copy", "c", false, "Copy the generated message to the clipboard")
	f.Bool("raw", false, "Print only the message (for git commit -F -)")

	cmd.AddCommand(newModelsCmd())
	cmd.AddCommand(newDoctorCmd())
	return cmd
}

// changed reports whether the named flag exists on cmd and was set explicitly.
func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// overridesFromFlags returns Overrides for every flag that was set explicitly.
func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	o := &config.Overrides{}
	fl := cmd.Flags()
	if changed(cmd, "repository-path") {
		v, _ := fl.GetString("repository-path")
		o.RepoPath = &v
	}
	if changed(cmd, "prompt-file") {
		v, _ := fl.GetString("prompt-file")
		o.PromptFile = &v
	}
	if changed(cmd, "model") {
		v, _ := fl.GetString("model")
		o.Model = &v
	}
	if changed(cmd, "openai-api-key") {
		v, _ := fl.GetString("openai-api-key")
		o.APIKey = &v
	}
	if changed(cmd, "base-url") {
		v, _ := fl.GetString("base-url")
		o.BaseURL = &v
	}
	if changed(cmd, "max-tokens") {
		v, _ := fl.GetInt("max-tokens")
		o.MaxTokens = &v
	}
	if changed(cmd, "temperature") {
		v, _ := fl.GetFloat64("temperature")
		o.Temperature = &v
	}
	if changed(cmd, "max-bytes-in-diff") {
		v, _ := fl.GetInt("max-bytes-in-diff")
		o.MaxBytesInDiff = &v
	}
	if changed(cmd, "timeout") {
		v, _ := fl.GetDuration("timeout")
		o.Timeout = &v
	}
	if changed(cmd, "verbose") {
		v, _ := fl.GetBool("verbose")
		o.Verbose = &v
	}
	return o
}

// loadConfig locates the repository (best effort) so its config file can be
// read, then loads the layered configuration. repoRoot is empty when the
// repository path is not inside a work tree.
func loadConfig(cmd *cobra.Command) (cfg *config.Config, repoRoot string, err error) {
	ctx := cmd.Context()
	repoPath := "."
	if p, ok := config.RepoPathFromEnv(os.Environ()); ok {
		repoPath = p
	}
	if changed(cmd, "repository-path") {
		repoPath, _ = cmd.Flags().GetString("repository-path")
	}
	if isDir(repoPath) {
		if r, e := git.RepoRoot(ctx, repoPath); e == nil {
			repoRoot = r
		}
	}
	cfg, err = config.Load(ctx, config.LoadOptions{RepoRoot: repoRoot, Overrides: overridesFromFlags(cmd)})
	if err != nil {
		return nil, "", err
	}
	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Str("repo_root", repoRoot).Str("base_url", cfg.BaseURL).Str("model", cfg.Model).
		Int("max_bytes_in_diff", cfg.MaxBytesInDiff).Msg("configuration loaded")
	return cfg, repoRoot, nil
}

func newClient(cfg *config.Config) *openai.Client {
	return openai.NewClient(cfg.BaseURL, cfg.APIKey, &http.Client{Timeout: cfg.Timeout})
}

func isDir(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	cfg, repoRoot, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	diffSource, _ := cmd.Flags().GetString("diff-from-stdin")
	if diffSource == "" && !isDir(cfg.RepoPath) {
		ui.Error(stderr, "%s", missingInputMessage)
		return errExit(1)
	}

	promptPath := prompt.Resolve(cfg.PromptFile, repoRoot)
	input, err := readInput(ctx, cmd.InOrStdin(), diffSource, cfg, promptPath)
	if err != nil {
		return err
	}

	raw, _ := cmd.Flags().GetBool("raw")
	debugDiff, _ := cmd.Flags().GetBool("debug-diff")
	tmpl, err := prompt.Load(promptPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		// Missing instructions are recoverable: report and print an empty message.
		ui.Error(stderr, "%s", err.Error())
		if debugDiff {
			ui.Success(stderr, "Received diff: %s", input)
		}
		printMessage(stdout, "", raw)
		return nil
	}
	if err := applyFrontMatter(cmd, cfg, tmpl); err != nil {
		return err
	}

	result, err := commitmsg.Suggest(ctx, newClient(cfg), commitmsg.Request{
		Messages:    tmpl.Messages(input),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Notify:      stderr,
		Progress:    spinner.New(stderr),
	})
	if err != nil {
		return err
	}

	if debugDiff {
		ui.Success(stderr, "Received diff: %s", input)
	}
	printMessage(stdout, result.Message, raw)

	if cp, _ := cmd.Flags().GetBool("copy"); cp {
		if err := copyToClipboard(result.Message); err != nil {
			ui.Warning(stderr, "Could not copy the message to the clipboard: %v", err)
		} else {
			ui.Info(stderr, "Commit message copied to the clipboard.")
		}
	}
	if edit, _ := cmd.Flags().GetBool("edit"); edit {
		if repoRoot == "" {
			return erruser.New("--edit needs a Git repository.", git.ErrNotRepository)
		}
		return git.CommitEdit(ctx, repoRoot, result.Message, git.Streams{In: cmd.InOrStdin(), Out: stdout, Err: stderr})
	}
	return nil
}

// readInput returns the diff text: verbatim from source ("-" is stdin) when
// set, otherwise collected from the repository's staged changes.
func readInput(ctx context.Context, stdin io.Reader, source string, cfg *config.Config, promptPath string) (string, error) {
	switch source {
	case "":
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", erruser.New("Could not read diff from stdin.", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return "", erruser.New(fmt.Sprintf("Could not read diff from %s.", source), err)
		}
		return string(data), nil
	}

	exclude := make([]string, 0, len(cfg.Exclude)+1)
	if abs, err := filepath.Abs(promptPath); err == nil {
		exclude = append(exclude, abs)
	}
	exclude = append(exclude, cfg.Exclude...)
	entries, err := diff.NewCollector(cfg.MaxBytesInDiff, exclude...).Collect(ctx, cfg.RepoPath)
	if err != nil {
		return "", err
	}
	return diff.Render(entries), nil
}

// applyFrontMatter lets template metadata replace configured values for
// settings whose flag was not given explicitly. The merged values are held to
// the same ranges as config files and flags.
func applyFrontMatter(cmd *cobra.Command, cfg *config.Config, tmpl *prompt.Template) error {
	meta := tmpl.Meta
	if meta.Model != nil && !changed(cmd, "model") {
		cfg.Model = *meta.Model
	}
	if meta.Temperature != nil && !changed(cmd, "temperature") {
		cfg.Temperature = *meta.Temperature
	}
	if meta.MaxTokens != nil && !changed(cmd, "max-tokens") {
		cfg.MaxTokens = *meta.MaxTokens
	}
	if err := cfg.Validate(); err != nil {
		return erruser.New(fmt.Sprintf("Invalid front matter in %s.", tmpl.Path), err)
	}
	return nil
}

func printMessage(w io.Writer, msg string, raw bool) {
	if !raw {
		fmt.Fprintln(w, "-> Commit Message:")
	}
	fmt.Fprintln(w, msg)
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model ids served by the completion endpoint",
		Args:  cobra.NoArgs,
		RunE:  runModels,
	}
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	models, err := newClient(cfg).ListModels(cmd.Context())
	if err != nil {
		return erruser.New(fmt.Sprintf("Could not list models at %s.", cfg.BaseURL), err)
	}
	for _, m := range models {
		ui.Plain(cmd.OutOrStdout(), "%s", m.ID)
	}
	return nil
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Verify environment (Git repository, prompt file, endpoint, model)",
		Args:  cobra.NoArgs,
		RunE:  runDoctor,
	}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	cfg, repoRoot, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	failed := false

	if repoRoot == "" {
		ui.Warning(stderr, "Git: %s is not inside a Git work tree (use -d to supply a diff).", cfg.RepoPath)
	} else {
		staged, err := git.HasStagedChanges(ctx, repoRoot)
		switch {
		case err != nil:
			ui.Error(stderr, "Git: %v", err)
			failed = true
		case staged:
			ui.Success(stdout, "Git OK: %s (changes staged)", repoRoot)
		default:
			ui.Success(stdout, "Git OK: %s (nothing staged)", repoRoot)
		}
	}

	promptPath := prompt.Resolve(cfg.PromptFile, repoRoot)
	if tmpl, err := prompt.Load(promptPath); err != nil {
		ui.Error(stderr, "Prompt: %v", err)
		failed = true
	} else if err := applyFrontMatter(cmd, cfg, tmpl); err != nil {
		ui.Error(stderr, "Prompt: %v", err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(stderr, "Details: %v\n", u)
		}
		failed = true
	} else {
		ui.Success(stdout, "Prompt OK: %s", promptPath)
	}

	models, err := newClient(cfg).ListModels(ctx)
	if err != nil {
		if errors.Is(err, openai.ErrUnreachable) {
			ui.Error(stderr, "Endpoint unreachable at %s. Is the server running?", cfg.BaseURL)
			fmt.Fprintf(stderr, "Details: %v\n", err)
			return errExit(2)
		}
		ui.Error(stderr, "Endpoint error at %s: %v", cfg.BaseURL, err)
		return errExit(1)
	}
	ui.Success(stdout, "Endpoint OK: %s (%d models)", cfg.BaseURL, len(models))

	model := strings.TrimSpace(cfg.Model)
	if model == "" || strings.EqualFold(model, commitmsg.ModelAuto) {
		if len(models) == 0 {
			ui.Error(stderr, "Model: endpoint lists no models to select from.")
			return errExit(1)
		}
		ui.Success(stdout, "Model: %s (auto)", models[0].ID)
	} else if !hasModel(models, model) {
		ui.Warning(stderr, "Model %q is not listed by the endpoint; requests may fail.", model)
	} else {
		ui.Success(stdout, "Model: %s", model)
	}
	if failed {
		return errExit(1)
	}
	return nil
}

func hasModel(models []openai.Model, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}
