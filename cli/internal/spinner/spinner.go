// Package spinner animates a single terminal line while a blocking call runs.
// It shares nothing with the caller beyond Start and Stop.
package spinner

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

var textStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

// Spinner runs a bubbletea program on its own goroutine between Start and
// Stop. When out is not a terminal, Start prints the text once and Stop is a
// no-op.
type Spinner struct {
	out     io.Writer
	tty     bool
	program *tea.Program
	done    chan struct{}
}

// New returns a spinner writing to out, animating only if out is a terminal.
func New(out io.Writer) *Spinner {
	return &Spinner{out: out, tty: IsTTY(out)}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start begins animating text. Calling Start on a running spinner is a no-op.
func (s *Spinner) Start(text string) {
	if s.program != nil {
		return
	}
	if !s.tty {
		fmt.Fprintln(s.out, text)
		return
	}
	s.program = tea.NewProgram(newModel(text),
		tea.WithOutput(s.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	s.done = make(chan struct{})
	go func(p *tea.Program, done chan struct{}) {
		defer close(done)
		if _, err := p.Run(); err != nil {
			log.Debug().Err(err).Msg("spinner")
		}
	}(s.program, s.done)
}

// Stop signals the program to quit and waits until the line is cleared.
func (s *Spinner) Stop() {
	if s.program == nil {
		return
	}
	s.program.Send(stopMsg{})
	<-s.done
	s.program = nil
}

// stopMsg is the only signal from Stop to the running program.
type stopMsg struct{}

type model struct {
	spinner  spinner.Model
	text     string
	quitting bool
}

func newModel(text string) model {
	sp := spinner.New()
	sp.Spinner = spinner.Line
	sp.Style = textStyle
	return model{spinner: sp, text: text}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case stopMsg:
		m.quitting = true
		return m, tea.Quit
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	return textStyle.Render(m.text) + " " + m.spinner.View()
}
