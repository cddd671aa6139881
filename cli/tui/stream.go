package tui

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// tailRunes is how much of the streaming answer the live view shows.
const tailRunes = 160

// ProgressMsg carries the accumulated answer text.
type ProgressMsg struct {
	Text string
}

// DoneMsg ends the live view.
type DoneMsg struct {
	Outcome string
	Message string
	Err     error
}

// StreamModel shows a spinner and the growing answer while a report streams.
type StreamModel struct {
	title   string
	spinner spinner.Model
	cancel  context.CancelFunc
	start   time.Time

	bytes int
	runes int
	tail  string

	done     *DoneMsg
	quitting bool
}

// NewStreamModel creates a live view. cancel is called when the user quits
// before the stream finishes.
func NewStreamModel(title string, cancel context.CancelFunc) StreamModel {
	return StreamModel{
		title:   title,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(WarningStyle)),
		cancel:  cancel,
		start:   time.Now(),
	}
}

// Init implements tea.Model.
func (m StreamModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m StreamModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		m.bytes = len(msg.Text)
		m.runes = utf8.RuneCountInString(msg.Text)
		m.tail = Tail(msg.Text, tailRunes)
		return m, nil

	case DoneMsg:
		m.done = &msg
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m StreamModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(m.title))
	b.WriteString("\n")

	switch {
	case m.done != nil:
		status := m.done.Outcome
		if status == "" && m.done.Err != nil {
			status = "error"
		}
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Outcome:"), OutcomeStyle(status).Render(status))
		if m.done.Message != "" {
			fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Message:"), m.done.Message)
		}
	case m.quitting:
		b.WriteString(WarningStyle.Render("canceling..."))
		b.WriteString("\n")
	default:
		fmt.Fprintf(&b, "%s receiving %d chars (%d bytes) in %s\n",
			m.spinner.View(), m.runes, m.bytes, time.Since(m.start).Truncate(100*time.Millisecond))
	}

	if m.tail != "" {
		b.WriteString(TailStyle.Render(m.tail))
		b.WriteString("\n")
	}
	if m.done == nil {
		b.WriteString(HelpStyle.Render("q to cancel"))
	}
	return b.String()
}

// Done returns the final message, or nil if the user quit first.
func (m StreamModel) Done() *DoneMsg {
	return m.done
}

// Tail returns the last n runes of s on a single line.
func Tail(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return "…" + string(r[len(r)-n:])
}

// RunStream runs work under the live view. work receives a progress
// callback and its return values end the view. The user quitting calls
// cancel; work is still waited for.
func RunStream(title string, cancel context.CancelFunc, work func(onProgress func(string)) DoneMsg) (DoneMsg, error) {
	p := tea.NewProgram(NewStreamModel(title, cancel))

	result := make(chan DoneMsg, 1)
	go func() {
		done := work(func(text string) { p.Send(ProgressMsg{Text: text}) })
		result <- done
		p.Send(done)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		return <-result, err
	}
	return <-result, nil
}
