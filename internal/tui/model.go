// Package tui is the interactive console: it shows the scheduler state and
// the latest status lines, and maps keys to scheduler commands.
//
//	space      start / pause
//	1-9        toggle the behavior at that position
//	q, ctrl+c  quit
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/teslashibe/go-rokbot/pkg/feed"
	"github.com/teslashibe/go-rokbot/pkg/scheduler"
)

// visibleLogs is how many status lines the console shows.
const visibleLogs = 10

// Controller is the scheduler surface the console drives.
type Controller interface {
	Status() scheduler.Status
	Watch() (<-chan scheduler.Status, func())
	ToggleRunning() error
	Toggle(index int) error
}

var _ Controller = (*scheduler.Scheduler)(nil)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	runningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	pausedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
	onStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	offStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	logBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type statusMsg scheduler.Status

type logMsg feed.Entry

// closedMsg reports that a source channel was closed.
type closedMsg struct{}

// Model is the bubbletea model for the console.
type Model struct {
	ctrl    Controller
	status  scheduler.Status
	updates <-chan scheduler.Status
	entries <-chan feed.Entry
	logs    []feed.Entry
	err     error
}

// NewModel builds a console over ctrl. updates and entries feed the live
// view; either may be nil.
func NewModel(ctrl Controller, updates <-chan scheduler.Status, entries <-chan feed.Entry, backlog []feed.Entry) Model {
	m := Model{
		ctrl:    ctrl,
		status:  ctrl.Status(),
		updates: updates,
		entries: entries,
	}
	for _, e := range backlog {
		m.appendLog(e)
	}
	return m
}

// Run shows the console until the user quits or ctx is cancelled.
func Run(ctx context.Context, ctrl Controller, f *feed.Feed) error {
	updates, stopWatch := ctrl.Watch()
	defer stopWatch()
	entries, unsubscribe := f.Subscribe(64)
	defer unsubscribe()

	m := NewModel(ctrl, updates, entries, f.Recent(visibleLogs))
	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitStatus(m.updates), waitLog(m.entries))
}

func waitStatus(ch <-chan scheduler.Status) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return statusMsg(st)
	}
}

func waitLog(ch <-chan feed.Entry) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return logMsg(e)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case statusMsg:
		m.status = scheduler.Status(msg)
		return m, waitStatus(m.updates)
	case logMsg:
		m.appendLog(feed.Entry(msg))
		return m, waitLog(m.entries)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ", "space":
		m.err = m.ctrl.ToggleRunning()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		index := int(key[0] - '1')
		if index < len(m.status.Behaviors) {
			m.err = m.ctrl.Toggle(index)
		}
	}
	return m, nil
}

func (m *Model) appendLog(e feed.Entry) {
	m.logs = append(m.logs, e)
	if len(m.logs) > visibleLogs {
		m.logs = m.logs[len(m.logs)-visibleLogs:]
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ROKBOT"))
	b.WriteString("  ")
	if m.status.Running {
		b.WriteString(runningStyle.Render("RUNNING"))
	} else {
		b.WriteString(pausedStyle.Render("PAUSED"))
	}
	if m.status.Active != "" {
		b.WriteString("  > " + m.status.Active)
	}
	b.WriteString("\n\n")

	now := time.Now()
	for _, bs := range m.status.Behaviors {
		state := offStyle.Render("[OFF]")
		if bs.Enabled {
			state = onStyle.Render("[ON] ")
		}
		fmt.Fprintf(&b, " %d. %s %s", bs.Index+1, state, bs.Name)
		if len(bs.Slots) > 0 {
			free := 0
			for _, s := range bs.Slots {
				if s.Free(now) {
					free++
				}
			}
			fmt.Fprintf(&b, "  [%d/%d free]", free, len(bs.Slots))
		}
		if bs.Failures > 0 {
			b.WriteString(errorStyle.Render(fmt.Sprintf("  (%d failed)", bs.Failures)))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	lines := make([]string, 0, len(m.logs))
	for _, e := range m.logs {
		lines = append(lines, e.String())
	}
	if len(lines) == 0 {
		lines = append(lines, helpStyle.Render("no activity yet"))
	}
	b.WriteString(logBoxStyle.Render(strings.Join(lines, "\n")))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString(helpStyle.Render("space: start/pause • 1-9: toggle behavior • q: quit"))
	b.WriteString("\n")
	return b.String()
}
