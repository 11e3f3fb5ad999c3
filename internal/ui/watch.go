package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aggrex/aggrex/internal/audit"
	tea "github.com/charmbracelet/bubbletea"
)

const watchMaxRows = 20

// WatchModel is the Bubble Tea model for the live audit log view. It polls
// the audit file and renders the newest events as they arrive.
type WatchModel struct {
	Path     string
	Events   []audit.Event
	ErrMsg   string
	Frame    int
	Quitting bool
}

type watchTickMsg struct{}

type watchEventsMsg struct {
	events []audit.Event
	err    error
}

func watchSpinTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return watchTickMsg{}
	})
}

func watchPoll(path string) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		events, err := audit.ReadFile(path)
		return watchEventsMsg{events: events, err: err}
	})
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(watchSpinTick(), watchPoll(m.Path))
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Quitting = true
			return m, tea.Quit
		}

	case watchTickMsg:
		m.Frame++
		return m, watchSpinTick()

	case watchEventsMsg:
		if msg.err != nil {
			m.ErrMsg = msg.err.Error()
		} else {
			m.ErrMsg = ""
			m.Events = msg.events
		}
		return m, watchPoll(m.Path)
	}
	return m, nil
}

func (m WatchModel) View() string {
	if m.Quitting {
		return ""
	}
	var sb strings.Builder

	frame := StyleAccent.Render(spinnerFrames[m.Frame%len(spinnerFrames)])
	sb.WriteString(fmt.Sprintf("%s  %s %s\n\n",
		frame, StyleTitle.Render("Audit log"), Meta(m.Path)))

	tbl := NewTable([]Column{
		{Title: "TIME", Width: 19},
		{Title: "KIND", Width: 18},
		{Title: "ACTOR", Width: 12},
		{Title: "DETAILS", Width: 48},
	})
	for _, e := range tail(m.Events, watchMaxRows) {
		tbl.AddRow(Row{
			e.Time.Local().Format("2006-01-02 15:04:05"),
			e.Kind,
			TruncateAddr(e.Actor),
			summarize(e.Fields),
		})
	}
	sb.WriteString(tbl.Render())

	if m.ErrMsg != "" {
		sb.WriteString("\n" + Err(m.ErrMsg) + "\n")
	}
	sb.WriteString("\n" + Meta("q: quit") + "\n")
	return sb.String()
}

// tail returns the last n events, newest last.
func tail(events []audit.Event, n int) []audit.Event {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

// summarize flattens event fields into a stable "k=v" list.
func summarize(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fields[k])
	}
	return strings.Join(parts, " ")
}
