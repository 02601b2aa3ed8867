package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/desertthunder/ytmp3/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MonitorView ViewState = iota
	HistoryView
)

type rowStatus int

const (
	statusRunning rowStatus = iota
	statusFinished
	statusFailed
)

// taskRow is the monitor's view of one task.
type taskRow struct {
	id          string
	resourceID  string
	title       string
	status      rowStatus
	percent     float64
	transferred int64
	total       int64
	speed       float64
	eta         time.Duration
	detail      string
}

func (r taskRow) name() string {
	if r.title != "" {
		return r.title
	}
	return r.resourceID
}

// Model represents the monitor state.
type Model struct {
	events    <-chan tasks.Event
	view      ViewState
	rows      []*taskRow
	index     map[string]*taskRow
	queueSize int
	finished  int
	failed    int
	expect    int
	closed    bool
	width     int
	height    int
	bar       progress.Model
	spinner   spinner.Model
	history   list.Model
	help      help.Model
	keys      keyMap
}

// NewModel creates a monitor reading from events.
//
// When expect is positive the program quits after that many terminal events.
func NewModel(events <-chan tasks.Event, expect int) *Model {
	history := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	history.Title = "History"

	return &Model{
		events:  events,
		view:    MonitorView,
		index:   make(map[string]*taskRow),
		expect:  expect,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		history: history,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the spinner and the event subscription.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(max(msg.Width-50, 10), 60)
		m.history.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.toggle):
			if m.view == MonitorView {
				m.view = HistoryView
			} else {
				m.view = MonitorView
			}
			return m, nil
		}
		if m.view == HistoryView {
			var cmd tea.Cmd
			m.history, cmd = m.history.Update(msg)
			return m, cmd
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgEvent:
			cmd := m.apply(msg.data.(tasks.Event))
			if m.expect > 0 && m.finished+m.failed >= m.expect {
				return m, tea.Quit
			}
			return m, tea.Batch(cmd, waitForEvent(m.events))
		case MsgStreamClosed:
			m.closed = true
			return m, nil
		}
	}

	return m, nil
}

// apply folds one event into the model.
func (m *Model) apply(ev tasks.Event) tea.Cmd {
	switch ev.Kind {
	case tasks.EventQueueSize:
		m.queueSize = ev.QueueSize

	case tasks.EventProgress:
		row := m.row(ev.TaskID, ev.ResourceID)
		if s := ev.Progress; s != nil {
			row.transferred = s.Transferred
			row.total = s.Total
			row.percent = s.Percentage / 100
			row.speed = s.Speed
			row.eta = s.ETA
		}

	case tasks.EventFinished:
		row := m.row(ev.TaskID, ev.ResourceID)
		row.status = statusFinished
		row.percent = 1
		if res := ev.Result; res != nil {
			row.title = res.Artist + " - " + res.Title
			row.detail = res.File
		}
		m.finished++
		return m.history.InsertItem(len(m.history.Items()), historyItem{row: *row})

	case tasks.EventError:
		row := m.row(ev.TaskID, ev.ResourceID)
		row.status = statusFailed
		row.detail = ev.Error
		if p := ev.Partial; p != nil && p.Title != "" {
			row.title = p.Title
		}
		m.failed++
		return m.history.InsertItem(len(m.history.Items()), historyItem{row: *row})
	}
	return nil
}

func (m *Model) row(taskID, resourceID string) *taskRow {
	if r, ok := m.index[taskID]; ok {
		return r
	}
	r := &taskRow{id: taskID, resourceID: resourceID}
	m.index[taskID] = r
	m.rows = append(m.rows, r)
	return r
}

// Counts returns the finished and failed totals seen so far.
func (m *Model) Counts() (finished, failed int) {
	return m.finished, m.failed
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case HistoryView:
		return fmt.Sprintf("%s\n\n%s", m.history.View(), m.help.View(m.keys))
	default:
		return m.renderMonitor()
	}
}

func (m *Model) renderMonitor() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("ytmp3 queue"))
	b.WriteString("\n")

	status := fmt.Sprintf("Queue: %d", m.queueSize)
	if m.queueSize > 0 {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(fmt.Sprintf("%s   %s   %s\n\n", status,
		styles.ok.Render(fmt.Sprintf("✓ %d", m.finished)),
		styles.err.Render(fmt.Sprintf("✗ %d", m.failed))))

	if len(m.rows) == 0 {
		b.WriteString(styles.help.Render("Waiting for tasks..."))
		b.WriteString("\n")
	}

	for _, r := range m.rows {
		b.WriteString(m.renderRow(r))
		b.WriteString("\n")
	}

	if m.closed {
		b.WriteString("\n")
		b.WriteString(styles.warn.Render("Event stream closed"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderRow(r *taskRow) string {
	switch r.status {
	case statusFinished:
		return fmt.Sprintf("%s %s\n  %s", styles.ok.Render("✓"), r.name(), styles.help.Render(r.detail))
	case statusFailed:
		return fmt.Sprintf("%s %s\n  %s", styles.err.Render("✗"), r.name(), styles.warn.Render(r.detail))
	}

	detail := shared.FormatBytes(r.transferred)
	if r.total > 0 {
		detail = fmt.Sprintf("%s / %s", detail, shared.FormatBytes(r.total))
	}
	if r.speed > 0 {
		detail = fmt.Sprintf("%s  %s/s", detail, shared.FormatBytes(int64(r.speed)))
	}
	if r.eta > 0 {
		detail = fmt.Sprintf("%s  eta %s", detail, shared.FormatDuration(r.eta))
	}
	return fmt.Sprintf("%s %s\n  %s %s", m.spinner.View(), r.name(), m.bar.ViewAs(r.percent), styles.help.Render(detail))
}
