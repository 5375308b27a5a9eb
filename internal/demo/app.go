// Package demo is the interactive showcase for the worker bridge: one
// bridge, the three conditional helpers, and a worker that can be in-process
// or reached over WebSocket.
package demo

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/teaworker/teaworker/bridge"
	"github.com/teaworker/teaworker/views"
)

// Model is the root Bubble Tea model.
type Model struct {
	bridge *bridge.Bridge
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	state     bridge.State
	spinner   spinner.Model
	markdown  *glamour.TermRenderer
	raw       bool
	sent      int
	attachErr error
	postErr   error
}

type attachedMsg struct{}

type attachFailedMsg struct{ err error }

// New creates the root model around an unattached bridge.
func New(b *bridge.Bridge) Model {
	ctx, cancel := context.WithCancel(context.Background())
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = views.StyleDimmed
	md, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(72))
	return Model{
		bridge:   b,
		ctx:      ctx,
		cancel:   cancel,
		keys:     DefaultKeyMap(),
		spinner:  sp,
		markdown: md,
	}
}

// Init attaches the bridge and starts waiting for state changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.attach(), m.bridge.Wait(m.ctx))
}

func (m Model) attach() tea.Cmd {
	return func() tea.Msg {
		if err := m.bridge.Attach(m.ctx); err != nil {
			return attachFailedMsg{err: err}
		}
		return attachedMsg{}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case attachedMsg:
		return m, nil

	case attachFailedMsg:
		m.attachErr = msg.err
		return m, nil

	case bridge.StateMsg:
		m.state = msg.State
		return m, m.bridge.Wait(m.ctx)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.bridge.Teardown()
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Send):
		m.sent++
		m.postErr = m.bridge.Post(fmt.Sprintf("hello %d", m.sent))
		return m, nil

	case key.Matches(msg, m.keys.Boom):
		m.postErr = m.bridge.Post("boom")
		return m, nil

	case key.Matches(msg, m.keys.Raw):
		m.raw = !m.raw
		return m, nil
	}

	return m, nil
}

// View renders the demo.
func (m Model) View() string {
	header := views.StyleHeader.Render("=== TEAWORKER DEMO ===")
	status := m.statusLine()

	obs := m.bridge.States()
	spin := m.spinner.View()
	pending := views.Pending{
		States:  obs,
		Content: views.Text(spin + " waiting for the worker..."),
		Persist: true,
	}
	data := views.Data{States: obs, Content: views.Func(m.renderData)}
	failure := views.Error{
		States:  obs,
		Content: views.Func(func(s bridge.State) string {
			return views.StyleError.Render("worker error: " + s.Err.Error())
		}),
	}

	sections := []string{header, status}
	if m.attachErr != nil {
		sections = append(sections, views.StyleError.Render("attach failed: "+m.attachErr.Error()))
	}
	for _, v := range []string{pending.View(), data.View(), failure.View()} {
		if v != "" {
			sections = append(sections, v)
		}
	}
	if m.postErr != nil {
		sections = append(sections, views.StyleError.Render("post failed: "+m.postErr.Error()))
	}
	sections = append(sections, views.StyleDimmed.Render("  s:send  e:trigger error  r:raw  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) statusLine() string {
	line := fmt.Sprintf("%d messages  %d errors", len(m.state.Messages), len(m.state.Errors))
	if !m.state.UpdatedAt.IsZero() {
		line += "  updated " + m.state.UpdatedAt.Format("15:04:05")
	}
	if !m.state.LastPostAt.IsZero() {
		line += "  posted " + m.state.LastPostAt.Format("15:04:05")
	}
	return views.StyleDimmed.Render(line)
}

// renderData shows the latest payload, as markdown unless raw view is on.
func (m Model) renderData(s bridge.State) string {
	text := fmt.Sprintf("%v", s.Data)
	if data, ok := s.Data.([]byte); ok {
		text = string(data)
	}
	if m.raw || m.markdown == nil {
		return text
	}
	out, err := m.markdown.Render(text)
	if err != nil {
		return text
	}
	return out
}
