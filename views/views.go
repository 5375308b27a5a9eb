// Package views provides the conditional helpers rendered under a bridge:
// Pending while nothing has arrived, Data once a message lands, Error while
// the latest event is a failure. Each helper reads the session through the
// bridge's observation handle, so it can sit anywhere in the view tree
// without the state being passed down by hand.
package views

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/teaworker/teaworker/bridge"
	"github.com/teaworker/teaworker/observe"
)

// Palette and styles shared by the helpers.
var (
	ColorBright = lipgloss.Color("#f9fafb")
	ColorDimmed = lipgloss.Color("#6b7280")
	ColorDanger = lipgloss.Color("#dc2626")

	StyleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	StyleDimmed = lipgloss.NewStyle().Foreground(ColorDimmed)
	StyleError  = lipgloss.NewStyle().Foreground(ColorDanger)
)

// Pending renders its content only while no data has arrived. By default an
// error hides it too; with Persist set it stays until data arrives, errors
// notwithstanding.
type Pending struct {
	States  *observe.Value[bridge.State]
	Content Content
	Persist bool
}

// View renders the helper, or "" when its condition does not hold.
func (p Pending) View() string {
	s := p.States.Get()
	if s.Data != nil {
		return ""
	}
	if s.Err != nil && !p.Persist {
		return ""
	}
	if p.Content == nil {
		return StyleDimmed.Render("waiting for worker...")
	}
	return p.Content.render(s)
}

// Data renders its content only while the session has data.
type Data struct {
	States  *observe.Value[bridge.State]
	Content Content
}

// View renders the helper, or "" when no data has arrived.
func (d Data) View() string {
	s := d.States.Get()
	if s.Data == nil {
		return ""
	}
	if d.Content == nil {
		return fmt.Sprintf("%v", s.Data)
	}
	return d.Content.render(s)
}

// Error renders its content only while the latest event is an error.
type Error struct {
	States  *observe.Value[bridge.State]
	Content Content
}

// View renders the helper, or "" when there is no current error.
func (e Error) View() string {
	s := e.States.Get()
	if s.Err == nil {
		return ""
	}
	if e.Content == nil {
		return StyleError.Render(s.Err.Error())
	}
	return e.Content.render(s)
}
