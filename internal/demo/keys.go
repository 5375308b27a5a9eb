package demo

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the demo's keyboard bindings.
type KeyMap struct {
	Send key.Binding
	Boom key.Binding
	Raw  key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Send: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "send message"),
		),
		Boom: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "trigger worker error"),
		),
		Raw: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "toggle raw view"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
