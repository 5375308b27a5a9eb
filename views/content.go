package views

import "github.com/teaworker/teaworker/bridge"

// Content is what a conditional helper renders while its condition holds:
// either static text or a function of the current session state. The variant
// is resolved once per render.
type Content interface {
	render(s bridge.State) string
}

type textContent string

func (c textContent) render(bridge.State) string { return string(c) }

type funcContent func(bridge.State) string

func (c funcContent) render(s bridge.State) string { return c(s) }

// Text returns static content.
func Text(s string) Content { return textContent(s) }

// Func returns content computed from the session state at render time.
func Func(fn func(s bridge.State) string) Content { return funcContent(fn) }
