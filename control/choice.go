package control

import (
	"fmt"
	"strings"
)

// Choice is an operator menu selection
type Choice int

const (
	// ChoiceNone is no selection: an interrupted prompt or an unknown entry
	ChoiceNone Choice = iota
	// ChoicePause stops accepting new connections
	ChoicePause
	// ChoiceResume accepts new connections again
	ChoiceResume
	// ChoiceReload stops the server and starts it again from the documents on disk
	ChoiceReload
	// ChoiceQuit stops the server and exits
	ChoiceQuit
)

// Menu lists the selectable choices in display order
var Menu = []Choice{ChoicePause, ChoiceResume, ChoiceReload, ChoiceQuit}

func (c Choice) String() string {
	switch c {
	case ChoicePause:
		return "Pause"
	case ChoiceResume:
		return "Resume"
	case ChoiceReload:
		return "Reload"
	case ChoiceQuit:
		return "Quit"
	default:
		return "None"
	}
}

// ParseChoice parses a menu entry by number or name, case insensitive.
// Anything else is ChoiceNone.
func ParseChoice(s string) Choice {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, c := range Menu {
		if s == fmt.Sprint(i+1) || s == strings.ToLower(c.String()) {
			return c
		}
	}
	return ChoiceNone
}

// menuText renders the menu shown before every prompt
func menuText() string {
	b := &strings.Builder{}
	for i, c := range Menu {
		fmt.Fprintf(b, "  %d) %s\n", i+1, c)
	}
	b.WriteString("> ")
	return b.String()
}
