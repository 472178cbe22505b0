package control

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInputClosed means the operator input reached its end
	ErrInputClosed = errors.New("operator input closed")
)

// Prompter produces operator selections
type Prompter interface {
	// Next blocks until the operator selects a choice. ChoiceNone is returned
	// for an interrupted prompt or an unknown entry.
	Next(ctx context.Context) (Choice, error)
}

// NewLinePrompter returns a prompter reading one entry per line from in and
// printing the menu to out. A signal on interrupts cancels the current prompt.
func NewLinePrompter(in io.Reader, out io.Writer, interrupts <-chan os.Signal) *LinePrompter {
	p := &LinePrompter{
		out:        out,
		lines:      make(chan string),
		interrupts: interrupts,
	}
	go p.read(in)

	return p
}

// LinePrompter is a Prompter over a line oriented input such as a terminal
type LinePrompter struct {
	out        io.Writer
	lines      chan string
	interrupts <-chan os.Signal
}

func (p *LinePrompter) read(in io.Reader) {
	defer close(p.lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.Errorf("Failed to read operator input: %s", err)
	}
}

// Next implements Prompter
func (p *LinePrompter) Next(ctx context.Context) (Choice, error) {
	io.WriteString(p.out, menuText())

	select {
	case line, ok := <-p.lines:
		if !ok {
			io.WriteString(p.out, "\n")
			return ChoiceNone, ErrInputClosed
		}
		return ParseChoice(line), nil
	case <-p.interrupts:
		io.WriteString(p.out, "\n")
		return ChoiceNone, nil
	case <-ctx.Done():
		io.WriteString(p.out, "\n")
		return ChoiceNone, ctx.Err()
	}
}
