package control

import (
	"fmt"
	"io"
	"sync"
)

// NewConsole returns a console writing to w
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Console serializes the operator facing output of the menu and of
// background notifications
type Console struct {
	w io.Writer
	m sync.Mutex
}

func (c *Console) Write(p []byte) (int, error) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.w.Write(p)
}

// Printf formats to the console
func (c *Console) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c, format, args...)
}
