// Package site renders the index page and holds the static assets served
// next to it
package site

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/pkg/errors"
)

var (
	// ErrTemplateNotFound means no template is registered under an id
	ErrTemplateNotFound = errors.New("template not found")
)

// RenderError represents a failure to render one template
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Template, e.Err)
}

// Unwrap returns the underlying error
func (e *RenderError) Unwrap() error { return e.Err }

// NewRenderer parses every template file matching pattern.
// Templates are registered under their file base name.
func NewRenderer(pattern string) (*Renderer, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid template pattern %q", pattern)
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no templates match %q", pattern)
	}

	t, err := template.New("").Option("missingkey=error").ParseFiles(files...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse templates")
	}

	return &Renderer{t: t}, nil
}

// Renderer renders named templates with a flat string context
type Renderer struct {
	t *template.Template
}

// Render executes template id with ctx
func (r *Renderer) Render(id string, ctx map[string]string) ([]byte, error) {
	t := r.t.Lookup(id)
	if t == nil {
		return nil, &RenderError{Template: id, Err: ErrTemplateNotFound}
	}

	buf := &bytes.Buffer{}
	err := t.Execute(buf, ctx)
	if err != nil {
		return nil, &RenderError{Template: id, Err: err}
	}

	return buf.Bytes(), nil
}
