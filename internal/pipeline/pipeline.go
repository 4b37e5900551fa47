// Package pipeline runs the ordered precondition chain that gates
// submission acceptance. Checks execute strictly in order and the
// chain stops at the first failure; a failing check may have written
// its own terminal response, which the caller must not overwrite.
package pipeline

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/formflowhq/formflow/internal/models"
)

// Context is the transient per-request bundle handed to every check.
// It is never persisted and is discarded at request end.
type Context struct {
	Form *models.Form
	Log  *slog.Logger
	W    http.ResponseWriter
	R    *http.Request

	responded bool
}

// JSON writes a terminal response on behalf of a check and marks the
// context so the caller knows not to write again.
func (c *Context) JSON(status int, message string) {
	c.responded = true
	c.W.Header().Set("Content-Type", "application/json")
	c.W.WriteHeader(status)
	_ = json.NewEncoder(c.W).Encode(map[string]string{"message": message})
}

// Responded reports whether a check has already written a response.
func (c *Context) Responded() bool {
	return c.responded
}

// Check is one precondition. It returns false to stop the chain and
// may write its own response via Context.JSON first.
type Check func(c *Context) bool

// Pipeline is an ordered, short-circuiting chain of checks. The order
// is fixed at construction; no check is skipped or reordered at
// runtime.
type Pipeline struct {
	checks []Check
}

func New(checks ...Check) *Pipeline {
	return &Pipeline{checks: checks}
}

// Execute runs every check in order and reports whether all passed.
// Checks after the first failure are never invoked.
func (p *Pipeline) Execute(c *Context) bool {
	for _, check := range p.checks {
		if !check(c) {
			return false
		}
	}
	return true
}
