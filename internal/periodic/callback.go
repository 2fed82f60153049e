package periodic

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Func is the body of a periodic callback. The context is the one passed
// to Worker.Start; a returned error counts as a failed run but never
// affects scheduling.
type Func func(ctx context.Context) error

// Callback describes one registrable unit of periodic work: the body
// plus its static scheduling metadata. Fixed arguments are captured by
// closing over them in Func. A Callback is immutable once registered.
type Callback struct {
	// Name identifies the callback in diagnostics.
	Name string
	// Spacing is the nominal interval between successive runs. Must be
	// greater than zero.
	Spacing time.Duration
	// Immediate requests one run right away, without waiting out the
	// initial spacing.
	Immediate bool
	// Run is the callback body.
	Run Func
}

// validate checks the callback contract eagerly, enumerating every
// missing or invalid attribute in a single error.
func (c *Callback) validate() error {
	if c == nil {
		return fmt.Errorf("periodic callback must not be nil")
	}
	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.Run == nil {
		missing = append(missing, "run func")
	}
	if c.Spacing == 0 {
		missing = append(missing, "spacing")
	}
	if len(missing) > 0 {
		return fmt.Errorf("periodic callback %q missing required attributes: %s",
			c.Name, strings.Join(missing, ", "))
	}
	if c.Spacing < 0 {
		return fmt.Errorf("periodic callback %q spacing must be greater than zero, got %s",
			c.Name, c.Spacing)
	}
	return nil
}
