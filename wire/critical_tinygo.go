//go:build tinygo

package wire

import "runtime/interrupt"

// critical masks interrupts for the duration of a foreground section. The
// handler itself also enters it; on a single core that nests harmlessly.
type critical struct {
	state interrupt.State
}

func (c *critical) enter() { c.state = interrupt.Disable() }
func (c *critical) exit()  { interrupt.Restore(c.state) }
