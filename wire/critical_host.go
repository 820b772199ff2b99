//go:build !tinygo

package wire

import "sync"

// critical excludes the interrupt handler from foreground code. On a host
// build the handler runs on its own goroutine, so a mutex stands in for
// masking interrupts.
type critical struct {
	mu sync.Mutex
}

func (c *critical) enter() { c.mu.Lock() }
func (c *critical) exit()  { c.mu.Unlock() }
