// Package xfer holds the per-module transfer buffers. They live in a
// process-wide arena indexed by module id so the interrupt path always has a
// stable address to work on, independent of any driver's lifetime.
package xfer

import "twowire/hal"

// Capacity is the fixed size of every transfer buffer in bytes.
const Capacity = 32

// Buffer is a fixed-capacity byte buffer with a fill cursor, a drain cursor
// and a declared transfer size. It performs no locking: callers serialise
// access by phase ownership.
type Buffer struct {
	data [Capacity]byte
	n    int // fill cursor
	pos  int // drain cursor
	want int // declared transfer size; 0 = open-ended
}

// Append stores v at the fill cursor. It returns false when full.
func (b *Buffer) Append(v byte) bool {
	if b.n >= Capacity {
		return false
	}
	b.data[b.n] = v
	b.n++
	return true
}

// Len is the number of bytes stored.
func (b *Buffer) Len() int { return b.n }

// Empty reports Len() == 0.
func (b *Buffer) Empty() bool { return b.n == 0 }

// Bytes returns a view of the stored bytes. The view is only valid while the
// caller owns the buffer.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

// Next returns the byte at the drain cursor and advances it.
func (b *Buffer) Next() (byte, bool) {
	if b.pos >= b.n {
		return 0, false
	}
	v := b.data[b.pos]
	b.pos++
	return v, true
}

// Pending is the number of bytes left to drain.
func (b *Buffer) Pending() int { return b.n - b.pos }

// Expect resets the buffer for a transfer of exactly n bytes.
func (b *Buffer) Expect(n int) {
	b.Reset()
	b.want = n
}

// Want returns the declared transfer size.
func (b *Buffer) Want() int { return b.want }

// Remaining is want minus stored, or 0 for open-ended transfers.
func (b *Buffer) Remaining() int {
	if b.want == 0 {
		return 0
	}
	return b.want - b.n
}

// Complete reports that a sized transfer has all its bytes.
func (b *Buffer) Complete() bool { return b.want > 0 && b.n >= b.want }

// Reset empties the buffer and clears the declared size.
func (b *Buffer) Reset() {
	b.n, b.pos, b.want = 0, 0, 0
}

// Pair is the transmit and receive buffer of one module.
type Pair struct {
	TX Buffer
	RX Buffer
}

var arena [hal.MaxModules]Pair

// For returns the buffers of module id, or nil for an unknown module.
func For(id hal.ModuleID) *Pair {
	if !id.Valid() {
		return nil
	}
	return &arena[id]
}
