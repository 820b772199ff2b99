package sim

import "sync"

// Target is a scripted device answering at one address. Methods are called
// with the bus lock held and must not call back into the bus.
type Target interface {
	// Begin is the address phase; false NAKs the address.
	Begin(read bool) bool
	// Write receives one byte from the master; false NAKs it.
	Write(b byte) bool
	// Read supplies the next byte to the master.
	Read() byte
	// End is called on STOP or repeated START.
	End()
}

// Memory is a 256-byte register file. The first byte of a write selects the
// register pointer; further bytes are stored with auto-increment. Reads
// continue from the pointer.
type Memory struct {
	mu      sync.Mutex
	regs    [256]byte
	ptr     byte
	pointer bool // next written byte is the register pointer
}

func (m *Memory) Begin(read bool) bool {
	m.mu.Lock()
	m.pointer = !read
	m.mu.Unlock()
	return true
}

func (m *Memory) Write(b byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pointer {
		m.ptr = b
		m.pointer = false
		return true
	}
	m.regs[m.ptr] = b
	m.ptr++
	return true
}

func (m *Memory) Read() byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.regs[m.ptr]
	m.ptr++
	return v
}

func (m *Memory) End() {
	m.mu.Lock()
	m.pointer = false
	m.mu.Unlock()
}

// Load copies data into the register file starting at reg.
func (m *Memory) Load(reg byte, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range data {
		m.regs[reg+byte(i)] = v
	}
}

// Dump returns n registers starting at reg.
func (m *Memory) Dump(reg byte, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = m.regs[reg+byte(i)]
	}
	return out
}

// Device acknowledges everything, records written bytes and answers reads
// from Reply, restarting at the first byte on every read transaction.
type Device struct {
	mu      sync.Mutex
	Reply   []byte
	idx     int
	written []byte
	frames  int
}

func (d *Device) Begin(read bool) bool {
	d.mu.Lock()
	if read {
		d.idx = 0
	}
	d.mu.Unlock()
	return true
}

func (d *Device) Write(b byte) bool {
	d.mu.Lock()
	d.written = append(d.written, b)
	d.mu.Unlock()
	return true
}

func (d *Device) Read() byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Reply) == 0 {
		return 0xFF
	}
	v := d.Reply[d.idx%len(d.Reply)]
	d.idx++
	return v
}

func (d *Device) End() {
	d.mu.Lock()
	d.frames++
	d.mu.Unlock()
}

// Written returns a copy of every byte written so far.
func (d *Device) Written() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.written...)
}

// Frames counts completed transactions.
func (d *Device) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}
