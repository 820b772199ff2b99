// Package sim is a software model of several I²C peripherals sharing one
// bus. Each module raises its interrupt vector on its own goroutine, so
// handlers run asynchronously to the code that triggered them, as they would
// on hardware. Slaves stretch the clock: a master's next byte is only
// accepted once the addressed slave has consumed the previous one.
package sim

import (
	"log/slog"
	"sync"

	"twowire/hal"
	"twowire/x/logx"
)

// Bus connects simulated modules and scripted targets.
type Bus struct {
	mu      sync.Mutex
	mods    [hal.MaxModules]*Peripheral
	targets map[uint8]Target
	log     *slog.Logger

	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		targets: make(map[uint8]Target),
		log:     logx.For(logx.ComponentSim),
		quit:    make(chan struct{}),
	}
}

// Module creates the peripheral for id and starts its interrupt line, which
// calls vec(id) whenever an enabled status bit is raised. Calling Module
// twice for the same id returns the existing peripheral.
func (b *Bus) Module(id hal.ModuleID, vec hal.Vector) *Peripheral {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !id.Valid() {
		return nil
	}
	if p := b.mods[id]; p != nil {
		return p
	}
	p := &Peripheral{
		bus:  b,
		id:   id,
		vec:  vec,
		line: make(chan struct{}, 1),
	}
	b.mods[id] = p
	b.wg.Add(1)
	go p.run()
	b.log.Debug("module up", "module", int(id))
	return p
}

// Attach places a scripted target at addr.
func (b *Bus) Attach(addr uint8, t Target) {
	b.mu.Lock()
	b.targets[addr] = t
	b.mu.Unlock()
	b.log.Debug("target attached", "addr", addr)
}

// Detach removes the target at addr.
func (b *Bus) Detach(addr uint8) {
	b.mu.Lock()
	delete(b.targets, addr)
	b.mu.Unlock()
}

// Close stops every interrupt line and waits for running handlers.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.quit) })
	b.wg.Wait()
}

// resolve finds whoever answers at addr. Caller holds b.mu.
func (b *Bus) resolve(addr uint8) endpoint {
	if t, ok := b.targets[addr]; ok {
		return targetEndpoint{t}
	}
	for _, p := range b.mods {
		if p != nil && p.role == roleSlave && p.own == addr {
			return slaveEndpoint{p}
		}
	}
	return nil
}

// endpoint is the addressed side of a transaction. All methods run with
// the bus lock held.
type endpoint interface {
	begin(m *Peripheral, read bool) bool
	// write offers one byte. ack=false is a NAK. When stretched is true the
	// master's transmit interrupt is deferred until the byte is consumed.
	write(m *Peripheral, v byte) (ack, stretched bool)
	// request asks for the next byte for master m.
	request(m *Peripheral)
	end()
}

type targetEndpoint struct{ t Target }

func (e targetEndpoint) begin(_ *Peripheral, read bool) bool { return e.t.Begin(read) }
func (e targetEndpoint) write(_ *Peripheral, v byte) (bool, bool) {
	return e.t.Write(v), false
}
func (e targetEndpoint) request(m *Peripheral) { m.deliver(e.t.Read()) }
func (e targetEndpoint) end()                  { e.t.End() }

type slaveEndpoint struct{ s *Peripheral }

func (e slaveEndpoint) begin(m *Peripheral, _ bool) bool {
	e.s.master = m
	e.s.raise(hal.StatusStart)
	return true
}

func (e slaveEndpoint) write(m *Peripheral, v byte) (bool, bool) {
	e.s.rxq = append(e.s.rxq, v)
	e.s.stretch = m
	e.s.raise(hal.StatusReceive)
	return true, true
}

func (e slaveEndpoint) request(_ *Peripheral) {
	e.s.txWant = true
	e.s.raise(hal.StatusTransmit)
}

func (e slaveEndpoint) end() {
	e.s.master = nil
	e.s.txWant = false
	e.s.raise(hal.StatusStop)
}
