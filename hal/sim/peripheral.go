package sim

import (
	"twowire/errcode"
	"twowire/hal"
)

type role uint8

const (
	roleNone role = iota
	roleMaster
	roleSlave
)

// Peripheral simulates one module. It implements hal.Peripheral.
type Peripheral struct {
	bus  *Bus
	id   hal.ModuleID
	vec  hal.Vector
	line chan struct{} // coalesced interrupt request

	// Everything below is guarded by bus.mu.
	role    role
	own     uint8
	target  uint8
	mode    hal.Mode
	cfg     hal.MasterConfig
	pending hal.Status
	enabled hal.Status
	ops     []Op
	rxq     []byte

	// master side
	ep        endpoint
	receiving bool
	stopReq   bool

	// slave side
	master  *Peripheral // master currently reading from us
	stretch *Peripheral // master waiting for us to consume a byte
	txWant  bool
}

var _ hal.Peripheral = (*Peripheral)(nil)

func (p *Peripheral) run() {
	defer p.bus.wg.Done()
	for {
		select {
		case <-p.line:
			if p.vec != nil {
				p.vec(p.id)
			}
		case <-p.bus.quit:
			return
		}
	}
}

// ID returns the module id.
func (p *Peripheral) ID() hal.ModuleID { return p.id }

// raise sets pending bits and requests the vector. Caller holds bus.mu.
func (p *Peripheral) raise(s hal.Status) {
	p.pending |= s
	if p.enabled&s != 0 {
		p.signal()
	}
}

func (p *Peripheral) signal() {
	select {
	case p.line <- struct{}{}:
	default:
	}
}

func (p *Peripheral) record(k OpKind, v byte) {
	p.ops = append(p.ops, Op{Kind: k, Byte: v})
}

// Raise injects status bits as if the hardware had set them.
func (p *Peripheral) Raise(s hal.Status) {
	p.bus.mu.Lock()
	p.raise(s)
	p.bus.mu.Unlock()
}

// Ops returns a copy of the recorded operations.
func (p *Peripheral) Ops() []Op {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	out := make([]Op, len(p.ops))
	copy(out, p.ops)
	return out
}

// ResetOps clears the operation log.
func (p *Peripheral) ResetOps() {
	p.bus.mu.Lock()
	p.ops = p.ops[:0]
	p.bus.mu.Unlock()
}

// Enabled returns the enabled interrupt sources.
func (p *Peripheral) Enabled() hal.Status {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	return p.enabled
}

// Mode returns the current master data direction.
func (p *Peripheral) Mode() hal.Mode {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	return p.mode
}

// SlaveAddress returns the programmed target address.
func (p *Peripheral) SlaveAddress() uint8 {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	return p.target
}

// ---- hal.Peripheral ----

func (p *Peripheral) InitMaster(cfg hal.MasterConfig) error {
	if cfg.DataRateHz == 0 {
		return errcode.InvalidParams
	}
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.role = roleMaster
	p.cfg = cfg
	p.mode = hal.ModeTransmit
	p.pending = 0
	return nil
}

func (p *Peripheral) InitSlave(own uint8) error {
	if own == 0 || own > 0x7F {
		return errcode.InvalidParams
	}
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.role = roleSlave
	p.own = own
	p.pending = 0
	return nil
}

func (p *Peripheral) SetSlaveAddress(addr uint8) {
	p.bus.mu.Lock()
	p.target = addr
	p.bus.mu.Unlock()
}

func (p *Peripheral) SetMode(m hal.Mode) {
	p.bus.mu.Lock()
	p.mode = m
	p.bus.mu.Unlock()
}

func (p *Peripheral) SendStart(first byte) {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.record(OpStart, first)
	p.finish()
	ep := p.bus.resolve(p.target)
	if ep == nil || !ep.begin(p, false) {
		p.raise(hal.StatusNAK)
		return
	}
	p.ep = ep
	p.offer(first)
}

func (p *Peripheral) SendNext(v byte) {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.record(OpNext, v)
	if p.ep == nil || p.receiving {
		return
	}
	p.offer(v)
}

// offer hands one byte to the endpoint. Caller holds bus.mu.
func (p *Peripheral) offer(v byte) {
	ack, stretched := p.ep.write(p, v)
	if !ack {
		p.raise(hal.StatusNAK)
		return
	}
	if !stretched {
		p.raise(hal.StatusTransmit)
	}
}

func (p *Peripheral) SendStop() {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.record(OpStop, 0)
	p.finish()
}

// finish ends the current transaction, if any. Caller holds bus.mu.
func (p *Peripheral) finish() {
	if p.ep != nil {
		p.ep.end()
		p.ep = nil
	}
	p.receiving = false
	p.stopReq = false
	p.rxq = p.rxq[:0]
	p.pending &^= hal.StatusReceive
}

func (p *Peripheral) StopPending() bool { return false }

func (p *Peripheral) ReceiveStart() {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.record(OpReceiveStart, 0)
	p.finish()
	ep := p.bus.resolve(p.target)
	if ep == nil || !ep.begin(p, true) {
		p.raise(hal.StatusNAK)
		return
	}
	p.ep = ep
	p.receiving = true
	ep.request(p)
}

func (p *Peripheral) ReceiveNext() byte {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	if len(p.rxq) == 0 {
		return 0
	}
	v := p.rxq[0]
	p.rxq = p.rxq[1:]
	if len(p.rxq) == 0 {
		p.pending &^= hal.StatusReceive
	}
	if p.receiving && p.ep != nil {
		if p.stopReq {
			p.record(OpStop, 0)
			p.finish()
		} else {
			p.ep.request(p)
		}
	}
	return v
}

func (p *Peripheral) ReceiveStop() {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.record(OpReceiveStop, 0)
	p.stopReq = true
}

// deliver queues a byte clocked in from the addressed endpoint. Caller
// holds bus.mu.
func (p *Peripheral) deliver(v byte) {
	if !p.receiving {
		return
	}
	p.rxq = append(p.rxq, v)
	p.raise(hal.StatusReceive)
}

func (p *Peripheral) SlavePut(v byte) {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.record(OpPut, v)
	if !p.txWant || p.master == nil {
		return
	}
	p.txWant = false
	p.master.deliver(v)
}

func (p *Peripheral) SlaveGet() byte {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	if len(p.rxq) == 0 {
		return 0
	}
	v := p.rxq[0]
	p.rxq = p.rxq[1:]
	if len(p.rxq) == 0 {
		p.pending &^= hal.StatusReceive
	}
	if m := p.stretch; m != nil {
		p.stretch = nil
		if m.ep != nil {
			m.raise(hal.StatusTransmit)
		}
	}
	return v
}

func (p *Peripheral) InterruptStatus() hal.Status {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	return p.pending & p.enabled
}

func (p *Peripheral) ClearInterrupt(s hal.Status) {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.pending &^= s
	// Receive is level-sensitive: it stays asserted while data is queued.
	if len(p.rxq) > 0 {
		p.raise(hal.StatusReceive)
	}
}

func (p *Peripheral) EnableInterrupt(s hal.Status) {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	p.enabled |= s
	if p.pending&p.enabled != 0 {
		p.signal()
	}
}

func (p *Peripheral) DisableInterrupt(s hal.Status) {
	p.bus.mu.Lock()
	p.enabled &^= s
	p.bus.mu.Unlock()
}
