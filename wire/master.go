package wire

import (
	"context"
	"time"

	"twowire/errcode"
	"twowire/hal"
	"twowire/xfer"
)

// stopPoll is how often a foreground wait re-checks a STOP still being
// generated; the peripheral does not interrupt when it completes.
const stopPoll = 50 * time.Microsecond

// BeginTransmission starts buffering a write to addr. It waits for the
// previous transmission to drain and its STOP to complete, then reprograms
// the target address if it changed. Unsent bytes are discarded.
func (d *Driver) BeginTransmission(addr uint8) error {
	ctx, cancel := d.ctx()
	defer cancel()
	return d.BeginTransmissionContext(ctx, addr)
}

// BeginTransmissionContext is BeginTransmission bounded by ctx.
func (d *Driver) BeginTransmissionContext(ctx context.Context, addr uint8) error {
	const op = "wire.BeginTransmission"
	if err := d.checkRole(op, RoleMaster); err != nil {
		return err
	}
	if err := d.waitIdle(ctx, op); err != nil {
		return err
	}
	d.cs.enter()
	if d.txActive {
		d.cs.exit()
		return errcode.Wrap(op, errcode.Busy)
	}
	d.bufs.TX.Reset()
	if addr != d.target {
		d.hw.SetSlaveAddress(addr)
		d.target = addr
	}
	d.cs.exit()
	return nil
}

// WriteByte queues b for the next transmission. As master it is sent by
// EndTransmission; as slave it answers the current or next read.
func (d *Driver) WriteByte(b byte) error {
	const op = "wire.Write"
	d.cs.enter()
	defer d.cs.exit()
	if err := d.writable(op); err != nil {
		return err
	}
	if !d.bufs.TX.Append(b) {
		return errcode.Wrap(op, errcode.BufferOverflow)
	}
	return nil
}

// Write queues p. Bytes that do not fit are not queued; the count of those
// that were is returned with errcode.BufferOverflow.
func (d *Driver) Write(p []byte) (int, error) {
	const op = "wire.Write"
	d.cs.enter()
	defer d.cs.exit()
	if err := d.writable(op); err != nil {
		return 0, err
	}
	for i, b := range p {
		if !d.bufs.TX.Append(b) {
			return i, errcode.Wrap(op, errcode.BufferOverflow)
		}
	}
	return len(p), nil
}

// writable reports whether the foreground owns the TX buffer. Caller holds cs.
func (d *Driver) writable(op string) error {
	switch {
	case d.closed:
		return errcode.Wrap(op, errcode.Closed)
	case d.role == RoleNone:
		return errcode.Wrap(op, errcode.NotConfigured)
	case d.txActive, d.slaveTx:
		return errcode.Wrap(op, errcode.Busy)
	}
	return nil
}

// EndTransmission hands the buffered bytes to the interrupt handler and
// issues START with the first one. It returns without waiting; Flush
// reports the outcome. An empty buffer is a no-op. With sendStop false the
// bus is held for a following repeated START.
func (d *Driver) EndTransmission(sendStop bool) error {
	const op = "wire.EndTransmission"
	d.cs.enter()
	defer d.cs.exit()
	if err := d.roleLocked(op, RoleMaster); err != nil {
		return err
	}
	if d.txActive {
		return errcode.Wrap(op, errcode.Busy)
	}
	tx := &d.bufs.TX
	if tx.Empty() {
		return nil
	}
	drain(d.idle)
	d.txActive = true
	d.sendStop = sendStop
	d.txErr = nil
	first, _ := tx.Next()
	d.hw.SendStart(first)
	return nil
}

// EndTransmissionStop is EndTransmission(true).
func (d *Driver) EndTransmissionStop() error { return d.EndTransmission(true) }

// Flush waits until the pending transmission has left the buffer and
// returns its outcome: nil, or errcode.AddressNAK when the target refused.
func (d *Driver) Flush(ctx context.Context) error {
	const op = "wire.Flush"
	if err := d.checkRole(op, RoleMaster); err != nil {
		return err
	}
	if err := d.waitIdle(ctx, op); err != nil {
		return err
	}
	d.cs.enter()
	err := d.txErr
	d.txErr = nil
	d.cs.exit()
	return err
}

// FlushTimeout is Flush bounded by the driver timeout.
func (d *Driver) FlushTimeout() error {
	ctx, cancel := d.ctx()
	defer cancel()
	return d.Flush(ctx)
}

// waitIdle blocks until no transmission is in flight and no STOP is pending.
func (d *Driver) waitIdle(ctx context.Context, op string) error {
	for {
		d.cs.enter()
		busy := d.txActive
		d.cs.exit()
		if !busy && !d.hw.StopPending() {
			return nil
		}
		if busy {
			select {
			case <-d.idle:
			case <-d.quit:
				return errcode.Wrap(op, errcode.Closed)
			case <-ctx.Done():
				return d.timedOut(op, ctx)
			}
			continue
		}
		select {
		case <-time.After(stopPoll):
		case <-d.quit:
			return errcode.Wrap(op, errcode.Closed)
		case <-ctx.Done():
			return d.timedOut(op, ctx)
		}
	}
}

// RequestFrom reads n bytes from addr into the receive snapshot and returns
// the count. A NAK yields 0 with errcode.AddressNAK. Bytes buffered by a
// preceding write are sent first without STOP, so the read follows with a
// repeated START.
func (d *Driver) RequestFrom(addr uint8, n int) (int, error) {
	ctx, cancel := d.ctx()
	defer cancel()
	return d.RequestFromContext(ctx, addr, n)
}

// RequestFromContext is RequestFrom bounded by ctx.
func (d *Driver) RequestFromContext(ctx context.Context, addr uint8, n int) (int, error) {
	const op = "wire.RequestFrom"
	if err := d.checkRole(op, RoleMaster); err != nil {
		return 0, err
	}
	if n > xfer.Capacity {
		return 0, errcode.Wrap(op, errcode.BufferOverflow)
	}
	if n <= 0 {
		return 0, nil
	}

	d.cs.enter()
	pending := !d.txActive && !d.bufs.TX.Empty()
	d.cs.exit()
	if pending {
		if err := d.EndTransmission(false); err != nil {
			return 0, err
		}
	}
	if err := d.waitIdle(ctx, op); err != nil {
		return 0, err
	}

	d.rx.Discard()
	drain(d.done)

	d.cs.enter()
	if pending && d.txErr != nil {
		// The register write preceding this read was refused.
		d.txErr = nil
		d.cs.exit()
		return 0, errcode.Wrap(op, errcode.AddressNAK)
	}
	d.bufs.RX.Expect(n)
	d.requesting = true
	d.requestDone = false
	d.gotNAK = false
	d.target = addr
	d.hw.SetSlaveAddress(addr)
	d.hw.DisableInterrupt(hal.StatusTransmit)
	d.hw.SetMode(hal.ModeReceive)
	d.hw.ReceiveStart()
	if n == 1 {
		// STOP goes out with the only byte.
		d.hw.ReceiveStop()
	}
	d.cs.exit()

	expired, closed := false, false
	for !expired && !closed {
		d.cs.enter()
		fin := d.requestDone
		d.cs.exit()
		if fin {
			break
		}
		select {
		case <-d.done:
		case <-d.quit:
			closed = true
		case <-ctx.Done():
			expired = true
		}
	}

	d.cs.enter()
	if d.closed {
		// Close already released the peripheral and the buffers.
		d.requesting = false
		d.cs.exit()
		d.rx.Discard()
		return 0, errcode.Wrap(op, errcode.Closed)
	}
	if d.requestDone {
		expired = false
	}
	got := d.bufs.RX.Len()
	nak := d.gotNAK
	if expired {
		d.hw.SendStop()
	}
	d.requesting = false
	d.bufs.RX.Reset()
	d.hw.SetMode(hal.ModeTransmit)
	d.hw.ClearInterrupt(hal.StatusTransmit)
	d.hw.EnableInterrupt(hal.StatusTransmit)
	d.cs.exit()

	switch {
	case expired:
		d.rx.Discard()
		return 0, d.timedOut(op, ctx)
	case nak:
		d.log.Debug("nak", "op", op, "addr", addr)
		return 0, errcode.Wrap(op, errcode.AddressNAK)
	}
	return got, nil
}

// checkRole verifies the driver is open and begun in r.
func (d *Driver) checkRole(op string, r Role) error {
	d.cs.enter()
	defer d.cs.exit()
	return d.roleLocked(op, r)
}

func (d *Driver) roleLocked(op string, r Role) error {
	switch {
	case d.closed:
		return errcode.Wrap(op, errcode.Closed)
	case d.role == RoleNone:
		return errcode.Wrap(op, errcode.NotConfigured)
	case d.role != r:
		return errcode.Wrap(op, errcode.RoleMismatch)
	}
	return nil
}
