package wire

import (
	"twowire/errcode"
	"twowire/hal"
)

// errAddressNAK is stored by the handler, which must not allocate.
var errAddressNAK = errcode.Wrap("wire.EndTransmission", errcode.AddressNAK)

// HandleInterrupt is the interrupt vector for module id. It routes to the
// registered owner; with no owner it does nothing. Install it as the
// module's hal.Vector.
func HandleInterrupt(id hal.ModuleID) {
	if d := owners.Lookup(id); d != nil {
		d.service()
	}
}

var _ hal.Vector = HandleInterrupt

// callbacks collected under the critical section and run after it.
type callbacks struct {
	onReceive func(n int)
	received  int
	onRequest func()
}

// service handles one interrupt. Master sources are taken in the order
// receive, NAK, transmit; slave ordering is described on serviceSlave.
func (d *Driver) service() {
	var cb callbacks

	d.cs.enter()
	if d.closed {
		d.cs.exit()
		return
	}
	d.stats.interrupts.Add(1)
	st := d.hw.InterruptStatus()
	d.hw.ClearInterrupt(st)
	switch d.role {
	case RoleMaster:
		d.serviceMaster(st)
	case RoleSlave:
		d.serviceSlave(st, &cb)
	}
	d.cs.exit()

	if cb.onReceive != nil {
		cb.onReceive(cb.received)
	}
	if cb.onRequest != nil {
		cb.onRequest()
		d.cs.enter()
		if !d.closed && d.role == RoleSlave {
			d.feedSlave()
		}
		d.cs.exit()
	}
}

// serviceMaster advances a transmission or a request. Caller holds cs.
func (d *Driver) serviceMaster(st hal.Status) {
	if st.Has(hal.StatusReceive) && d.requesting && !d.requestDone {
		rx := &d.bufs.RX
		if rx.Want() > 1 && rx.Remaining() == 1 {
			// Arrange STOP after the final byte.
			d.hw.ReceiveStop()
		}
		if !rx.Append(d.hw.ReceiveNext()) {
			d.stats.rxDrops.Add(1)
		}
		if rx.Complete() {
			if w := d.rx.WriteFrom(rx.Bytes()); w < rx.Len() {
				d.stats.rxDrops.Add(uint32(rx.Len() - w))
			}
			d.finishRequest(false)
		}
	}

	if st.Has(hal.StatusNAK) {
		d.stats.naks.Add(1)
		switch {
		case d.txActive:
			d.bufs.TX.Reset()
			d.txActive = false
			d.txErr = errAddressNAK
			d.hw.SendStop()
			notify(d.idle)
		case d.requesting && !d.requestDone:
			d.hw.SendStop()
			d.finishRequest(true)
		}
	}

	if st.Has(hal.StatusTransmit) && d.txActive {
		tx := &d.bufs.TX
		if v, ok := tx.Next(); ok {
			d.hw.SendNext(v)
			return
		}
		if d.sendStop {
			d.hw.SendStop()
		}
		tx.Reset()
		d.txActive = false
		notify(d.idle)
	}
}

// finishRequest marks the current request finished. Caller holds cs.
func (d *Driver) finishRequest(nak bool) {
	d.requestDone = true
	d.gotNAK = nak
	notify(d.done)
}

// serviceSlave collects received bytes and feeds a reading master. Caller
// holds cs; callbacks are returned in cb.
//
// A START in the same status as a STOP opens the next transaction, so the
// STOP is taken first and the receive belongs to the new message. Without a
// START the receive is the last byte before the STOP.
func (d *Driver) serviceSlave(st hal.Status, cb *callbacks) {
	if st.Has(hal.StatusStart) {
		// Also covers a repeated START with no STOP in between.
		d.slaveEnd(cb)
	}

	if st.Has(hal.StatusReceive) {
		if !d.bufs.RX.Append(d.hw.SlaveGet()) {
			d.stats.rxDrops.Add(1)
		}
	}

	if st.Has(hal.StatusStop) && !st.Has(hal.StatusStart) {
		d.slaveEnd(cb)
	}

	if st.Has(hal.StatusTransmit) {
		if d.handleRequestSlave() {
			cb.onRequest = d.onRequest
		}
	}
}

// slaveEnd closes the current slave transaction: a reply in progress is
// dropped and a completed receive is handed to onReceive. Caller holds cs.
func (d *Driver) slaveEnd(cb *callbacks) {
	if d.slaveTx {
		d.slaveTx = false
		d.bufs.TX.Reset()
	}
	if !d.bufs.RX.Empty() {
		cb.received = d.handleReceive()
		cb.onReceive = d.onReceive
	}
}

// handleReceive moves a completed slave receive into the snapshot and
// returns its length. Caller holds cs.
func (d *Driver) handleReceive() int {
	rx := &d.bufs.RX
	n := rx.Len()
	if w := d.rx.WriteFrom(rx.Bytes()); w < n {
		d.stats.rxDrops.Add(uint32(n - w))
	}
	rx.Reset()
	return n
}

// handleRequestSlave answers one byte of a master read. When nothing is
// queued at the start of the transaction it reports that onRequest must run
// first; the byte is then fed by feedSlave. Caller holds cs.
func (d *Driver) handleRequestSlave() (needCallback bool) {
	if !d.slaveTx && d.bufs.TX.Pending() == 0 && d.onRequest != nil {
		return true
	}
	d.feedSlave()
	return false
}

// feedSlave puts the next queued byte, or 0x00 once the queue is exhausted.
// Caller holds cs.
func (d *Driver) feedSlave() {
	d.slaveTx = true
	if v, ok := d.bufs.TX.Next(); ok {
		d.hw.SlavePut(v)
		return
	}
	d.stats.txPads.Add(1)
	d.hw.SlavePut(0x00)
}
