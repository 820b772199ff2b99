package wire

import (
	"tinygo.org/x/drivers"

	"twowire/errcode"
	"twowire/xfer"
)

var _ drivers.I2C = (*Driver)(nil)

// Tx performs a write followed by a read, the transfer shape device drivers
// in tinygo.org/x/drivers expect. The write ends with STOP only when there
// is nothing to read; otherwise the read follows with a repeated START.
// Either slice may be empty. Tx is safe for concurrent callers.
func (d *Driver) Tx(addr uint16, w, r []byte) error {
	const op = "wire.Tx"
	if addr > 0x7F {
		return errcode.Wrap(op, errcode.InvalidParams)
	}
	if len(w) > xfer.Capacity || len(r) > xfer.Capacity {
		return errcode.Wrap(op, errcode.BufferOverflow)
	}
	a := uint8(addr)

	d.serial.Lock()
	defer d.serial.Unlock()
	ctx, cancel := d.ctx()
	defer cancel()

	if len(w) > 0 {
		if err := d.BeginTransmissionContext(ctx, a); err != nil {
			return err
		}
		if _, err := d.Write(w); err != nil {
			return err
		}
		if err := d.EndTransmission(len(r) == 0); err != nil {
			return err
		}
		if err := d.Flush(ctx); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	n, err := d.RequestFromContext(ctx, a, len(r))
	if err != nil {
		return err
	}
	if got := d.rx.ReadInto(r[:n]); got < len(r) {
		return &errcode.E{C: errcode.Error, Op: op, Msg: "short read"}
	}
	return nil
}
