package wire

import (
	"context"

	"twowire/errcode"
)

// Available returns the number of received bytes waiting to be read.
func (d *Driver) Available() int { return d.rx.Available() }

// TryReadByte pops the next received byte without waiting.
func (d *Driver) TryReadByte() (byte, bool) { return d.rx.Get() }

// Read copies received bytes into p without waiting and returns the count.
func (d *Driver) Read(p []byte) (int, error) {
	return d.rx.ReadInto(p), nil
}

// ReadByte waits for the next received byte, bounded by the driver timeout.
func (d *Driver) ReadByte() (byte, error) {
	if b, ok := d.rx.Get(); ok {
		return b, nil
	}
	ctx, cancel := d.ctx()
	defer cancel()
	return d.ReadByteContext(ctx)
}

// ReadByteContext waits for the next received byte or until ctx is done.
// Bytes come out in arrival order.
func (d *Driver) ReadByteContext(ctx context.Context) (byte, error) {
	const op = "wire.ReadByte"
	for {
		if b, ok := d.rx.Get(); ok {
			return b, nil
		}
		d.cs.enter()
		closed := d.closed
		d.cs.exit()
		if closed {
			return 0, errcode.Wrap(op, errcode.Closed)
		}
		select {
		case <-d.rx.Readable():
			// coalesced; re-check
			if d.rx.Available() == 0 {
				d.stats.spurious.Add(1)
			}
		case <-d.quit:
		case <-ctx.Done():
			return 0, d.timedOut(op, ctx)
		}
	}
}
