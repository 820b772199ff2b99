// Package wire is an interrupt-driven I²C engine for one peripheral module.
//
// A Driver acts as either bus master or addressed slave. Application calls
// fill and drain fixed-capacity buffers; the module's interrupt vector,
// HandleInterrupt, moves bytes between those buffers and the peripheral.
// Foreground waits are bounded and surface errcode.Timeout instead of
// spinning forever.
package wire

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"twowire/errcode"
	"twowire/hal"
	"twowire/registry"
	"twowire/x/logx"
	"twowire/x/shmring"
	"twowire/xfer"
)

// DefaultTimeout bounds every foreground wait unless overridden.
const DefaultTimeout = 100 * time.Millisecond

// snapshotSize is the local receive ring; two full transfers fit.
const snapshotSize = 2 * xfer.Capacity

// Role is the bus role a driver was begun in.
type Role uint8

const (
	RoleNone Role = iota
	RoleMaster
	RoleSlave
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleSlave:
		return "slave"
	default:
		return "none"
	}
}

// owners routes a module's interrupt to the driver bound to it.
var owners registry.Registry[Driver]

// Driver owns one peripheral module.
type Driver struct {
	id   hal.ModuleID
	hw   hal.Peripheral
	bufs *xfer.Pair
	cs   critical

	serial sync.Mutex // one Tx at a time

	timeout time.Duration
	log     *slog.Logger
	mcfg    hal.MasterConfig
	defRole Role
	defOwn  uint8

	// Guarded by cs.
	role     Role
	target   uint8
	own      uint8
	closed   bool
	sendStop bool
	txActive bool  // TX buffer belongs to the handler until drained
	txErr    error // outcome of the last transmission, reported by Flush
	slaveTx  bool  // slave transmit in progress; onRequest already consulted

	requesting  bool
	requestDone bool
	gotNAK      bool

	onReceive func(n int)
	onRequest func()

	// rx is the local receive snapshot. The handler is its only producer.
	rx *shmring.Ring

	idle chan struct{} // transmission drained or aborted
	done chan struct{} // request finished
	quit chan struct{} // closed by Close

	stats counters
}

// Option configures a Driver at construction.
type Option func(*Driver)

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(drv *Driver) {
		if d > 0 {
			drv.timeout = d
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(drv *Driver) {
		if l != nil {
			drv.log = l
		}
	}
}

// WithMasterConfig sets the configuration used by Begin.
func WithMasterConfig(cfg hal.MasterConfig) Option {
	return func(drv *Driver) { drv.mcfg = cfg }
}

// New binds a driver to module id and registers it as the module's owner.
// A module can have only one owner at a time.
func New(id hal.ModuleID, hw hal.Peripheral, opts ...Option) (*Driver, error) {
	const op = "wire.New"
	if hw == nil {
		return nil, errcode.Wrap(op, errcode.InvalidParams)
	}
	bufs := xfer.For(id)
	if bufs == nil {
		return nil, errcode.Wrap(op, errcode.UnknownModule)
	}
	d := &Driver{
		id:      id,
		hw:      hw,
		bufs:    bufs,
		timeout: DefaultTimeout,
		log:     logx.For(logx.ComponentWire),
		mcfg:    hal.DefaultMasterConfig,
		defRole: RoleMaster,
		rx:      shmring.New(snapshotSize),
		idle:    make(chan struct{}, 1),
		done:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	d.log = d.log.With("module", int(id))
	if err := owners.Register(id, d); err != nil {
		return nil, &errcode.E{C: errcode.Of(err), Op: op}
	}
	// The previous owner may have left bytes behind.
	d.cs.enter()
	bufs.TX.Reset()
	bufs.RX.Reset()
	d.cs.exit()
	return d, nil
}

// ID returns the module the driver owns.
func (d *Driver) ID() hal.ModuleID { return d.id }

// Begin starts the driver in the role given at construction: master with
// the configured clocking unless WithConfig selected a slave address.
func (d *Driver) Begin() error {
	if d.defRole == RoleSlave {
		return d.BeginSlave(d.defOwn)
	}
	return d.BeginMaster(d.mcfg)
}

// BeginMaster configures the module as bus master.
func (d *Driver) BeginMaster(cfg hal.MasterConfig) error {
	const op = "wire.BeginMaster"
	d.cs.enter()
	if err := d.claim(op, RoleMaster); err != nil {
		d.cs.exit()
		return err
	}
	d.hw.DisableInterrupt(hal.MasterInterrupts | hal.SlaveInterrupts)
	if err := d.hw.InitMaster(cfg); err != nil {
		d.cs.exit()
		return &errcode.E{C: errcode.Of(err), Op: op, Err: err}
	}
	d.role = RoleMaster
	d.mcfg = cfg
	d.hw.SetSlaveAddress(d.target)
	d.hw.SetMode(hal.ModeTransmit)
	d.hw.ClearInterrupt(hal.MasterInterrupts)
	d.hw.EnableInterrupt(hal.MasterInterrupts)
	d.cs.exit()

	d.log.Debug("begin", "role", RoleMaster.String(), "rate", cfg.DataRateHz)
	return nil
}

// BeginSlave configures the module as a slave answering at own.
func (d *Driver) BeginSlave(own uint8) error {
	const op = "wire.BeginSlave"
	d.cs.enter()
	if err := d.claim(op, RoleSlave); err != nil {
		d.cs.exit()
		return err
	}
	d.hw.DisableInterrupt(hal.MasterInterrupts | hal.SlaveInterrupts)
	if err := d.hw.InitSlave(own); err != nil {
		d.cs.exit()
		return &errcode.E{C: errcode.Of(err), Op: op, Err: err}
	}
	d.role = RoleSlave
	d.own = own
	d.slaveTx = false
	d.bufs.TX.Reset()
	d.bufs.RX.Reset()
	d.hw.ClearInterrupt(hal.SlaveInterrupts)
	d.hw.EnableInterrupt(hal.SlaveInterrupts)
	d.cs.exit()

	d.log.Debug("begin", "role", RoleSlave.String(), "addr", own)
	return nil
}

// claim checks that the driver may (re)begin in r. Caller holds cs.
func (d *Driver) claim(op string, r Role) error {
	switch {
	case d.closed:
		return errcode.Wrap(op, errcode.Closed)
	case d.role != RoleNone && d.role != r:
		return errcode.Wrap(op, errcode.RoleMismatch)
	case d.txActive || d.requesting:
		return errcode.Wrap(op, errcode.Busy)
	}
	return nil
}

// IsMaster reports whether the driver was begun as master.
func (d *Driver) IsMaster() bool { return d.Role() == RoleMaster }

// Role returns the current role.
func (d *Driver) Role() Role {
	d.cs.enter()
	r := d.role
	d.cs.exit()
	return r
}

// OnReceive registers fn to run when a slave receive ends with STOP. It is
// called from interrupt context with the number of bytes received.
func (d *Driver) OnReceive(fn func(n int)) {
	d.cs.enter()
	d.onReceive = fn
	d.cs.exit()
}

// OnRequest registers fn to run when a master reads from this slave and
// nothing is queued. fn supplies the reply with WriteByte or Write. It is
// called from interrupt context, at most once per read transaction.
func (d *Driver) OnRequest(fn func()) {
	d.cs.enter()
	d.onRequest = fn
	d.cs.exit()
}

// Close disables the module's interrupts and releases it. Interrupts that
// arrive afterwards are ignored. Blocked waits return errcode.Closed.
func (d *Driver) Close() error {
	d.cs.enter()
	if d.closed {
		d.cs.exit()
		return nil
	}
	d.closed = true
	d.hw.DisableInterrupt(hal.MasterInterrupts | hal.SlaveInterrupts)
	if d.role == RoleMaster && (d.txActive || d.requesting) {
		// Release the bus held by the abandoned transaction.
		d.hw.SendStop()
	}
	d.txActive = false
	d.requesting = false
	d.bufs.TX.Reset()
	d.bufs.RX.Reset()
	close(d.quit)
	d.cs.exit()

	owners.Unregister(d)
	d.log.Debug("closed")
	return nil
}

// ctx returns a context bounded by the driver timeout.
func (d *Driver) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.timeout)
}

// timedOut converts a finished context into errcode.Timeout.
func (d *Driver) timedOut(op string, ctx context.Context) error {
	d.stats.timeouts.Add(1)
	d.log.Warn("timeout", "op", op)
	return &errcode.E{C: errcode.Timeout, Op: op, Err: ctx.Err()}
}

// notify is a coalesced, non-blocking wake.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// drain discards a stale wake.
func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

// counters are updated from interrupt context.
type counters struct {
	interrupts atomic.Uint32
	rxDrops    atomic.Uint32
	txPads     atomic.Uint32
	naks       atomic.Uint32
	timeouts   atomic.Uint32
	spurious   atomic.Uint32
}

// Stats holds counters since construction or the last ResetStats.
type Stats struct {
	Interrupts    uint32 // handler entries
	RxDrops       uint32 // bytes lost to a full buffer or snapshot
	TxPads        uint32 // slave reads answered with 0x00
	NAKs          uint32
	Timeouts      uint32
	SpuriousWakes uint32 // wakes that found nothing to do
}

// Stats returns a snapshot of the driver counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Interrupts:    d.stats.interrupts.Load(),
		RxDrops:       d.stats.rxDrops.Load(),
		TxPads:        d.stats.txPads.Load(),
		NAKs:          d.stats.naks.Load(),
		Timeouts:      d.stats.timeouts.Load(),
		SpuriousWakes: d.stats.spurious.Load(),
	}
}

// ResetStats zeroes the counters.
func (d *Driver) ResetStats() {
	d.stats.interrupts.Store(0)
	d.stats.rxDrops.Store(0)
	d.stats.txPads.Store(0)
	d.stats.naks.Store(0)
	d.stats.timeouts.Store(0)
	d.stats.spurious.Store(0)
}
