// Package hal defines the contract between the bus engine and an I²C
// peripheral. Wire framing (address + R/W bit, per-byte ACK/NAK, START/STOP
// conditions) is produced and consumed by the peripheral, never by the engine.
package hal

// MaxModules is the number of identical peripheral instances a part exposes.
const MaxModules = 4

// ModuleID identifies one peripheral instance (0..MaxModules-1).
type ModuleID uint8

// Valid reports whether id names an existing module.
func (id ModuleID) Valid() bool { return id < MaxModules }

// Mode selects the master data direction.
type Mode uint8

const (
	ModeTransmit Mode = iota
	ModeReceive
)

// Status is a bitmask of interrupt sources.
type Status uint16

const (
	// StatusReceive: a data byte is waiting in the receive register.
	StatusReceive Status = 1 << iota
	// StatusTransmit: as master the previous byte was accepted; as slave the
	// master is clocking data out of us.
	StatusTransmit
	// StatusNAK: the addressed slave did not acknowledge.
	StatusNAK
	// StatusStop: a STOP condition was observed on the bus.
	StatusStop
	// StatusStart: this module was addressed as slave by a START or
	// repeated START.
	StatusStart
)

// Master and slave interrupt sets.
const (
	MasterInterrupts = StatusTransmit | StatusReceive | StatusNAK
	SlaveInterrupts  = StatusReceive | StatusTransmit | StatusStop | StatusStart
)

// Has reports whether all bits of m are set.
func (s Status) Has(m Status) bool { return s&m == m }

// MasterConfig carries the clocking parameters for master operation.
type MasterConfig struct {
	// SourceClockHz is the input clock feeding the bit-rate generator.
	SourceClockHz uint32
	// DataRateHz is the SCL frequency, e.g. 100_000 or 400_000.
	DataRateHz uint32
	// ByteCounterThreshold configures an automatic byte counter; 0 disables.
	ByteCounterThreshold uint8
	// AutoStop lets the peripheral emit STOP when the byte counter expires.
	AutoStop bool
}

// DefaultMasterConfig is 400 kHz with no byte counter and no auto-stop.
var DefaultMasterConfig = MasterConfig{
	SourceClockHz: 12_000_000,
	DataRateHz:    400_000,
}

// Peripheral is the register-level primitive set for one module.
//
// All methods must be callable from interrupt context. Implementations raise
// the module's interrupt vector whenever an enabled status bit becomes set.
type Peripheral interface {
	InitMaster(cfg MasterConfig) error
	InitSlave(own uint8) error

	// SetSlaveAddress programs the target address (master) register.
	SetSlaveAddress(addr uint8)
	SetMode(m Mode)

	// Master transmit.
	SendStart(first byte)
	SendNext(b byte)
	SendStop()
	// StopPending reports a STOP condition still being generated.
	StopPending() bool

	// Master receive. ReceiveStop arranges for STOP after the byte in flight.
	ReceiveStart()
	ReceiveNext() byte
	ReceiveStop()

	// Slave data registers.
	SlavePut(b byte)
	SlaveGet() byte

	// InterruptStatus returns the enabled and pending sources.
	InterruptStatus() Status
	ClearInterrupt(s Status)
	EnableInterrupt(s Status)
	DisableInterrupt(s Status)
}

// Vector is the fixed interrupt entry point for a module.
type Vector func(id ModuleID)
