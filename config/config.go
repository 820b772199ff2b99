// Package config resolves the per-board bus layout from JSON embedded in
// the firmware image.
package config

import (
	"encoding/json"
	"strconv"
	"time"

	"twowire/errcode"
	"twowire/hal"
	"twowire/x/logx"
	"twowire/x/mathx"
	"twowire/x/strx"
)

const (
	RoleMaster = "master"
	RoleSlave  = "slave"
)

// Defaults and limits applied by Load.
const (
	DefaultClockHz   = 12_000_000
	DefaultDataRate  = 400_000
	DefaultTimeoutMS = 100

	minDataRate  = 10_000
	maxDataRate  = 1_000_000
	minTimeoutMS = 1
	maxTimeoutMS = 10_000
)

// EmbeddedLookup resolves a board name to raw JSON. Tests may replace it.
var EmbeddedLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// Bus describes one module.
type Bus struct {
	Module    uint8  `json:"module"`
	Role      string `json:"role"`
	Address   uint8  `json:"address"` // own address; slaves only
	ClockHz   uint32 `json:"clock_hz"`
	DataRate  uint32 `json:"data_rate"`
	TimeoutMS int    `json:"timeout_ms"`
}

// Config is the bus layout of one board.
type Config struct {
	Board string `json:"board"`
	Buses []Bus  `json:"buses"`
}

// Load parses and validates the embedded configuration for board.
func Load(board string) (Config, error) {
	const op = "config.Load"
	raw, ok := EmbeddedLookup(board)
	if !ok || len(raw) == 0 {
		return Config{}, &errcode.E{C: errcode.NotConfigured, Op: op, Msg: "no embedded config for board " + board}
	}
	c, err := Parse(raw)
	if err != nil {
		return Config{}, err
	}
	c.Board = strx.Coalesce(c.Board, board)
	logx.For(logx.ComponentConfig).Debug("loaded", "board", c.Board, "buses", len(c.Buses))
	return c, nil
}

// Parse decodes raw JSON, fills defaults and validates every bus.
func Parse(raw []byte) (Config, error) {
	const op = "config.Parse"
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return Config{}, &errcode.E{C: errcode.InvalidParams, Op: op, Err: err}
	}
	var seen [hal.MaxModules]bool
	for i := range c.Buses {
		b := &c.Buses[i]
		if err := b.normalise(); err != nil {
			return Config{}, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "bus " + strconv.Itoa(i) + ": " + err.Error()}
		}
		if seen[b.Module] {
			return Config{}, &errcode.E{C: errcode.InvalidParams, Op: op, Msg: "module " + strconv.Itoa(int(b.Module)) + " listed twice"}
		}
		seen[b.Module] = true
	}
	return c, nil
}

type fieldError string

func (e fieldError) Error() string { return string(e) }

func (b *Bus) normalise() error {
	if !hal.ModuleID(b.Module).Valid() {
		return fieldError("module out of range")
	}
	b.Role = strx.Coalesce(b.Role, RoleMaster)
	switch b.Role {
	case RoleMaster:
		b.Address = 0
	case RoleSlave:
		if b.Address == 0 || b.Address > 0x7F {
			return fieldError("slave address must be 1..127")
		}
	default:
		return fieldError("unknown role " + strconv.Quote(b.Role))
	}
	if b.ClockHz == 0 {
		b.ClockHz = DefaultClockHz
	}
	if b.DataRate == 0 {
		b.DataRate = DefaultDataRate
	}
	b.DataRate = mathx.Clamp(b.DataRate, minDataRate, maxDataRate)
	if b.TimeoutMS == 0 {
		b.TimeoutMS = DefaultTimeoutMS
	}
	b.TimeoutMS = mathx.Clamp(b.TimeoutMS, minTimeoutMS, maxTimeoutMS)
	return nil
}

// Bus returns the entry for module, if any.
func (c Config) Bus(module hal.ModuleID) (Bus, bool) {
	for _, b := range c.Buses {
		if hal.ModuleID(b.Module) == module {
			return b, true
		}
	}
	return Bus{}, false
}

// ID returns the module as a hal.ModuleID.
func (b Bus) ID() hal.ModuleID { return hal.ModuleID(b.Module) }

// IsSlave reports whether the bus is configured as a slave.
func (b Bus) IsSlave() bool { return b.Role == RoleSlave }

// Timeout returns the foreground wait bound.
func (b Bus) Timeout() time.Duration { return time.Duration(b.TimeoutMS) * time.Millisecond }

// MasterConfig returns the clocking for master operation.
func (b Bus) MasterConfig() hal.MasterConfig {
	return hal.MasterConfig{
		SourceClockHz: b.ClockHz,
		DataRateHz:    b.DataRate,
	}
}
