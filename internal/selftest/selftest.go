// Package selftest exercises the bus engine end to end over a simulated
// bus: plain writes, register reads, NAK handling, a master/slave loopback
// between two modules and a real device driver.
package selftest

import (
	"errors"
	"time"

	"tinygo.org/x/drivers/shtc3"

	"twowire/config"
	"twowire/errcode"
	"twowire/hal"
	"twowire/hal/sim"
	"twowire/wire"
	"twowire/x/logx"
)

// Result is the outcome of one check.
type Result struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// OK reports whether the check passed.
func (r Result) OK() bool { return r.Err == nil }

type check struct {
	name string
	run  func(*rig) error
}

var checks = []check{
	{"write", checkWrite},
	{"register-read", checkRegisterRead},
	{"nak", checkNAK},
	{"loopback-receive", checkLoopbackReceive},
	{"loopback-request", checkLoopbackRequest},
	{"shtc3", checkSensor},
}

// Names lists the checks in the order Run executes them.
func Names() []string {
	out := make([]string, len(checks))
	for i, c := range checks {
		out[i] = c.name
	}
	return out
}

// Run executes every check against a fresh simulated bus laid out as cfg
// describes: its first master bus drives, its first slave bus answers.
func Run(cfg config.Config) []Result {
	log := logx.For(logx.ComponentSelftest)
	mb, sb := pick(cfg)
	out := make([]Result, 0, len(checks))
	for _, c := range checks {
		start := time.Now()
		err := runOne(mb, sb, c)
		r := Result{Name: c.name, Err: err, Elapsed: time.Since(start)}
		if err != nil {
			log.Warn("check failed", "check", c.name, "err", err)
		} else {
			log.Info("check passed", "check", c.name, "elapsed", r.Elapsed)
		}
		out = append(out, r)
	}
	return out
}

// Passed counts passing results.
func Passed(rs []Result) int {
	n := 0
	for _, r := range rs {
		if r.OK() {
			n++
		}
	}
	return n
}

func pick(cfg config.Config) (master, slave config.Bus) {
	master = config.Bus{Module: 0, Role: config.RoleMaster, ClockHz: config.DefaultClockHz,
		DataRate: config.DefaultDataRate, TimeoutMS: config.DefaultTimeoutMS}
	slave = config.Bus{Module: 1, Role: config.RoleSlave, Address: 0x21, TimeoutMS: config.DefaultTimeoutMS}
	var gotM, gotS bool
	for _, b := range cfg.Buses {
		switch {
		case !b.IsSlave() && !gotM:
			master, gotM = b, true
		case b.IsSlave() && !gotS:
			slave, gotS = b, true
		}
	}
	if slave.Module == master.Module {
		slave.Module = (master.Module + 1) % hal.MaxModules
	}
	return master, slave
}

// rig is one simulated bus with a master and a slave driver.
type rig struct {
	bus    *sim.Bus
	master *wire.Driver
	slave  *wire.Driver
	addr   uint8 // slave address
}

func runOne(mb, sb config.Bus, c check) error {
	b := sim.NewBus()
	defer b.Close()

	m, err := wire.New(mb.ID(), b.Module(mb.ID(), wire.HandleInterrupt), wire.WithConfig(mb))
	if err != nil {
		return err
	}
	defer m.Close()
	s, err := wire.New(sb.ID(), b.Module(sb.ID(), wire.HandleInterrupt), wire.WithConfig(sb))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := m.Begin(); err != nil {
		return err
	}
	if err := s.Begin(); err != nil {
		return err
	}
	return c.run(&rig{bus: b, master: m, slave: s, addr: sb.Address})
}

func fail(msg string) error { return &errcode.E{C: errcode.Error, Op: "selftest", Msg: msg} }

func checkWrite(r *rig) error {
	dev := &sim.Device{}
	r.bus.Attach(0x30, dev)
	payload := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	if err := r.master.Tx(0x30, payload, nil); err != nil {
		return err
	}
	if string(dev.Written()) != string(payload) {
		return fail("device saw bytes out of order")
	}
	return nil
}

func checkRegisterRead(r *rig) error {
	mem := &sim.Memory{}
	mem.Load(0x40, []byte{0xCA, 0xFE, 0xF0, 0x0D})
	r.bus.Attach(0x50, mem)
	got := make([]byte, 4)
	if err := r.master.Tx(0x50, []byte{0x40}, got); err != nil {
		return err
	}
	if string(got) != "\xCA\xFE\xF0\x0D" {
		return fail("register read mismatch")
	}
	return nil
}

func checkNAK(r *rig) error {
	n, err := r.master.RequestFrom(0x42, 1)
	if n != 0 || !errors.Is(err, errcode.AddressNAK) {
		return fail("absent address was not refused")
	}
	if r.master.Available() != 0 {
		return fail("data left after NAK")
	}
	return nil
}

func checkLoopbackReceive(r *rig) error {
	counts := make(chan int, 2)
	r.slave.OnReceive(func(n int) { counts <- n })

	msg := []byte("ping")
	if err := r.master.Tx(uint16(r.addr), msg, nil); err != nil {
		return err
	}
	select {
	case n := <-counts:
		if n != len(msg) {
			return fail("slave counted wrong length")
		}
	case <-time.After(time.Second):
		return errcode.Wrap("selftest", errcode.Timeout)
	}
	buf := make([]byte, len(msg))
	if n, _ := r.slave.Read(buf); n != len(msg) || string(buf) != string(msg) {
		return fail("slave received wrong bytes")
	}
	return nil
}

func checkLoopbackRequest(r *rig) error {
	reply := []byte("pong")
	r.slave.OnRequest(func() { _, _ = r.slave.Write(reply) })

	got := make([]byte, len(reply))
	if err := r.master.Tx(uint16(r.addr), nil, got); err != nil {
		return err
	}
	if string(got) != string(reply) {
		return fail("master read wrong reply")
	}
	return nil
}

func checkSensor(r *rig) error {
	r.bus.Attach(shtc3.SHTC3_ADDRESS, newSensor(23500, 4500))

	dev := shtc3.New(r.master)
	_ = dev.WakeUp()
	defer func() { _ = dev.Sleep() }()

	milliC, rhx100, err := dev.ReadTemperatureHumidity()
	if err != nil {
		return err
	}
	if milliC != 23500 || rhx100 != 4500 {
		return fail("sensor reading off")
	}
	return nil
}
