// Package console runs one-line bus commands against a master driver:
//
//	write 0x30 0x00 0x01     write bytes, STOP
//	read 0x50 4              read 4 bytes
//	wr 0x50 0x10 4           write register 0x10, repeated START, read 4
//	stats                    driver counters
package console

import (
	"strconv"
	"strings"

	"github.com/google/shlex"

	"twowire/errcode"
	"twowire/wire"
	"twowire/x/conv"
)

// Console executes commands on one master driver.
type Console struct {
	d *wire.Driver
}

// New returns a console driving d.
func New(d *wire.Driver) *Console { return &Console{d: d} }

// Script splits s on ';' and newlines and executes each non-empty command.
// It stops at the first error. Each command's output is one line.
func (c *Console) Script(s string) ([]string, error) {
	var out []string
	for _, line := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == '\n' }) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		res, err := c.Exec(line)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Exec runs one command and returns its output line.
func (c *Console) Exec(line string) (string, error) {
	const op = "console.Exec"
	args, err := shlex.Split(line)
	if err != nil {
		return "", &errcode.E{C: errcode.InvalidParams, Op: op, Err: err}
	}
	if len(args) == 0 {
		return "", nil
	}
	switch args[0] {
	case "write", "w":
		addr, data, err := addrAndBytes(args[1:])
		if err != nil {
			return "", err
		}
		if err := c.d.Tx(uint16(addr), data, nil); err != nil {
			return "", err
		}
		return "ok " + strconv.Itoa(len(data)), nil

	case "read", "r":
		if len(args) != 3 {
			return "", usage("read ADDR N")
		}
		addr, err := parseByte(args[1])
		if err != nil {
			return "", err
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return "", usage("read ADDR N")
		}
		return c.read(addr, nil, n)

	case "wr":
		if len(args) < 3 {
			return "", usage("wr ADDR REG... N")
		}
		addr, regs, err := addrAndBytes(args[1 : len(args)-1])
		if err != nil {
			return "", err
		}
		n, err := strconv.Atoi(args[len(args)-1])
		if err != nil {
			return "", usage("wr ADDR REG... N")
		}
		return c.read(addr, regs, n)

	case "stats":
		s := c.d.Stats()
		out := conv.AppendField(nil, "irq", uint64(s.Interrupts))
		out = conv.AppendField(out, "nak", uint64(s.NAKs))
		out = conv.AppendField(out, "drops", uint64(s.RxDrops))
		out = conv.AppendField(out, "pads", uint64(s.TxPads))
		out = conv.AppendField(out, "timeouts", uint64(s.Timeouts))
		return string(out), nil
	}
	return "", usage("unknown command " + strconv.Quote(args[0]))
}

func (c *Console) read(addr uint8, w []byte, n int) (string, error) {
	if n <= 0 {
		return "", usage("count must be positive")
	}
	r := make([]byte, n)
	if err := c.d.Tx(uint16(addr), w, r); err != nil {
		return "", err
	}
	return hexLine(r), nil
}

func addrAndBytes(args []string) (uint8, []byte, error) {
	if len(args) == 0 {
		return 0, nil, usage("missing address")
	}
	addr, err := parseByte(args[0])
	if err != nil {
		return 0, nil, err
	}
	data := make([]byte, 0, len(args)-1)
	for _, a := range args[1:] {
		b, err := parseByte(a)
		if err != nil {
			return 0, nil, err
		}
		data = append(data, b)
	}
	return addr, data, nil
}

func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, &errcode.E{C: errcode.InvalidParams, Op: "console", Msg: "bad byte " + strconv.Quote(s)}
	}
	return uint8(v), nil
}

func hexLine(p []byte) string {
	out := make([]byte, 0, len(p)*5)
	for i, b := range p {
		if i > 0 {
			out = append(out, ' ')
		}
		out = conv.AppendByteHex(out, b)
	}
	return string(out)
}

func usage(msg string) error {
	return &errcode.E{C: errcode.InvalidParams, Op: "console", Msg: msg}
}
