package console

import (
	"errors"
	"strings"
	"testing"
	"time"

	"twowire/errcode"
	"twowire/hal"
	"twowire/hal/sim"
	"twowire/wire"
)

func newConsole(t *testing.T) (*Console, *sim.Memory) {
	t.Helper()
	b := sim.NewBus()
	t.Cleanup(b.Close)
	mem := &sim.Memory{}
	b.Attach(0x50, mem)

	d, err := wire.New(0, b.Module(0, wire.HandleInterrupt), wire.WithTimeout(500*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = d.Close() })
	if err := d.BeginMaster(hal.DefaultMasterConfig); err != nil {
		t.Fatal(err)
	}
	return New(d), mem
}

func TestScriptWritesThenReadsRegisters(t *testing.T) {
	c, mem := newConsole(t)

	out, err := c.Script("write 0x50 0x10 0xAB 0xCD; wr 0x50 0x10 2\nstats")
	if err != nil {
		t.Fatalf("Script: %v (out %q)", err, out)
	}
	if len(out) != 3 {
		t.Fatalf("out = %q", out)
	}
	if out[0] != "ok 3" {
		t.Fatalf("write -> %q", out[0])
	}
	if out[1] != "0xAB 0xCD" {
		t.Fatalf("wr -> %q", out[1])
	}
	if got := mem.Dump(0x10, 2); got[0] != 0xAB || got[1] != 0xCD {
		t.Fatalf("memory = %x", got)
	}
	if !strings.HasPrefix(out[2], "irq=") || !strings.HasSuffix(out[2], " nak=0 drops=0 pads=0 timeouts=0") {
		t.Fatalf("stats -> %q", out[2])
	}
}

func TestQuotedArgumentsAndErrors(t *testing.T) {
	c, _ := newConsole(t)

	if _, err := c.Exec(`write "0x50" 1`); err != nil {
		t.Fatalf("quoted address: %v", err)
	}
	cases := []string{
		"read 0x50",
		"read 0x50 0",
		"write 0x50 0x1FF",
		"frobnicate",
		`write "0x50`,
	}
	for _, line := range cases {
		if _, err := c.Exec(line); !errors.Is(err, errcode.InvalidParams) {
			t.Errorf("%q: err = %v, want invalid_params", line, err)
		}
	}
	if _, err := c.Exec("read 0x44 1"); !errors.Is(err, errcode.AddressNAK) {
		t.Fatalf("read from absent device = %v", err)
	}
}
