package selftest

import (
	"testing"

	"twowire/config"
)

func TestAllChecksPassOnHostLayout(t *testing.T) {
	cfg, err := config.Load("host")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	rs := Run(cfg)
	if len(rs) != len(Names()) {
		t.Fatalf("results = %d, want %d", len(rs), len(Names()))
	}
	for _, r := range rs {
		if !r.OK() {
			t.Errorf("%s: %v", r.Name, r.Err)
		}
	}
	if Passed(rs) != len(rs) {
		t.Fatalf("passed %d/%d", Passed(rs), len(rs))
	}
}

func TestEmptyLayoutUsesDefaults(t *testing.T) {
	m, s := pick(config.Config{})
	if m.Module == s.Module {
		t.Fatalf("master and slave share module %d", m.Module)
	}
	if !s.IsSlave() || s.Address == 0 {
		t.Fatalf("default slave = %+v", s)
	}
}

func TestSensirionCRC(t *testing.T) {
	// Datasheet example.
	if got := crc8([]byte{0xBE, 0xEF}); got != 0x92 {
		t.Fatalf("crc8 = %#x, want 0x92", got)
	}
}

func TestSensorNAKsReadWhileAsleep(t *testing.T) {
	s := newSensor(0, 0)
	if s.Begin(true) {
		t.Fatal("sleeping sensor acknowledged a read")
	}
}
