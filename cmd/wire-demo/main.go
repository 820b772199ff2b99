// Command wire-demo drives the bus engine over a simulated bus on the host.
// It runs the self-test, then an optional command script against a master
// with a register-file device at 0x50 and a loopback slave at the
// configured slave address.
package main

import (
	"flag"
	"log/slog"
	"os"
	"strings"

	"twowire/config"
	"twowire/hal/sim"
	"twowire/internal/console"
	"twowire/internal/selftest"
	"twowire/wire"
	"twowire/x/logx"
)

func main() {
	board := flag.String("board", "host", "embedded board layout")
	script := flag.String("e", "", "commands to run, separated by ';'")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		logx.SetLevel(slog.LevelDebug)
	} else {
		logx.SetLevel(slog.LevelInfo)
	}
	log := logx.For(logx.ComponentSelftest)

	cfg, err := config.Load(*board)
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(2)
	}

	rs := selftest.Run(cfg)
	log.Info("selftest", "passed", selftest.Passed(rs), "total", len(rs))
	if selftest.Passed(rs) != len(rs) {
		os.Exit(1)
	}

	cmds := *script
	if cmds == "" && flag.NArg() > 0 {
		cmds = strings.Join(flag.Args(), " ")
	}
	if cmds == "" {
		return
	}
	if err := runScript(cfg, cmds); err != nil {
		log.Error("script", "err", err)
		os.Exit(1)
	}
}

func runScript(cfg config.Config, cmds string) error {
	b := sim.NewBus()
	defer b.Close()

	mem := &sim.Memory{}
	mem.Load(0x00, []byte("twowire"))
	b.Attach(0x50, mem)

	var mb config.Bus
	for _, bc := range cfg.Buses {
		if !bc.IsSlave() {
			mb = bc
			break
		}
	}
	m, err := wire.New(mb.ID(), b.Module(mb.ID(), wire.HandleInterrupt), wire.WithConfig(mb))
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Begin(); err != nil {
		return err
	}

	for _, sb := range cfg.Buses {
		if !sb.IsSlave() {
			continue
		}
		s, err := wire.New(sb.ID(), b.Module(sb.ID(), wire.HandleInterrupt), wire.WithConfig(sb))
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Begin(); err != nil {
			return err
		}
		// Echo: answer each read with the last message received.
		var last [32]byte
		var n int
		s.OnReceive(func(k int) { n, _ = s.Read(last[:k]) })
		s.OnRequest(func() { _, _ = s.Write(last[:n]) })
	}

	out, err := console.New(m).Script(cmds)
	for _, line := range out {
		os.Stdout.WriteString(line + "\n")
	}
	return err
}
