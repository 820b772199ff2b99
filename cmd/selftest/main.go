//go:build rp2040 || rp2350

// Command selftest runs the bus self-test on an RP2 board and reports over
// UART0.
package main

import (
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"

	"twowire/config"
	"twowire/internal/selftest"
	"twowire/x/conv"
)

var console = uartx.UART0

func say(parts ...string) {
	for _, p := range parts {
		_, _ = console.Write([]byte(p))
	}
	_, _ = console.Write([]byte("\r\n"))
}

func itoa(n int) string {
	var buf [20]byte
	return string(conv.AppendUint(buf[:0], uint64(n)))
}

func main() {
	// Give the monitor time to attach.
	time.Sleep(2 * time.Second)

	if err := console.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       uartx.UART_TX_PIN,
		RX:       uartx.UART_RX_PIN,
	}); err != nil {
		println("uart configure failed")
		return
	}

	cfg, err := config.Load("pico")
	if err != nil {
		say("config: ", err.Error())
		return
	}

	say("twowire self-test")
	rs := selftest.Run(cfg)
	for _, r := range rs {
		if r.OK() {
			say("  PASS ", r.Name, " ", itoa(int(r.Elapsed/time.Microsecond)), "us")
		} else {
			say("  FAIL ", r.Name, ": ", r.Err.Error())
		}
	}
	say("passed ", itoa(selftest.Passed(rs)), "/", itoa(len(rs)))
	_ = console.Flush()

	for {
		time.Sleep(time.Second)
	}
}
