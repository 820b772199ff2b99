package selftest

import (
	"sync"

	"tinygo.org/x/drivers/shtc3"
)

// sensor models an SHTC3 humidity sensor behind a simulated bus. It answers
// a measurement command with two CRC-protected words.
type sensor struct {
	mu       sync.Mutex
	asleep   bool
	cmd      [2]byte
	ncmd     int
	reply    [6]byte
	idx      int
	measured bool

	rawT, rawH uint16
}

// newSensor returns a sensor reading milliC and rhx100 (hundredths of %RH).
func newSensor(milliC int32, rhx100 int32) *sensor {
	s := &sensor{asleep: true}
	// Inverse of the conversion in the shtc3 driver, rounded up so the
	// driver's truncation lands on the requested value.
	s.rawT = uint16((((int64(milliC) + 45000) << 13) + 21874) / 21875)
	s.rawH = uint16(((int64(rhx100) << 13) + 1249) / 1250)
	return s
}

func (s *sensor) Begin(read bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if read {
		s.idx = 0
		return !s.asleep && s.measured
	}
	s.ncmd = 0
	return true
}

func (s *sensor) Write(b byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ncmd >= len(s.cmd) {
		return false
	}
	s.cmd[s.ncmd] = b
	s.ncmd++
	return true
}

func (s *sensor) Read() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.reply) {
		return 0xFF
	}
	v := s.reply[s.idx]
	s.idx++
	return v
}

func (s *sensor) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ncmd != 2 {
		return
	}
	s.ncmd = 0
	switch string(s.cmd[:]) {
	case shtc3.SHTC3_CMD_WAKEUP:
		s.asleep = false
	case shtc3.SHTC3_CMD_SLEEP:
		s.asleep = true
		s.measured = false
	case shtc3.SHTC3_CMD_MEASURE_HP:
		if s.asleep {
			return
		}
		putWord(s.reply[0:3], s.rawT)
		putWord(s.reply[3:6], s.rawH)
		s.measured = true
	}
}

func putWord(dst []byte, v uint16) {
	dst[0] = byte(v >> 8)
	dst[1] = byte(v)
	dst[2] = crc8(dst[:2])
}

// crc8 is the Sensirion checksum: polynomial 0x31, init 0xFF.
func crc8(p []byte) byte {
	crc := byte(0xFF)
	for _, b := range p {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
