package config

// Board layouts compiled into the image. Key: board name.

const cfgHost = `{
  "board": "host",
  "buses": [
    {"module": 0, "role": "master", "data_rate": 400000, "timeout_ms": 100},
    {"module": 1, "role": "slave", "address": 33}
  ]
}`

const cfgPico = `{
  "board": "pico",
  "buses": [
    {"module": 0, "role": "master", "clock_hz": 125000000, "data_rate": 100000},
    {"module": 1, "role": "slave", "address": 33, "timeout_ms": 250}
  ]
}`

var embeddedConfigs = map[string][]byte{
	"host": []byte(cfgHost),
	"pico": []byte(cfgPico),
}
