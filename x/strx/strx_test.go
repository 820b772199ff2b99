package strx

import "testing"

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "host", "pico"); got != "host" {
		t.Fatalf("Coalesce = %q", got)
	}
	if got := Coalesce(); got != "" {
		t.Fatalf("Coalesce() = %q", got)
	}
}
