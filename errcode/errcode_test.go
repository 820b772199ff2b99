package errcode

import (
	"errors"
	"testing"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"address_nak":     AddressNAK,
		"buffer_overflow": BufferOverflow,
		"role_mismatch":   RoleMismatch,
		"timeout":         Timeout,
		"busy":            Busy,
		"module_in_use":   ModuleInUse,
		"unknown_module":  UnknownModule,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestWrapMatchesCode(t *testing.T) {
	err := Wrap("request_from", Timeout)
	if !errors.Is(err, Timeout) {
		t.Fatalf("errors.Is(%v, Timeout) = false", err)
	}
	if errors.Is(err, AddressNAK) {
		t.Fatalf("errors.Is(%v, AddressNAK) = true", err)
	}
	if got := Of(err); got != Timeout {
		t.Fatalf("Of = %q, want %q", got, Timeout)
	}
	if got := err.Error(); got != "request_from: timeout" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestOfDefaults(t *testing.T) {
	if Of(nil) != OK {
		t.Fatal("nil should map to OK")
	}
	if Of(BufferOverflow) != BufferOverflow {
		t.Fatal("bare code should map to itself")
	}
	if Of(errors.New("boom")) != Error {
		t.Fatal("foreign error should map to Error")
	}
}
