package registry

import (
	"errors"
	"testing"

	"twowire/errcode"
	"twowire/hal"
)

type owner struct{ name string }

func TestRegisterAndLookup(t *testing.T) {
	var r Registry[owner]
	a := &owner{name: "a"}
	if err := r.Register(2, a); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if got := r.Lookup(2); got != a {
		t.Fatalf("Lookup(2) = %v, want a", got)
	}
	if r.Lookup(1) != nil {
		t.Fatal("Lookup(1) should be empty")
	}
}

func TestRegisterIsIdempotentForSameOwner(t *testing.T) {
	var r Registry[owner]
	a := &owner{name: "a"}
	if err := r.Register(0, a); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(0, a); err != nil {
		t.Fatalf("second Register by same owner: %v", err)
	}
}

func TestRegisterRejectsSecondOwner(t *testing.T) {
	var r Registry[owner]
	if err := r.Register(0, &owner{name: "a"}); err != nil {
		t.Fatal(err)
	}
	err := r.Register(0, &owner{name: "b"})
	if !errors.Is(err, errcode.ModuleInUse) {
		t.Fatalf("err = %v, want module_in_use", err)
	}
}

func TestUnregisterFreesSlot(t *testing.T) {
	var r Registry[owner]
	a, b := &owner{name: "a"}, &owner{name: "b"}
	_ = r.Register(3, a)
	if !r.Unregister(a) {
		t.Fatal("Unregister(a) = false")
	}
	if r.Lookup(3) != nil {
		t.Fatal("slot still owned after Unregister")
	}
	if r.Unregister(a) {
		t.Fatal("second Unregister(a) = true")
	}
	if err := r.Register(3, b); err != nil {
		t.Fatalf("Register after Unregister: %v", err)
	}
}

func TestUnknownModule(t *testing.T) {
	var r Registry[owner]
	if err := r.Register(hal.MaxModules, &owner{}); !errors.Is(err, errcode.UnknownModule) {
		t.Fatalf("err = %v, want unknown_module", err)
	}
	if r.Lookup(hal.MaxModules) != nil {
		t.Fatal("Lookup out of range returned owner")
	}
}
