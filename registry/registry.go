// Package registry maps a hardware module to the single value that currently
// owns it. Lookup is lock-free so it can run inside an interrupt handler.
package registry

import (
	"sync/atomic"

	"twowire/errcode"
	"twowire/hal"
)

// Registry holds at most one owner per module id.
type Registry[T any] struct {
	slots [hal.MaxModules]atomic.Pointer[T]
}

// Register binds v to id. Registering the same owner twice is a no-op;
// a different owner gets errcode.ModuleInUse.
func (r *Registry[T]) Register(id hal.ModuleID, v *T) error {
	if !id.Valid() {
		return errcode.UnknownModule
	}
	if v == nil {
		return errcode.InvalidParams
	}
	if r.slots[id].CompareAndSwap(nil, v) {
		return nil
	}
	if r.slots[id].Load() == v {
		return nil
	}
	return errcode.ModuleInUse
}

// Unregister removes v wherever it is registered. It reports whether v was
// found.
func (r *Registry[T]) Unregister(v *T) bool {
	if v == nil {
		return false
	}
	for i := range r.slots {
		if r.slots[i].CompareAndSwap(v, nil) {
			return true
		}
	}
	return false
}

// Lookup returns the owner of id, or nil.
func (r *Registry[T]) Lookup(id hal.ModuleID) *T {
	if !id.Valid() {
		return nil
	}
	return r.slots[id].Load()
}
