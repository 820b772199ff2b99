package xfer

import (
	"testing"

	"twowire/hal"
)

func TestAppendIsBoundedByCapacity(t *testing.T) {
	var b Buffer
	for i := 0; i < Capacity; i++ {
		if !b.Append(byte(i)) {
			t.Fatalf("Append %d failed", i)
		}
	}
	if b.Append(0xFF) {
		t.Fatal("Append past capacity succeeded")
	}
	if b.Len() != Capacity {
		t.Fatalf("Len = %d, want %d", b.Len(), Capacity)
	}
}

func TestDrainFollowsInsertionOrder(t *testing.T) {
	var b Buffer
	for _, v := range []byte{0xA0, 0xA1, 0xA2} {
		b.Append(v)
	}
	var got []byte
	for {
		v, ok := b.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	if len(got) != 3 || got[0] != 0xA0 || got[2] != 0xA2 {
		t.Fatalf("drained %x", got)
	}
	if b.Pending() != 0 {
		t.Fatal("expected drained buffer")
	}
}

func TestExpectTracksRemaining(t *testing.T) {
	var b Buffer
	b.Append(1)
	b.Expect(3)
	if b.Len() != 0 || b.Want() != 3 || b.Remaining() != 3 {
		t.Fatalf("after Expect: len=%d want=%d rem=%d", b.Len(), b.Want(), b.Remaining())
	}
	b.Append(1)
	b.Append(2)
	if b.Complete() {
		t.Fatal("complete too early")
	}
	b.Append(3)
	if !b.Complete() || b.Remaining() != 0 {
		t.Fatal("expected complete transfer")
	}
	b.Reset()
	if b.Complete() || b.Remaining() != 0 {
		t.Fatal("open-ended buffer reported a size")
	}
}

func TestArenaIsStablePerModule(t *testing.T) {
	a := For(1)
	if a == nil || a != For(1) {
		t.Fatal("For(1) not stable")
	}
	if For(0) == a {
		t.Fatal("modules share buffers")
	}
	if For(hal.MaxModules) != nil {
		t.Fatal("out-of-range module returned buffers")
	}
}
