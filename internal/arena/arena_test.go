package arena

import "testing"

func TestArena_InsertGet(t *testing.T) {
	var a Arena[string]
	h := a.Insert("a")
	if h.IsNull() {
		t.Fatal("Insert() returned null handle")
	}
	got, ok := a.Get(h)
	if !ok || got != "a" {
		t.Errorf("Get() = %q, %v, want %q, true", got, ok, "a")
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}
}

func TestArena_RemoveInvalidatesHandle(t *testing.T) {
	var a Arena[int]
	h := a.Insert(7)
	if _, ok := a.Remove(h); !ok {
		t.Fatal("Remove() = false, want true")
	}
	if _, ok := a.Get(h); ok {
		t.Error("Get() after Remove() resolved a stale handle")
	}
	if _, ok := a.Remove(h); ok {
		t.Error("second Remove() = true, want false")
	}

	// The slot is reused with a new generation.
	h2 := a.Insert(9)
	if h2.Index() != h.Index() {
		t.Errorf("reused index = %d, want %d", h2.Index(), h.Index())
	}
	if h2.Generation() == h.Generation() {
		t.Error("reused slot kept the old generation")
	}
	if _, ok := a.Get(h); ok {
		t.Error("stale handle resolved after slot reuse")
	}
	if v, _ := a.Get(h2); v != 9 {
		t.Errorf("Get(h2) = %d, want 9", v)
	}
}

func TestArena_NullAndOutOfRange(t *testing.T) {
	var a Arena[int]
	tests := []struct {
		name string
		h    Handle
	}{
		{"null", 0},
		{"out of range", makeHandle(42, 1)},
		{"wrong generation", makeHandle(0, 5)},
	}
	a.Insert(1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if a.Contains(tt.h) {
				t.Errorf("Contains(%#x) = true, want false", uint64(tt.h))
			}
			if _, ok := a.Remove(tt.h); ok {
				t.Errorf("Remove(%#x) = true, want false", uint64(tt.h))
			}
		})
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}
}

func TestArena_EachAndHandles(t *testing.T) {
	var a Arena[int]
	h1 := a.Insert(1)
	h2 := a.Insert(2)
	h3 := a.Insert(3)
	a.Remove(h2)

	sum := 0
	a.Each(func(_ Handle, v int) { sum += v })
	if sum != 4 {
		t.Errorf("Each() sum = %d, want 4", sum)
	}
	hs := a.Handles()
	if len(hs) != 2 || hs[0] != h1 || hs[1] != h3 {
		t.Errorf("Handles() = %v, want [%v %v]", hs, h1, h3)
	}
}
