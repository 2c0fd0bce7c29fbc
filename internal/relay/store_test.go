package relay

import (
	"sync"
	"testing"
)

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore("red", "green")

	got := s.Snapshot()
	if got.Light1 != "red" || got.Light2 != "green" {
		t.Errorf("Snapshot() = %+v, want red/green", got)
	}
	if got.Frame() != "red,green" {
		t.Errorf("Frame() = %q, want %q", got.Frame(), "red,green")
	}
}

func TestStore_SetVerbatim(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "known color", value: "yellow"},
		{name: "unknown color", value: "purple"},
		{name: "empty", value: ""},
		{name: "embedded comma", value: "red,blink"},
		{name: "whitespace kept", value: "  green \n"},
		{name: "non-ascii", value: "grün"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore("red", "green")
			if !s.Set(Light1, tt.value) {
				t.Fatal("Set(light1) = false")
			}
			got := s.Snapshot()
			if got.Light1 != tt.value {
				t.Errorf("light1 = %q, want %q", got.Light1, tt.value)
			}
			if got.Light2 != "green" {
				t.Errorf("light2 changed to %q", got.Light2)
			}
		})
	}
}

func TestStore_SetUnknownSlot(t *testing.T) {
	s := NewStore("red", "green")

	if s.Set(Light("light3"), "blue") {
		t.Error("Set(light3) = true, want false")
	}
	if got := s.Snapshot(); got != (Snapshot{Light1: "red", Light2: "green"}) {
		t.Errorf("store mutated by unknown slot: %+v", got)
	}
}

func TestLight_Valid(t *testing.T) {
	for _, l := range []Light{Light1, Light2} {
		if !l.Valid() {
			t.Errorf("%q.Valid() = false", l)
		}
	}
	if Light("light0").Valid() {
		t.Error("light0 reported valid")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore("red", "green")
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Set(Light1, "yellow")
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	if got := s.Snapshot().Light1; got != "yellow" {
		t.Errorf("light1 = %q, want yellow", got)
	}
}
