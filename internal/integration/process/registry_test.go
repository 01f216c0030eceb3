package process

import (
	"errors"
	"os"
	"sync"
	"testing"
)

// fakeHandle builds a handle around a PID without spawning anything.
func fakeHandle(pid int) *Handle {
	return NewHandle(Spec{Program: "fake"}, &os.Process{Pid: pid})
}

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry()
	h := fakeHandle(1001)

	if err := r.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := r.Lookup(1001)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != h {
		t.Error("lookup returned wrong handle")
	}
	if r.Count() != 1 {
		t.Errorf("expected 1 entry, got %d", r.Count())
	}
}

func TestRegistry_LookupNotFound(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_Deregister(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(fakeHandle(7))

	r.Deregister(7)
	if _, err := r.Lookup(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after deregister, got %v", err)
	}

	// Deregistering an unknown PID is a no-op.
	r.Deregister(7)
}

func TestRegistry_DuplicateLivePID(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(fakeHandle(5))

	err := r.Register(fakeHandle(5))
	if !errors.Is(err, ErrDuplicatePID) {
		t.Errorf("expected ErrDuplicatePID, got %v", err)
	}
}

func TestRegistry_ReplaceReapedPID(t *testing.T) {
	r := NewRegistry()
	old := fakeHandle(5)
	_ = r.Register(old)
	old.MarkExited(false)

	recycled := fakeHandle(5)
	if err := r.Register(recycled); err != nil {
		t.Fatalf("register over reaped entry: %v", err)
	}

	// The stale handle must not remove the new entry.
	if r.Remove(old) {
		t.Error("Remove of stale handle should fail")
	}
	got, err := r.Lookup(5)
	if err != nil || got != recycled {
		t.Errorf("expected recycled handle to remain registered, got %v, %v", got, err)
	}

	if !r.Remove(recycled) {
		t.Error("Remove of current handle should succeed")
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); err == nil {
		t.Error("expected error for nil handle")
	}
	if err := r.Register(NewHandle(Spec{}, nil)); !errors.Is(err, ErrProcessNotStarted) {
		t.Errorf("expected ErrProcessNotStarted, got %v", err)
	}
	if r.Remove(nil) {
		t.Error("Remove(nil) should return false")
	}
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	for _, pid := range []int{30, 10, 20} {
		_ = r.Register(fakeHandle(pid))
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 handles, got %d", len(list))
	}
	for i, want := range []int{10, 20, 30} {
		if list[i].PID() != want {
			t.Errorf("list[%d] = %d, want %d", i, list[i].PID(), want)
		}
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			h := fakeHandle(pid)
			if err := r.Register(h); err != nil {
				t.Errorf("register %d: %v", pid, err)
				return
			}
			if _, err := r.Lookup(pid); err != nil {
				t.Errorf("lookup %d: %v", pid, err)
			}
			_ = r.List()
			r.Remove(h)
		}(i + 100)
	}
	wg.Wait()

	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
}
