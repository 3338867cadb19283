package room

import (
	"sync"
	"testing"
	"time"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	reg := NewRegistry()

	a := reg.GetOrCreate("movie-night")
	b := reg.GetOrCreate("movie-night")
	if a != b {
		t.Fatal("GetOrCreate returned different instances for the same id")
	}
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
}

func TestGetOrCreateConcurrentFirstAccess(t *testing.T) {
	reg := NewRegistry()

	const n = 100
	rooms := make([]*Room, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = reg.GetOrCreate("contended")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if rooms[i] != rooms[0] {
			t.Fatal("concurrent first access produced more than one Room instance")
		}
	}
	if reg.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reg.Len())
	}
}

func TestGetDoesNotCreate(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.Get("nothing"); ok {
		t.Fatal("Get reported a room that was never created")
	}
	reg.GetOrCreate("something")
	if _, ok := reg.Get("something"); !ok {
		t.Fatal("Get missed an existing room")
	}
}

func TestReapEvictsIdleEmptyRooms(t *testing.T) {
	reg := NewRegistry()

	idle := reg.GetOrCreate("idle")
	idle.mu.Lock()
	idle.emptySince = time.Now().Add(-time.Hour)
	idle.mu.Unlock()

	fresh := reg.GetOrCreate("fresh") // empty, but not past the TTL yet

	occupied := reg.GetOrCreate("occupied")
	occupied.register(&Client{ID: "c1", ConnID: "conn1", Name: "Ana", send: make(chan []byte, 1)})
	occupied.mu.Lock()
	occupied.emptySince = time.Now().Add(-time.Hour) // stale timestamp must not matter while occupied
	occupied.mu.Unlock()

	if n := reg.reap(10*time.Minute, time.Now()); n != 1 {
		t.Fatalf("reap evicted %d rooms, want 1", n)
	}
	if _, ok := reg.Get("idle"); ok {
		t.Fatal("idle room survived the reaper")
	}
	if _, ok := reg.Get("fresh"); !ok {
		t.Fatal("fresh empty room was reaped before its TTL")
	}
	if _, ok := reg.Get("occupied"); !ok {
		t.Fatal("occupied room was reaped")
	}
	_ = fresh
}

func TestReapedRoomRecreatesFresh(t *testing.T) {
	reg := NewRegistry()

	old := reg.GetOrCreate("r")
	old.SetSource("/media/r/a.mp4", "a.mp4")
	old.mu.Lock()
	old.emptySince = time.Now().Add(-time.Hour)
	old.mu.Unlock()

	reg.reap(time.Minute, time.Now())

	fresh := reg.GetOrCreate("r")
	if fresh == old {
		t.Fatal("registry handed back the evicted room instance")
	}
	if _, _, ok := fresh.Source(); ok {
		t.Fatal("recreated room inherited the old source")
	}
}
