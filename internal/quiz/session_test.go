package quiz

import (
	"testing"
	"time"
)

func TestArmRefusesRunningTimer(t *testing.T) {
	s := newLiveSession(DefaultCategory, 1, []int64{1, 2}, time.Now())
	now := time.Now()
	if err := s.Arm(1, now); err != nil {
		t.Fatalf("first arm: %v", err)
	}
	if err := s.Arm(1, now.Add(time.Minute)); err != ErrTimerRunning {
		t.Fatalf("got %v, want ErrTimerRunning", err)
	}
	if at, ok := s.ArmedAt(1); !ok || !at.Equal(now) {
		t.Fatalf("armed-at changed: %v %v", at, ok)
	}

	s.Disarm(1)
	if _, ok := s.ArmedAt(1); ok {
		t.Fatal("disarm should clear the timestamp")
	}
	// A fresh arm after disarm is a new question lifecycle, not a replay.
	if err := s.Arm(1, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("re-arm after disarm: %v", err)
	}
}

func TestNextAfter(t *testing.T) {
	s := newLiveSession(DefaultCategory, 1, []int64{5, 9, 2}, time.Now())
	if id, ok := s.NextAfter(5); !ok || id != 9 {
		t.Fatalf("after 5: got %d %v, want 9", id, ok)
	}
	if id, ok := s.NextAfter(9); !ok || id != 2 {
		t.Fatalf("after 9: got %d %v, want 2", id, ok)
	}
	if _, ok := s.NextAfter(2); ok {
		t.Fatal("last entry has no successor")
	}
	if _, ok := s.NextAfter(42); ok {
		t.Fatal("unknown id has no successor")
	}
}

func TestProgress(t *testing.T) {
	s := newLiveSession(DefaultCategory, 1, []int64{1, 2, 3}, time.Now())
	if cur, total := s.Progress(); cur != 1 || total != 3 {
		t.Fatalf("got %d/%d, want 1/3", cur, total)
	}
	s.Answered[1] = true
	if cur, total := s.Progress(); cur != 2 || total != 3 {
		t.Fatalf("got %d/%d, want 2/3", cur, total)
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	if _, ok := store.Get(1); ok {
		t.Fatal("empty store should miss")
	}
	s := newLiveSession(DefaultCategory, 1, []int64{1}, time.Now())
	store.Put(1, s)
	if got, ok := store.Get(1); !ok || got != s {
		t.Fatal("put/get mismatch")
	}
	store.Delete(1)
	if _, ok := store.Get(1); ok {
		t.Fatal("delete should evict")
	}
}
