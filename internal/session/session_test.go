// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"testing"
	"time"
)

func newTestRegistry() (*Registry, *time.Time) {
	r := NewRegistry()
	now := time.Unix(1700000000, 0)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestAcquireAndRelease(t *testing.T) {
	r, _ := newTestRegistry()

	s, err := r.Acquire("p1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s.Token == "" {
		t.Fatal("empty session token")
	}

	if _, err := r.Acquire("p1", time.Minute); err == nil {
		t.Fatal("second Acquire succeeded while session live")
	}

	r.Release(s)
	if _, err := r.Acquire("p1", time.Minute); err != nil {
		t.Fatalf("Acquire after Release: %v", err)
	}
}

func TestExpiredSessionIsReclaimed(t *testing.T) {
	r, now := newTestRegistry()

	if _, err := r.Acquire("p1", time.Minute); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	*now = now.Add(2 * time.Minute)
	if _, err := r.Acquire("p1", time.Minute); err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
}

func TestHeartbeatExtends(t *testing.T) {
	r, now := newTestRegistry()

	s, err := r.Acquire("p1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	*now = now.Add(50 * time.Second)
	s, err = r.Heartbeat(s, time.Minute)
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	// Past the original expiry but within the extension.
	*now = now.Add(30 * time.Second)
	if _, err := r.Acquire("p1", time.Minute); err == nil {
		t.Fatal("Acquire succeeded during extended session")
	}
	_ = s
}

func TestHeartbeatAfterExpiryFails(t *testing.T) {
	r, now := newTestRegistry()

	s, err := r.Acquire("p1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	*now = now.Add(2 * time.Minute)
	if _, err := r.Heartbeat(s, time.Minute); err != ErrNotHeld {
		t.Fatalf("Heartbeat after expiry = %v, want ErrNotHeld", err)
	}
}

func TestStaleReleaseDoesNotEvictNewHolder(t *testing.T) {
	r, now := newTestRegistry()

	stale, err := r.Acquire("p1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	*now = now.Add(2 * time.Minute)
	fresh, err := r.Acquire("p1", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}

	r.Release(stale)
	if _, err := r.Acquire("p1", time.Minute); err == nil {
		t.Fatal("stale Release evicted the new holder")
	}
	r.Release(fresh)
}

func TestProjectsIndependent(t *testing.T) {
	r, _ := newTestRegistry()

	if _, err := r.Acquire("p1", time.Minute); err != nil {
		t.Fatalf("p1: %v", err)
	}
	if _, err := r.Acquire("p2", time.Minute); err != nil {
		t.Fatalf("p2: %v", err)
	}
}
