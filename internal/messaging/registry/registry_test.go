package registry

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := New()

	r.Register("alice", "conn-1")
	r.Register("alice", "conn-2")
	r.Register("bob", "conn-3")

	if got := r.Lookup("alice"); !reflect.DeepEqual(got, []string{"conn-1", "conn-2"}) {
		t.Errorf("Lookup(alice) = %v", got)
	}
	if got := r.Online(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Errorf("Online() = %v", got)
	}
	if !r.IsOnline("alice") || r.IsOnline("carol") {
		t.Error("IsOnline gave wrong answers")
	}
}

func TestRegistry_UnregisterTracksRemainingConnections(t *testing.T) {
	r := New()
	r.Register("alice", "conn-1")
	r.Register("alice", "conn-2")

	userID, stillOnline := r.Unregister("conn-1")
	if userID != "alice" || !stillOnline {
		t.Errorf("Unregister(conn-1) = (%q, %v), want (alice, true)", userID, stillOnline)
	}

	userID, stillOnline = r.Unregister("conn-2")
	if userID != "alice" || stillOnline {
		t.Errorf("Unregister(conn-2) = (%q, %v), want (alice, false)", userID, stillOnline)
	}

	if r.IsOnline("alice") {
		t.Error("alice should be offline after both connections dropped")
	}

	if userID, _ := r.Unregister("conn-404"); userID != "" {
		t.Errorf("Unregister of unknown connection returned user %q", userID)
	}
}

func TestRegistry_ReRegisterMovesConnection(t *testing.T) {
	r := New()
	r.Register("alice", "conn-1")
	r.Register("bob", "conn-1")

	if r.IsOnline("alice") {
		t.Error("alice should be offline after her only connection moved")
	}
	if got := r.Lookup("bob"); !reflect.DeepEqual(got, []string{"conn-1"}) {
		t.Errorf("Lookup(bob) = %v", got)
	}
}

func TestRegistry_IgnoresEmptyIDs(t *testing.T) {
	r := New()
	r.Register("", "conn-1")
	r.Register("alice", "")

	if len(r.Online()) != 0 {
		t.Errorf("Online() = %v, want empty", r.Online())
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i%5)
			conn := fmt.Sprintf("conn-%d", i)
			r.Register(user, conn)
			r.Lookup(user)
			r.IsOnline(user)
			r.Online()
			if i%2 == 0 {
				r.Unregister(conn)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			continue
		}
		conn := fmt.Sprintf("conn-%d", i)
		user := fmt.Sprintf("user-%d", i%5)
		found := false
		for _, c := range r.Lookup(user) {
			if c == conn {
				found = true
			}
		}
		if !found {
			t.Errorf("connection %s missing for %s after concurrent churn", conn, user)
		}
	}
}
