package rpc

import "testing"

func TestPendingTableResolvesExactlyOnce(t *testing.T) {
	table := newPendingTable()
	waiter := table.register("corr-1")
	if waiter == nil {
		t.Fatal("expected a waiter channel")
	}
	if table.size() != 1 {
		t.Fatalf("expected one pending entry, got %d", table.size())
	}

	got, ok := table.take("corr-1")
	if !ok {
		t.Fatal("expected to claim the waiter")
	}
	if got != waiter {
		t.Fatal("expected the registered waiter channel")
	}

	// A second reply for the same correlation id finds nothing.
	if _, ok := table.take("corr-1"); ok {
		t.Fatal("expected duplicate take to miss")
	}
	if table.size() != 0 {
		t.Fatalf("expected empty table, got %d entries", table.size())
	}
}

func TestPendingTableRemoveIsIdempotent(t *testing.T) {
	table := newPendingTable()
	table.register("corr-1")
	table.remove("corr-1")
	table.remove("corr-1")
	if table.size() != 0 {
		t.Fatalf("expected empty table, got %d entries", table.size())
	}
}

func TestPendingTablePanicsOnCollision(t *testing.T) {
	table := newPendingTable()
	table.register("corr-1")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on correlation id collision")
		}
	}()
	table.register("corr-1")
}
