package session

import "testing"

func TestRegistry_SetActiveOverwrites(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Active(); ok {
		t.Fatalf("expected empty registry")
	}
	r.SetActive(Session{CallSID: "CA1", StreamSID: "MZ1"})
	r.SetActive(Session{CallSID: "CA2", StreamSID: "MZ2"})
	got, ok := r.Active()
	if !ok {
		t.Fatalf("expected active session")
	}
	if got.CallSID != "CA2" || got.StreamSID != "MZ2" {
		t.Fatalf("expected most recent session, got %+v", got)
	}
}

func TestRegistry_ClearIfMatchesOnly(t *testing.T) {
	r := NewRegistry()
	r.SetActive(Session{CallSID: "CA2"})

	if r.ClearIf("CA1") {
		t.Fatalf("stale clear must be a no-op")
	}
	if _, ok := r.Active(); !ok {
		t.Fatalf("session must survive mismatched clear")
	}

	if !r.ClearIf("CA2") {
		t.Fatalf("expected matching clear to succeed")
	}
	if _, ok := r.Active(); ok {
		t.Fatalf("expected empty registry after clear")
	}

	if r.ClearIf("CA2") {
		t.Fatalf("clear on empty registry must be a no-op")
	}
}
