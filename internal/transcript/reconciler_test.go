package transcript

import (
	"testing"
)

func TestAppendDelta_CoalescesFragments(t *testing.T) {
	log := NewLog()

	log.AppendDelta(RoleModel, "Hello")
	log.AppendDelta(RoleModel, ", ")
	log.AppendDelta(RoleModel, "world")

	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].Text != "Hello, world" {
		t.Errorf("Expected text 'Hello, world', got '%s'", entries[0].Text)
	}
	if entries[0].Final {
		t.Error("Expected entry to remain open")
	}
	if entries[0].ID == "" {
		t.Error("Expected entry to carry an id")
	}
}

func TestAppendDelta_EmptyFragmentNoOpenEntry(t *testing.T) {
	log := NewLog()

	log.AppendDelta(RoleUser, "")
	log.AppendDelta(RoleUser, "   ")
	if log.Len() != 0 {
		t.Errorf("Expected no entries from empty fragments, got %d", log.Len())
	}

	// But an empty fragment appended to an open entry is kept verbatim.
	log.AppendDelta(RoleUser, "Hi")
	log.AppendDelta(RoleUser, "")
	entries := log.Entries()
	if len(entries) != 1 || entries[0].Text != "Hi" {
		t.Errorf("Expected single entry 'Hi', got %v", entries)
	}
}

func TestAppendDelta_OneOpenEntryPerRole(t *testing.T) {
	log := NewLog()

	log.AppendDelta(RoleUser, "uno")
	log.AppendDelta(RoleModel, "one")
	log.AppendDelta(RoleUser, " dos")
	log.AppendDelta(RoleModel, " two")

	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != RoleUser || entries[0].Text != "uno dos" {
		t.Errorf("Unexpected user entry: %+v", entries[0])
	}
	if entries[1].Role != RoleModel || entries[1].Text != "one two" {
		t.Errorf("Unexpected model entry: %+v", entries[1])
	}
}

func TestSealTurn_NewEntryAfterSeal(t *testing.T) {
	log := NewLog()

	log.AppendDelta(RoleModel, "first")
	sealed := log.SealTurn()
	if len(sealed) != 1 || sealed[0] != RoleModel {
		t.Errorf("Expected [MODEL] sealed, got %v", sealed)
	}

	log.AppendDelta(RoleModel, "second")
	entries := log.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if !entries[0].Final {
		t.Error("Expected first entry to be final")
	}
	if entries[0].Text != "first" {
		t.Errorf("Sealed entry was mutated: '%s'", entries[0].Text)
	}
	if entries[1].Final || entries[1].Text != "second" {
		t.Errorf("Unexpected second entry: %+v", entries[1])
	}
}

func TestSealTurn_Idempotent(t *testing.T) {
	log := NewLog()

	if sealed := log.SealTurn(); len(sealed) != 0 {
		t.Errorf("Expected nothing sealed on empty log, got %v", sealed)
	}
	log.AppendDelta(RoleUser, "hey")
	log.SealTurn()
	if sealed := log.SealTurn(); len(sealed) != 0 {
		t.Errorf("Expected nothing sealed on second call, got %v", sealed)
	}
	if log.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", log.Len())
	}
}

func TestSealOnInterrupt_ModelOnly(t *testing.T) {
	log := NewLog()

	log.AppendDelta(RoleModel, "Hola, ¿cómo")
	log.AppendDelta(RoleUser, "wait")

	if !log.SealOnInterrupt(" [Interrupted]") {
		t.Fatal("Expected interrupt to seal the open model entry")
	}

	entries := log.Entries()
	var model, user *Entry
	for i := range entries {
		switch entries[i].Role {
		case RoleModel:
			model = &entries[i]
		case RoleUser:
			user = &entries[i]
		}
	}
	if model == nil || user == nil {
		t.Fatalf("Expected entries for both roles, got %v", entries)
	}
	if model.Text != "Hola, ¿cómo [Interrupted]" {
		t.Errorf("Expected 'Hola, ¿cómo [Interrupted]', got '%s'", model.Text)
	}
	if !model.Final {
		t.Error("Expected model entry to be final")
	}
	// The user entry stays open: the asymmetry is deliberate.
	if user.Final {
		t.Error("Expected user entry to remain open after interrupt")
	}
}

func TestSealOnInterrupt_NoOpenModelEntry(t *testing.T) {
	log := NewLog()

	if log.SealOnInterrupt(" [Interrupted]") {
		t.Error("Expected no-op on empty log")
	}
	log.AppendDelta(RoleUser, "just me")
	if log.SealOnInterrupt(" [Interrupted]") {
		t.Error("Expected no-op when only a user entry is open")
	}
	if entries := log.Entries(); entries[0].Final {
		t.Error("User entry must not be sealed by an interrupt")
	}
}

func TestEntries_SnapshotIsolation(t *testing.T) {
	log := NewLog()
	log.AppendDelta(RoleUser, "a")

	snapshot := log.Entries()
	snapshot[0].Text = "tampered"

	if log.Entries()[0].Text != "a" {
		t.Error("Mutating a snapshot must not affect the log")
	}
}
