package id

import "testing"

func TestGenerate(t *testing.T) {
	id := Generate()

	if !Valid(id) {
		t.Errorf("expected a valid ID, got %s", id)
	}

	id2 := Generate()
	if id == id2 {
		t.Error("expected different IDs for consecutive calls")
	}
}

func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := Generate()
		if seen[id] {
			t.Errorf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestValid(t *testing.T) {
	if Valid("") {
		t.Error("empty string should not be valid")
	}
	if Valid("content/../x") {
		t.Error("path-like string should not be valid")
	}
}
