package ingest

import (
	"strings"
	"testing"
)

func TestEntryID_Stable(t *testing.T) {
	a := EntryID("/notes/todo.txt")
	b := EntryID("/notes/todo.txt")
	if a != b {
		t.Errorf("same path gave different IDs: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "file:") {
		t.Errorf("id = %q, want file: prefix", a)
	}
}

func TestEntryID_NormalizesPath(t *testing.T) {
	if EntryID("/notes/todo.txt") != EntryID("/notes/./todo.txt") {
		t.Error("equivalent paths gave different IDs")
	}
	if EntryID("/notes/a.txt") == EntryID("/notes/b.txt") {
		t.Error("distinct paths gave the same ID")
	}
}
