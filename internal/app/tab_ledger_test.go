package app

import (
	"testing"
	"time"
)

func TestTabLedger(t *testing.T) {
	l := NewTabLedger()

	l.Created("1", t0, false)
	l.Created("2", t0, true)
	l.Activated("1", t0.Add(time.Second))
	l.Activated("3", t0)

	rec, ok := l.Lookup("1")
	if !ok || !rec.CreatedAt.Equal(t0) || !rec.LastActivatedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("Lookup(1) = %+v, %v", rec, ok)
	}

	rec, _ = l.Lookup("2")
	if !rec.LastActivatedAt.Equal(t0) {
		t.Errorf("tab created active: LastActivatedAt = %v, want %v", rec.LastActivatedAt, t0)
	}

	rec, ok = l.Lookup("3")
	if !ok {
		t.Fatal("expected record for activated tab")
	}
	if rec.HasCreation() {
		t.Error("HasCreation() = true for a tab whose creation was never seen")
	}

	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}

	l.Removed("1")
	if _, ok := l.Lookup("1"); ok {
		t.Error("expected record to be removed")
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestTabLedger_RecreatedKeepsLatestCreation(t *testing.T) {
	l := NewTabLedger()
	l.Activated("1", t0)
	l.Created("1", t0.Add(time.Second), false)

	rec, _ := l.Lookup("1")
	if !rec.CreatedAt.Equal(t0.Add(time.Second)) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, t0.Add(time.Second))
	}
	if !rec.LastActivatedAt.Equal(t0) {
		t.Errorf("LastActivatedAt = %v, want %v", rec.LastActivatedAt, t0)
	}
}
