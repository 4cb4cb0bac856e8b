package store

import (
	"testing"

	"github.com/chordring/chord"
)

func idp(v chord.ID) *chord.ID { return &v }

func TestMemoryInsertAndSelectByKey(t *testing.T) {
	s := NewMemory()
	s.Insert([]chord.Record{{Key: "foo", Value: "bar", KeyHash: 150}})

	r, ok := s.SelectByKey("foo")
	if !ok || r.Value != "bar" {
		t.Fatalf("expected to find foo=bar, got %+v ok=%v", r, ok)
	}
	if _, ok := s.SelectByKey("missing"); ok {
		t.Fatalf("expected missing key to miss")
	}
}

func TestMemorySelectByArcNormalRange(t *testing.T) {
	s := NewMemory()
	s.Insert([]chord.Record{
		{Key: "a", KeyHash: 5},
		{Key: "b", KeyHash: 10},
		{Key: "c", KeyHash: 15},
		{Key: "d", KeyHash: 20},
	})

	got := s.SelectByArc(idp(5), idp(15))
	if len(got) != 2 || got[0].KeyHash != 10 || got[1].KeyHash != 15 {
		t.Fatalf("expected (5,15] = {10,15}, got %+v", got)
	}
}

func TestMemorySelectByArcWrapAround(t *testing.T) {
	s := NewMemory()
	s.Insert([]chord.Record{
		{Key: "a", KeyHash: 250},
		{Key: "b", KeyHash: 2},
		{Key: "c", KeyHash: 100},
	})

	// start(250) > end(10): keyhash > 250 OR keyhash <= 10
	got := s.SelectByArc(idp(250), idp(10))
	if len(got) != 1 || got[0].Key != "b" {
		t.Fatalf("expected only b in wrapping arc, got %+v", got)
	}
}

func TestMemorySelectByArcNilBoundsSelectsAll(t *testing.T) {
	s := NewMemory()
	s.Insert([]chord.Record{{Key: "a", KeyHash: 5}, {Key: "b", KeyHash: 200}})
	got := s.SelectByArc(nil, nil)
	if len(got) != 2 {
		t.Fatalf("expected all records, got %+v", got)
	}
}

func TestMemoryDeleteByArcRemoves(t *testing.T) {
	s := NewMemory()
	s.Insert([]chord.Record{{Key: "a", KeyHash: 5}, {Key: "b", KeyHash: 10}})
	deleted := s.DeleteByArc(idp(0), idp(7))
	if len(deleted) != 1 || deleted[0].Key != "a" {
		t.Fatalf("expected to delete a, got %+v", deleted)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record remaining, got %d", s.Len())
	}
}

func TestMemoryDeleteAll(t *testing.T) {
	s := NewMemory()
	s.Insert([]chord.Record{{Key: "a", KeyHash: 5}, {Key: "b", KeyHash: 10}})
	s.DeleteAll()
	if s.Len() != 0 {
		t.Fatalf("expected empty store after DeleteAll, got %d", s.Len())
	}
}
