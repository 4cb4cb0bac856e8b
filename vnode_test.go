package chord

import "testing"

func TestSuccessorListInitialSelfLoop(t *testing.T) {
	sl := NewSuccessorList("a", 4)
	if sl.GetFirst() != "a" {
		t.Fatalf("expected self-loop, got %q", sl.GetFirst())
	}
	for i := 1; i < sl.Len(); i++ {
		if sl.Get(i) != "" {
			t.Fatalf("expected entry %d to be empty", i)
		}
	}
}

func TestSuccessorListRemoveShiftsLeft(t *testing.T) {
	sl := NewSuccessorList("a", 4)
	sl.Set(1, "b")
	sl.Set(2, "c")
	sl.Remove("b")
	if sl.Get(1) != "c" {
		t.Fatalf("expected c to shift into slot 1, got %q", sl.Get(1))
	}
	if sl.Get(2) != "" {
		t.Fatalf("expected tail slot to be padded empty, got %q", sl.Get(2))
	}
}

func TestSuccessorListRemoveMissingIsNoOp(t *testing.T) {
	sl := NewSuccessorList("a", 4)
	sl.Set(1, "b")
	sl.Remove("does-not-exist")
	if sl.Get(1) != "b" {
		t.Fatalf("expected list unchanged, got %q", sl.Get(1))
	}
}

func TestSuccessorListPromoteFirstNonEmpty(t *testing.T) {
	sl := NewSuccessorList("a", 4)
	sl.InsertFirst("")
	sl.Set(1, "")
	sl.Set(2, "c")
	sl.PromoteFirstNonEmpty()
	if sl.GetFirst() != "c" {
		t.Fatalf("expected c promoted to front, got %q", sl.GetFirst())
	}
}

func TestSuccessorListMergeFromDedupesAndTruncates(t *testing.T) {
	sl := NewSuccessorList("a", 3)
	sl.Set(1, "b")
	sl.MergeFrom("a", []string{"b", "c", "d"})
	if sl.All()[0] != "a" || sl.All()[1] != "b" || sl.All()[2] != "c" {
		t.Fatalf("unexpected merge result: %v", sl.All())
	}
}

func TestFingerTableStartsImmutable(t *testing.T) {
	cfg := &Config{HashBits: 4}
	ft := NewFingerTable(2, cfg)
	if ft.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d", ft.Len())
	}
	wantStarts := []ID{3, 4, 6, 10}
	for i, want := range wantStarts {
		if got := ft.At(i).Start; got != want {
			t.Fatalf("entry %d: expected start %d, got %d", i, want, got)
		}
	}
	ft.UpdateEntry(3, "node-x")
	ft.Clear()
	for i, want := range wantStarts {
		if got := ft.At(i).Start; got != want {
			t.Fatalf("entry %d: start changed to %d after update and clear, want %d", i, got, want)
		}
	}
}

func TestFingerTableUpdateEntryReportsChange(t *testing.T) {
	cfg := &Config{HashBits: 4}
	ft := NewFingerTable(2, cfg)
	start := ft.At(0).Start
	if !ft.UpdateEntry(start, "node-x") {
		t.Fatalf("expected first update to report a change")
	}
	if ft.UpdateEntry(start, "node-x") {
		t.Fatalf("expected repeated identical update to report no change")
	}
}

func TestFingerTableGetNextEntry(t *testing.T) {
	cfg := &Config{HashBits: 4}
	ft := NewFingerTable(2, cfg)
	next, ok := ft.GetNextEntry(ft.At(0).Start)
	if !ok || next.Start != ft.At(1).Start {
		t.Fatalf("expected entry 1 to follow entry 0")
	}
	_, ok = ft.GetNextEntry(ft.At(ft.Len() - 1).Start)
	if ok {
		t.Fatalf("expected no successor past the last finger")
	}
}
