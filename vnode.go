package chord

// SuccessorList is the R-sized, None-padded ordered list of a node's next
// successors on the ring, per spec §4.3. Index 0 is the immediate successor;
// the rest exist purely for failover when earlier entries die.
type SuccessorList struct {
	entries []string // "" means "no entry"
}

// NewSuccessorList allocates a successor list of the configured length,
// initialized to [self, "", ..., ""] per spec §3.
func NewSuccessorList(self string, size int) *SuccessorList {
	sl := &SuccessorList{entries: make([]string, size)}
	sl.entries[0] = self
	return sl
}

// Len returns R, the configured successor-list length.
func (sl *SuccessorList) Len() int {
	return len(sl.entries)
}

// Get returns the entry at index i, or "" if empty or out of range.
func (sl *SuccessorList) Get(i int) string {
	if i < 0 || i >= len(sl.entries) {
		return ""
	}
	return sl.entries[i]
}

// GetFirst returns successor_list[0], the immediate successor.
func (sl *SuccessorList) GetFirst() string {
	return sl.entries[0]
}

// Set overwrites the entry at index i. Out-of-range indexes are ignored.
func (sl *SuccessorList) Set(i int, v string) {
	if i < 0 || i >= len(sl.entries) {
		return
	}
	sl.entries[i] = v
}

// InsertFirst replaces successor_list[0].
func (sl *SuccessorList) InsertFirst(x string) {
	sl.entries[0] = x
}

// All returns the non-empty entries, in order.
func (sl *SuccessorList) All() []string {
	out := make([]string, 0, len(sl.entries))
	for _, e := range sl.entries {
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// Remove locates id in the list, left-shifts the tail over it, and pads the
// freed slot at the end with "". A missing id is a no-op, per spec §4.3.
func (sl *SuccessorList) Remove(id string) {
	for i, e := range sl.entries {
		if e == id {
			copy(sl.entries[i:], sl.entries[i+1:])
			sl.entries[len(sl.entries)-1] = ""
			return
		}
	}
}

// PromoteFirstNonEmpty shifts the first non-empty entry into position 0,
// used by stabilization when successor_list[0] itself has died.
func (sl *SuccessorList) PromoteFirstNonEmpty() {
	if sl.entries[0] != "" {
		return
	}
	for i, e := range sl.entries {
		if e != "" {
			copy(sl.entries, sl.entries[i:])
			for j := len(sl.entries) - i; j < len(sl.entries); j++ {
				sl.entries[j] = ""
			}
			return
		}
	}
}

// Clear resets every entry to "".
func (sl *SuccessorList) Clear() {
	for i := range sl.entries {
		sl.entries[i] = ""
	}
}

// MergeFrom unions candidates (assumed already verified live) into the list
// starting at index 1, truncated to the configured length — the stabilization
// step that folds the successor's own list into ours.
func (sl *SuccessorList) MergeFrom(self string, candidates []string) {
	seen := map[string]bool{self: true}
	for _, e := range sl.entries {
		if e != "" {
			seen[e] = true
		}
	}
	merged := make([]string, 0, len(sl.entries))
	for _, e := range sl.entries {
		if e != "" {
			merged = append(merged, e)
		}
	}
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		merged = append(merged, c)
	}
	for i := range sl.entries {
		if i < len(merged) {
			sl.entries[i] = merged[i]
		} else {
			sl.entries[i] = ""
		}
	}
}

// FingerEntry is a single row of the finger table: an immutable start and a
// mutable, possibly-unknown owner.
type FingerEntry struct {
	Start ID
	Owner string // "" means unknown
}

// FingerTable is the m-sized table of (start_i, owner_i) pairs described in
// spec §4.4. start_i = (hash(id) + 2^i) mod 2^m and never changes after
// construction; owner_i is a routing hint that may go stale.
type FingerTable struct {
	entries []FingerEntry
}

// NewFingerTable builds the table for a node whose hashed id is self,
// against the ring's configuration.
func NewFingerTable(self ID, cfg *Config) *FingerTable {
	ft := &FingerTable{entries: make([]FingerEntry, cfg.HashBits)}
	for i := range ft.entries {
		ft.entries[i] = FingerEntry{Start: PowerOffset(self, uint(i), cfg)}
	}
	return ft
}

// Len returns m, the number of finger entries.
func (ft *FingerTable) Len() int {
	return len(ft.entries)
}

// At returns the entry at index i.
func (ft *FingerTable) At(i int) FingerEntry {
	return ft.entries[i]
}

// UpdateEntry sets the owner for the entry whose start matches, and reports
// whether this changed anything, per spec §4.4.
func (ft *FingerTable) UpdateEntry(start ID, owner string) bool {
	for i := range ft.entries {
		if ft.entries[i].Start == start {
			if ft.entries[i].Owner == owner {
				return false
			}
			ft.entries[i].Owner = owner
			return true
		}
	}
	return false
}

// GetNextEntry returns the entry whose start comes immediately after start
// in index order, if any — spec §4.4's get_next_entry, the stopping
// condition for the recursive finger-fill walk in §4.2.5.
func (ft *FingerTable) GetNextEntry(start ID) (FingerEntry, bool) {
	for i := range ft.entries {
		if ft.entries[i].Start == start {
			if i+1 < len(ft.entries) {
				return ft.entries[i+1], true
			}
			return FingerEntry{}, false
		}
	}
	return FingerEntry{}, false
}

// Clear nulls every owner, leaving the immutable starts untouched.
func (ft *FingerTable) Clear() {
	for i := range ft.entries {
		ft.entries[i].Owner = ""
	}
}
