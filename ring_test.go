package chord

import "testing"

func TestIsBetweenWrapAround(t *testing.T) {
	// spec §8 boundary behaviors: is_between(2^m-1, 0, 1) is true.
	if !IsBetween(255, 0, 1) {
		t.Fatalf("expected wrap-around arc to contain 0")
	}
}

func TestIsBetweenDegenerate(t *testing.T) {
	// spec §8: is_between(5, 5, 5) is false.
	if IsBetween(5, 5, 5) {
		t.Fatalf("expected degenerate arc to be empty")
	}
}

func TestIsBetweenNormal(t *testing.T) {
	if !IsBetween(10, 15, 20) {
		t.Fatalf("expected 15 to be in (10, 20]")
	}
	if IsBetween(10, 25, 20) {
		t.Fatalf("expected 25 to be outside (10, 20]")
	}
	if !IsBetween(10, 20, 20) {
		t.Fatalf("expected arc to be right-inclusive")
	}
	if IsBetween(10, 10, 20) {
		t.Fatalf("expected arc to be left-exclusive")
	}
}

func TestIsBetweenWrapGeneral(t *testing.T) {
	// a >= b: x > a OR x <= b
	if !IsBetween(250, 254, 10) {
		t.Fatalf("expected 254 to be in wrapping arc (250, 10]")
	}
	if !IsBetween(250, 5, 10) {
		t.Fatalf("expected 5 to be in wrapping arc (250, 10]")
	}
	if IsBetween(250, 100, 10) {
		t.Fatalf("expected 100 to be outside wrapping arc (250, 10]")
	}
}

func TestHashIDDeterministic(t *testing.T) {
	cfg := DefaultConfig("coordinator:9000")
	a := HashID("node-a:8000", cfg)
	b := HashID("node-a:8000", cfg)
	if a != b {
		t.Fatalf("hash of the same string must be deterministic")
	}
	if uint64(a) > cfg.Mask() {
		t.Fatalf("hash %d exceeds ring mask %d", a, cfg.Mask())
	}
}

func TestHashIDCollisionUnlikelyForDistinctStrings(t *testing.T) {
	cfg := DefaultConfig("coordinator:9000")
	// Collisions are possible at the default m=8; with m=64 fifty distinct
	// strings colliding would point at a broken hash.
	cfg.HashBits = 64
	seen := map[ID]bool{}
	for i := 0; i < 50; i++ {
		id := HashID(stringsRepeat("x", i)+"node", cfg)
		if seen[id] {
			t.Fatalf("unexpected hash collision for %q", stringsRepeat("x", i)+"node")
		}
		seen[id] = true
	}
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func TestPowerOffsetWraps(t *testing.T) {
	cfg := &Config{HashBits: 4}
	// 2^4 = 16; id=15, i=0 -> (15+1) mod 16 = 0
	if got := PowerOffset(15, 0, cfg); got != 0 {
		t.Fatalf("expected wrap to 0, got %d", got)
	}
	if got := PowerOffset(2, 3, cfg); got != 10 {
		t.Fatalf("expected 2+8=10, got %d", got)
	}
}
