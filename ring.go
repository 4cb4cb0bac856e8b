package chord

import (
	"crypto/sha256"
	"encoding/binary"
)

// ID is a point on the identifier ring: an integer in [0, 2^m).
type ID uint64

// HashID implements spec §3/§6's hash function exactly:
// hash(s) = be_u64(SHA-256(s)[0:8]) mod 2^m. Bit-exact; do not substitute.
func HashID(s string, cfg *Config) ID {
	sum := sha256.Sum256([]byte(s))
	raw := binary.BigEndian.Uint64(sum[0:8])
	return ID(raw & cfg.Mask())
}

// PowerOffset computes (id + 2^i) mod 2^m, used to derive finger start_i.
func PowerOffset(id ID, i uint, cfg *Config) ID {
	mask := cfg.Mask()
	if i >= 64 {
		return id // 2^i overflows uint64 long before HashBits would allow it
	}
	return ID((uint64(id) + (uint64(1) << i)) & mask)
}

// IsBetween reports whether x lies on the open-closed arc (a, b], moving
// clockwise with wrap-around, per spec §3: when a < b, a < x <= b; when
// a >= b, x > a OR x <= b.
func IsBetween(a, x, b ID) bool {
	if x == a {
		// Left-exclusive in every case, including the degenerate a == b
		// arc, where the wrap formula below would otherwise say x <= b
		// holds and wrongly include it.
		return false
	}
	if a < b {
		return a < x && x <= b
	}
	return x > a || x <= b
}

// IsBetweenOpen reports whether x lies on the open arc (a, b), excluding both
// endpoints, with the same wrap-around convention as IsBetween. The lookup
// finger scan uses IsBetween, not this function.
func IsBetweenOpen(a, x, b ID) bool {
	if x == a || x == b {
		return false
	}
	if a < b {
		return a < x && x < b
	}
	return x > a || x < b
}
