// Package chord provides the shared primitives of a Chord distributed hash
// table overlay: identifier hashing, the ring arc predicate, and the wire
// message schema used between the ring coordinator and its nodes.
//
// The protocol logic that consumes these primitives — join, stabilization,
// finger maintenance, lookup routing — lives in the node and coordinator
// packages; this package has no knowledge of transport, storage, or process
// lifecycle.
package chord

import "time"

// Config holds the deployment parameters shared by every node and the
// coordinator in a ring. Fields mirror spec §6's parameter table.
type Config struct {
	// HashBits is m: the identifier space is the ring of 2^HashBits integers.
	HashBits uint

	// NumSuccessors is R: the length of each node's successor list.
	NumSuccessors int

	StabilizeInterval time.Duration
	FingerInterval    time.Duration
	LivenessInterval  time.Duration

	// ChannelSize bounds each node's and the coordinator's mailbox capacity.
	ChannelSize int

	// Bootstrap is the ring coordinator's endpoint.
	Bootstrap string
}

// DefaultConfig returns sane defaults for a small deployment (m=8, matching
// spec §3's "typically 8-16" guidance).
func DefaultConfig(bootstrap string) *Config {
	return &Config{
		HashBits:          8,
		NumSuccessors:     4,
		StabilizeInterval: 5 * time.Second,
		FingerInterval:    5 * time.Second,
		LivenessInterval:  30 * time.Second,
		ChannelSize:       128,
		Bootstrap:         bootstrap,
	}
}

// RingSize returns 2^HashBits, the number of distinct identifiers on the ring.
func (c *Config) RingSize() uint64 {
	if c.HashBits >= 64 {
		return 0 // the full uint64 range; Mask() is used instead of this value
	}
	return uint64(1) << c.HashBits
}

// Mask returns the bitmask 2^HashBits - 1 used to fold a hash onto the ring.
func (c *Config) Mask() uint64 {
	if c.HashBits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << c.HashBits) - 1
}
