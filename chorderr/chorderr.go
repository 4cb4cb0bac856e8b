// Package chorderr defines the typed error kinds used across the ring,
// per spec §7: TransportError, RingFull, NodeExists, NotFound, StoreError,
// and ProtocolError. Callers compare with errors.Is rather than string
// matching, generalized from KoordeDHT's domain sentinel-error style
// (internal/domain's ErrResourceNotFound) to the full Chord error set.
package chorderr

import "errors"

var (
	// ErrTransport is a send or receive failure surviving the retry policy.
	ErrTransport = errors.New("chord: transport error")

	// ErrRingFull means the identifier space (2^m slots) is already occupied.
	ErrRingFull = errors.New("chord: ring is full")

	// ErrNodeExists means the joining endpoint's hash collides with an
	// existing member.
	ErrNodeExists = errors.New("chord: node already exists")

	// ErrNotFound means a lookup or store read missed.
	ErrNotFound = errors.New("chord: not found")

	// ErrStore is a local key/value backing-store failure.
	ErrStore = errors.New("chord: store error")

	// ErrProtocol marks a malformed or unexpected message.
	ErrProtocol = errors.New("chord: protocol error")

	// ErrNotInRing marks a node that has not joined a ring. No node
	// operation in this module returns it; Insert, Lookup and Leave run
	// the same way before and after Join.
	ErrNotInRing = errors.New("chord: node is not in a ring")
)

// Transport wraps an underlying send/receive failure as ErrTransport.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: ErrTransport, cause: err}
}

// Store wraps an underlying backing-store failure as ErrStore.
func Store(err error) error {
	if err == nil {
		return nil
	}
	return &wrapped{kind: ErrStore, cause: err}
}

// Protocol wraps a malformed-message detail as ErrProtocol.
func Protocol(detail string) error {
	return &wrapped{kind: ErrProtocol, cause: errors.New(detail)}
}

type wrapped struct {
	kind  error
	cause error
}

func (w *wrapped) Error() string {
	return w.kind.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Unwrap() error {
	return w.kind
}

func (w *wrapped) Cause() error {
	return w.cause
}
