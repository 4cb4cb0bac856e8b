// Package localtransport provides fast in-process routing to local
// node/coordinator handlers, falling back to a wrapped remote transport for
// everything else — adapted from armon-go-chord/transport.go's
// LocalTransport and BlackholeTransport.
package localtransport

import (
	"fmt"
	"sync"

	"github.com/chordring/chord"
	"github.com/chordring/chord/transport"
)

// Local wraps a remote Transport (or a Blackhole if none is given) and
// serves any Send/GetSuccessors/Insert/Ping call addressed to a registered
// local endpoint directly, without going over the network.
type Local struct {
	remote transport.Transport
	mu     sync.RWMutex
	local  map[string]transport.Handler
}

// New creates a local transport. A nil remote is replaced with a Blackhole,
// matching armon-go-chord's InitLocalTransport behavior.
func New(remote transport.Transport) *Local {
	if remote == nil {
		remote = &Blackhole{}
	}
	return &Local{remote: remote, local: make(map[string]transport.Handler)}
}

func (l *Local) get(endpoint string) (transport.Handler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.local[endpoint]
	return h, ok
}

// Send implements transport.Transport.
func (l *Local) Send(endpoint string, msg chord.Message) (chord.Message, error) {
	if h, ok := l.get(endpoint); ok {
		return h.HandleMessage(msg), nil
	}
	return l.remote.Send(endpoint, msg)
}

// GetSuccessors implements transport.Transport.
func (l *Local) GetSuccessors(endpoint string) ([]string, error) {
	if h, ok := l.get(endpoint); ok {
		return h.Successors(), nil
	}
	return l.remote.GetSuccessors(endpoint)
}

// Insert implements transport.Transport.
func (l *Local) Insert(endpoint string, records []chord.Record) error {
	if h, ok := l.get(endpoint); ok {
		return h.Insert(records)
	}
	return l.remote.Insert(endpoint, records)
}

// Ping implements transport.Transport.
func (l *Local) Ping(endpoint string) bool {
	if _, ok := l.get(endpoint); ok {
		return true
	}
	return l.remote.Ping(endpoint)
}

// Register implements transport.Transport.
func (l *Local) Register(endpoint string, h transport.Handler) {
	l.mu.Lock()
	l.local[endpoint] = h
	l.mu.Unlock()
	l.remote.Register(endpoint, h)
}

// Deregister implements transport.Transport.
func (l *Local) Deregister(endpoint string) {
	l.mu.Lock()
	delete(l.local, endpoint)
	l.mu.Unlock()
	l.remote.Deregister(endpoint)
}

// Blackhole answers every call with a transport error, used when a local
// transport isn't wrapping any real remote transport (single-process tests),
// adapted from armon-go-chord/transport.go's BlackholeTransport.
type Blackhole struct{}

func (*Blackhole) Send(string, chord.Message) (chord.Message, error) {
	return chord.Message{}, fmt.Errorf("blackhole transport: no remote connectivity")
}
func (*Blackhole) GetSuccessors(string) ([]string, error) {
	return nil, fmt.Errorf("blackhole transport: no remote connectivity")
}
func (*Blackhole) Insert(string, []chord.Record) error {
	return fmt.Errorf("blackhole transport: no remote connectivity")
}
func (*Blackhole) Ping(string) bool          { return false }
func (*Blackhole) Register(string, transport.Handler) {}
func (*Blackhole) Deregister(string)                  {}
