// Package transport defines the Transport interface nodes and the
// coordinator use to reach one another, generalized from
// armon-go-chord/chord.go's Transport/VnodeRPC split: Transport is what a
// caller invokes on a remote endpoint, Handler is what a local node/
// coordinator registers to answer those calls. Concrete implementations
// live in transport/httptransport (the production HTTP JSON transport, per
// spec §6) and transport/localtransport (same-process, for tests).
package transport

import "github.com/chordring/chord"

// Handler is implemented by a node or the coordinator to answer inbound
// calls. HandleMessage dispatches the spec §6 tagged-union message set;
// Successors and Insert answer the GET /successors and POST /insert
// endpoints spec §6 calls out as separate from the message union.
type Handler interface {
	HandleMessage(msg chord.Message) chord.Message
	Successors() []string
	Insert(records []chord.Record) error
}

// Transport is the outbound side: send a message to an endpoint and get its
// reply, per spec §6's "message-oriented RPC is sufficient".
type Transport interface {
	// Send delivers msg to endpoint's /msg handler and returns its reply.
	Send(endpoint string, msg chord.Message) (chord.Message, error)

	// GetSuccessors fetches endpoint's successor list (GET /successors).
	GetSuccessors(endpoint string) ([]string, error)

	// Insert delivers a record batch to endpoint's /insert handler.
	Insert(endpoint string, records []chord.Record) error

	// Ping checks endpoint liveness.
	Ping(endpoint string) bool

	// Register binds endpoint to a local Handler so that Send/GetSuccessors/
	// Insert calls addressed to it are served in-process rather than over
	// the network — mirrors LocalTransport's fast local path.
	Register(endpoint string, h Handler)

	// Deregister removes a previously registered local endpoint, so calls
	// addressed to it are no longer served in-process.
	Deregister(endpoint string)
}
