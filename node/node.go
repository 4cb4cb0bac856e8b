// Package node implements the DHT Node role of spec §4.2: a peer holding an
// identifier on the ring, a predecessor pointer, a successor list, a finger
// table, and a local key/value store. Inbound protocol messages are applied
// one at a time by its mailbox consumer; the periodic loops and the public
// Insert, Join and Leave calls update the same state directly under the
// node's mutex rather than through the mailbox. The per-message protocol logic (join,
// stabilization, notify, lookup routing, finger maintenance, leave) lives in
// protocol.go; the periodic background loops live in loops.go. Grounded on
// armon-go-chord/chord.go's localVnode and its schedule/delegateCh/
// delegateHandler consumer pattern, generalized from a multi-vnode-per-host
// model to the spec's single identity per process.
package node

import (
	"sync"
	"time"

	"github.com/chordring/chord"
	"github.com/chordring/chord/chorderr"
	"github.com/chordring/chord/logging"
	"github.com/chordring/chord/store"
	"github.com/chordring/chord/transport"
)

// Delegate receives ring-topology notifications a host application may want
// to observe (new predecessor, successor change, record migration), per
// SPEC_FULL §4.2 — generalized from armon-go-chord's Delegate interface
// (NewPredecessor/PredecessorLeaving/NewSuccessor/SuccessorLeaving/Shutdown).
type Delegate interface {
	NewPredecessor(self, pred string)
	NewSuccessor(self, succ string)
	RecordsMigrated(self string, records []chord.Record)
	Shutdown(self string)
}

// NopDelegate discards every notification; used when a host application does
// not care to observe ring events.
type NopDelegate struct{}

func (NopDelegate) NewPredecessor(string, string) {}
func (NopDelegate) NewSuccessor(string, string) {}
func (NopDelegate) RecordsMigrated(string, []chord.Record) {}
func (NopDelegate) Shutdown(string) {}

// inboundMsg pairs an incoming message with the channel its synchronous
// transport reply is delivered on, so HandleMessage can enqueue into the
// mailbox and block for the consumer's answer without the consumer itself
// ever blocking on the network.
type inboundMsg struct {
	msg   chord.Message
	reply chan chord.Message
}

// Node is one DHT participant. The fields from predecessor through inRing are
// guarded by mu (joinResult by joinMu); predecessor, successors and fingers form the mutable ring state spec
// §3 describes, always read/written with mu held and never while blocked on
// a network send (spec §9).
type Node struct {
	id  string
	cfg *chord.Config
	log logging.Logger
	tr  transport.Transport
	kv  store.Store
	del Delegate

	mailbox chan inboundMsg

	mu          sync.Mutex
	predecessor string
	successors  *chord.SuccessorList
	fingers     *chord.FingerTable
	coordinator string
	inRing      bool

	joinMu     sync.Mutex
	joinResult chan chord.Message

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Node. id is the transport endpoint that also doubles as
// the node's ring identity string (hashed per spec §3). The node does not
// start its consumer or periodic loops until Start is called, and does not
// register itself with tr until the caller does so explicitly (normally
// right before Start, from the owning cmd/node process).
func New(id string, cfg *chord.Config, tr transport.Transport, kv store.Store, log logging.Logger, del Delegate) *Node {
	if log == nil {
		log = logging.Nop{}
	}
	if del == nil {
		del = NopDelegate{}
	}
	return &Node{
		id:          id,
		cfg:         cfg,
		log:         log.Named("node").With(logging.F("id", id)),
		tr:          tr,
		kv:          kv,
		del:         del,
		mailbox:     make(chan inboundMsg, cfg.ChannelSize),
		predecessor: id,
		successors:  chord.NewSuccessorList(id, cfg.NumSuccessors),
		fingers:     chord.NewFingerTable(chord.HashID(id, cfg), cfg),
		stopCh:      make(chan struct{}),
	}
}

// ID returns the node's endpoint/identity string.
func (n *Node) ID() string { return n.id }

// Start launches the mailbox consumer and the stabilization/finger
// background loops. Safe to call once per Node.
func (n *Node) Start() {
	n.wg.Add(3)
	go n.consume()
	go n.stabilizeLoop()
	go n.fingerLoop()
}

// Stop signals every background goroutine to exit and waits for them.
func (n *Node) Stop() {
	close(n.stopCh)
	n.wg.Wait()
}

// HandleMessage implements transport.Handler: it enqueues msg for the single
// consumer goroutine and blocks for its reply, matching spec §5's "enqueue a
// typed message and return immediately" contract from the transport's point
// of view, while the actual state mutation happens serialized on consume().
func (n *Node) HandleMessage(msg chord.Message) chord.Message {
	reply := make(chan chord.Message, 1)
	select {
	case n.mailbox <- inboundMsg{msg: msg, reply: reply}:
	case <-n.stopCh:
		return errorReply(msg.Kind, "node is shutting down")
	}
	select {
	case r := <-reply:
		return r
	case <-n.stopCh:
		return errorReply(msg.Kind, "node is shutting down")
	}
}

// Successors implements transport.Handler, answering GET /successors.
func (n *Node) Successors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.successors.All()
}

// consume is the single mailbox consumer: every inbound message is
// dispatched here, in arrival order. State changes made by the periodic
// loops and by Insert, Join and Leave happen outside it, under mu.
func (n *Node) consume() {
	defer n.wg.Done()
	for {
		select {
		case im := <-n.mailbox:
			im.reply <- n.dispatch(im.msg)
		case <-n.stopCh:
			return
		}
	}
}

// dispatch pattern-matches on msg.Kind per spec §9's tagged-sum model.
// Unexpected kinds are logged and dropped rather than crashing the consumer,
// per spec §7.
func (n *Node) dispatch(msg chord.Message) chord.Message {
	switch msg.Kind {
	case chord.KindPing:
		return chord.Message{Kind: chord.KindPong}
	case chord.KindReqJoin:
		return n.handleReqJoin(msg)
	case chord.KindResJoin:
		return n.handleResJoin(msg)
	case chord.KindNodeExists:
		n.deliverJoinResult(msg)
		return chord.Message{Kind: chord.KindPong}
	case chord.KindRingIsFull:
		n.deliverJoinResult(msg)
		return chord.Message{Kind: chord.KindPong}
	case chord.KindNotify:
		return n.handleNotify(msg)
	case chord.KindIAmYourPredecessor:
		return n.handleIAmYourPredecessor(msg)
	case chord.KindIAmYourSuccessor:
		return n.handleIAmYourSuccessor(msg)
	case chord.KindData:
		return n.handleData(msg)
	case chord.KindLeave:
		return n.handleLeaveNotice(msg)
	case chord.KindReqFinger:
		return n.handleReqFinger(msg)
	case chord.KindResFinger:
		return n.handleResFinger(msg)
	case chord.KindLookupReq:
		return n.handleLookupReq(msg)
	default:
		n.log.Warn("dropping unexpected message", logging.F("kind", msg.Kind.String()))
		return errorReply(msg.Kind, "unexpected message kind")
	}
}

func errorReply(kind chord.Kind, detail string) chord.Message {
	return chord.Message{Kind: kind, Ok: false, Error: detail}
}

// hashOf is a small convenience wrapper binding HashID to this node's config.
func (n *Node) hashOf(s string) chord.ID {
	return chord.HashID(s, n.cfg)
}

// ownsKey reports whether keyHash falls in (hash(predecessor), hash(id)],
// the partition rule of spec §3/I2, given a locked snapshot of predecessor.
func (n *Node) ownsKey(pred string, keyHash chord.ID) bool {
	return chord.IsBetween(n.hashOf(pred), keyHash, n.hashOf(n.id))
}

// Insert implements spec §4.2.1's public Insert operation: store records
// that belong here, forward everything else (split per record, batched by
// destination) to the immediate successor.
func (n *Node) Insert(records []chord.Record) error {
	n.mu.Lock()
	pred := n.predecessor
	succ := n.successors.GetFirst()
	n.mu.Unlock()

	var mine, theirs []chord.Record
	for _, r := range records {
		if r.KeyHash == 0 && r.Key != "" {
			r.KeyHash = n.hashOf(r.Key)
		}
		if n.ownsKey(pred, r.KeyHash) {
			mine = append(mine, r)
		} else {
			theirs = append(theirs, r)
		}
	}
	if len(mine) > 0 {
		n.kv.Insert(mine)
	}
	if len(theirs) == 0 {
		return nil
	}
	if succ == "" || succ == n.id {
		// Alone in the ring: nothing to forward to, everything is ours.
		n.kv.Insert(theirs)
		return nil
	}
	if err := n.tr.Insert(succ, theirs); err != nil {
		n.log.Warn("forwarding insert to successor failed", logging.F("successor", succ), logging.F("err", err.Error()))
		return chorderr.Transport(err)
	}
	return nil
}

// Lookup implements spec §4.2.1/§4.2.4's public Lookup entry point: it runs
// the lookup routing for key directly, without a correlation id, and the
// result reaches the coordinator as a LookupRes. A LookupReq sent by the
// coordinator arrives through HandleMessage and dispatch instead.
func (n *Node) Lookup(key string, hops int) chord.Message {
	return n.handleLookupReq(chord.Message{Kind: chord.KindLookupReq, Key: key, Hops: hops})
}

// CoordinatorEndpoint reports the ring coordinator this node registered
// with, set during Join.
func (n *Node) CoordinatorEndpoint() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.coordinator
}

// InRing reports whether the node has completed Join.
func (n *Node) InRing() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inRing
}

const joinRendezvousTimeout = 10 * time.Second
