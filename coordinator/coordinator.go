// Package coordinator implements the Ring Coordinator role of spec §4.1: the
// bootstrap/registry service new nodes contact to obtain an entry point,
// which also fans out client-originated lookup and bulk-insert requests and
// periodically liveness-checks the membership it knows about. Grounded on
// armon-go-chord/chord.go's delegate-consumer pattern for the mailbox and on
// johnjansen-torua's coordinator/health_monitor.go for the liveness loop
// shape, adapted from REST health polling to Chord Ping messages.
package coordinator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chordring/chord"
	"github.com/chordring/chord/logging"
	"github.com/chordring/chord/transport"
)

type inboundMsg struct {
	msg   chord.Message
	reply chan chord.Message
}

type pendingLookup struct {
	key string
	ch  chan chord.Message
}

// Coordinator holds the ring's membership view, per spec §3's Ring
// Coordinator state: an ordered circular buffer of endpoints, a rotating
// cursor, and an observability log. All three are guarded by mu. Join,
// Registered and Leave messages change them inside the mailbox consumer;
// Lookup (which rotates the members), checkNode and the liveness loop change
// them directly under mu, outside the mailbox.
type Coordinator struct {
	cfg *chord.Config
	log logging.Logger
	tr  transport.Transport

	mailbox chan inboundMsg

	mu      sync.Mutex
	members []string
	cursor  int
	logs    []string

	pendingMu sync.Mutex
	pending   map[string]pendingLookup

	corrSeq atomic.Uint64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Coordinator. It does not start its consumer or liveness loop
// until Start is called.
func New(cfg *chord.Config, tr transport.Transport, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Nop{}
	}
	return &Coordinator{
		cfg:     cfg,
		log:     log.Named("coordinator"),
		tr:      tr,
		mailbox: make(chan inboundMsg, cfg.ChannelSize),
		pending: make(map[string]pendingLookup),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the mailbox consumer and the liveness-check loop.
func (c *Coordinator) Start() {
	c.wg.Add(2)
	go c.consume()
	go c.livenessLoop()
}

// Stop signals every background goroutine to exit and waits for them.
func (c *Coordinator) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// HandleMessage implements transport.Handler for the coordinator's own
// endpoint: every inbound Chord message (ReqKnownNode, Registered, Leave,
// LookupRes) is enqueued for the single consumer and its reply awaited,
// mirroring node.Node's HandleMessage.
func (c *Coordinator) HandleMessage(msg chord.Message) chord.Message {
	reply := make(chan chord.Message, 1)
	select {
	case c.mailbox <- inboundMsg{msg: msg, reply: reply}:
	case <-c.stopCh:
		return chord.Message{Kind: msg.Kind, Ok: false, Error: "coordinator is shutting down"}
	}
	select {
	case r := <-reply:
		return r
	case <-c.stopCh:
		return chord.Message{Kind: msg.Kind, Ok: false, Error: "coordinator is shutting down"}
	}
}

// Successors and Insert exist only so Coordinator satisfies transport.Handler
// when registered on the shared transport; the coordinator has neither.
func (c *Coordinator) Successors() []string          { return nil }
func (c *Coordinator) Insert(_ []chord.Record) error { return nil }

func (c *Coordinator) consume() {
	defer c.wg.Done()
	for {
		select {
		case im := <-c.mailbox:
			im.reply <- c.dispatch(im.msg)
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) dispatch(msg chord.Message) chord.Message {
	switch msg.Kind {
	case chord.KindPing:
		return chord.Message{Kind: chord.KindPong}
	case chord.KindReqKnownNode:
		return c.handleRegisterJoin(msg)
	case chord.KindRegistered:
		return c.handleRegistered(msg)
	case chord.KindLeave:
		return c.handleLeave(msg)
	case chord.KindLookupRes:
		c.resolvePendingLookup(msg)
		return chord.Message{Kind: chord.KindPong, Ok: true}
	default:
		c.log.Warn("dropping unexpected message", logging.F("kind", msg.Kind.String()))
		return chord.Message{Kind: msg.Kind, Ok: false, Error: "unexpected message kind"}
	}
}

func (c *Coordinator) appendLog(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendLogLocked(format, args...)
}

// appendLogLocked requires the caller to already hold c.mu.
func (c *Coordinator) appendLogLocked(format string, args ...any) {
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
	const maxLogs = 500
	if len(c.logs) > maxLogs {
		c.logs = c.logs[len(c.logs)-maxLogs:]
	}
}

// Members returns a snapshot of the current membership view, for the
// dashboard and GET /nodes.
func (c *Coordinator) Members() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.members))
	copy(out, c.members)
	return out
}

// Logs returns a snapshot of recent observability log lines.
func (c *Coordinator) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.logs))
	copy(out, c.logs)
	return out
}

func (c *Coordinator) nextCorrelationID() string {
	return fmt.Sprintf("lk-%d", c.corrSeq.Add(1))
}

const lookupTimeout = 5 * time.Second
