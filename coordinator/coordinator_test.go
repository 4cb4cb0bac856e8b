package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chordring/chord"
	"github.com/chordring/chord/logging"
	"github.com/chordring/chord/transport"
	"github.com/chordring/chord/transport/localtransport"
)

// stubNode is a bare transport.Handler standing in for a DHT node in
// coordinator-only tests.
type stubNode struct {
	alive    bool
	inserted [][]chord.Record
}

func (s *stubNode) HandleMessage(msg chord.Message) chord.Message {
	if msg.Kind == chord.KindPing {
		if !s.alive {
			return chord.Message{}
		}
		return chord.Message{Kind: chord.KindPong}
	}
	return chord.Message{Kind: chord.KindPong, Ok: true}
}
func (s *stubNode) Successors() []string { return nil }
func (s *stubNode) Insert(records []chord.Record) error {
	s.inserted = append(s.inserted, records)
	return nil
}

func testCoordinator() (*Coordinator, transport.Transport) {
	cfg := chord.DefaultConfig("coordinator:9000")
	cfg.HashBits = 8
	lt := localtransport.New(nil)
	c := New(cfg, lt, logging.Nop{})
	lt.Register("coordinator:9000", c)
	c.Start()
	return c, lt
}

func TestRegisterJoinFirstMemberSelfRegisters(t *testing.T) {
	c, _ := testCoordinator()
	defer c.Stop()

	reply := c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "a:1"})
	assert.Equal(t, chord.KindResKnownNode, reply.Kind)
	assert.Equal(t, "a:1", reply.Known)
	assert.Equal(t, []string{"a:1"}, c.Members())
}

func TestRegisterJoinRoundRobinAndDetectsCollision(t *testing.T) {
	c, _ := testCoordinator()
	defer c.Stop()

	c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "a:1"})
	c.HandleMessage(chord.Message{Kind: chord.KindRegistered, NodeID: "a:1"})
	firstPick := c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "b:2"})
	assert.Equal(t, "a:1", firstPick.Known)
	c.HandleMessage(chord.Message{Kind: chord.KindRegistered, NodeID: "b:2"})

	reply := c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "a:1"})
	assert.Equal(t, chord.KindNodeExists, reply.Kind)

	// The cursor advanced past a:1 on the first pick, so the next joiner is
	// handed b:2.
	secondPick := c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "c:3"})
	assert.Equal(t, "b:2", secondPick.Known)
}

func TestLeaveRemovesMember(t *testing.T) {
	c, _ := testCoordinator()
	defer c.Stop()

	c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "a:1"})
	c.HandleMessage(chord.Message{Kind: chord.KindRegistered, NodeID: "a:1"})
	require.Len(t, c.Members(), 1)

	c.HandleMessage(chord.Message{Kind: chord.KindLeave, NodeID: "a:1"})
	assert.Empty(t, c.Members())
}

func TestLookupRoutesToFirstMemberAndDedupes(t *testing.T) {
	c, lt := testCoordinator()
	defer c.Stop()

	node := &stubNode{alive: true}
	lt.Register("node-a:1", node)

	c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "node-a:1"})
	c.HandleMessage(chord.Message{Kind: chord.KindRegistered, NodeID: "node-a:1"})

	resultCh := make(chan chord.Message, 1)
	go func() {
		res, err := c.Lookup("foo")
		require.NoError(t, err)
		resultCh <- res
	}()

	// Give Lookup time to register its pending entry, then simulate the
	// node replying with its assigned correlation id, twice (duplicate
	// delivery), which must only count once.
	time.Sleep(20 * time.Millisecond)

	c.pendingMu.Lock()
	var corrID string
	for id := range c.pending {
		corrID = id
	}
	c.pendingMu.Unlock()
	require.NotEmpty(t, corrID)

	reply := chord.Message{Kind: chord.KindLookupRes, Key: "foo", Hops: 1, Found: true,
		Records:       []chord.Record{{Key: "foo", Value: "bar"}},
		CorrelationID: corrID,
	}
	c.HandleMessage(reply)
	c.HandleMessage(reply) // duplicate, must be a no-op

	select {
	case res := <-resultCh:
		assert.True(t, res.Found)
		require.Len(t, res.Records, 1)
		assert.Equal(t, "bar", res.Records[0].Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Lookup to resolve")
	}
}

func TestBulkInsertFansOutToEveryMember(t *testing.T) {
	c, lt := testCoordinator()
	defer c.Stop()

	a, b := &stubNode{alive: true}, &stubNode{alive: true}
	lt.Register("a:1", a)
	lt.Register("b:2", b)
	c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "a:1"})
	c.HandleMessage(chord.Message{Kind: chord.KindRegistered, NodeID: "a:1"})
	c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "b:2"})
	c.HandleMessage(chord.Message{Kind: chord.KindRegistered, NodeID: "b:2"})

	records := []chord.Record{{Key: "k1", Value: "v1"}, {Key: "k2", Value: "v2"}}
	successes, failures := c.BulkInsert(records)
	assert.Equal(t, 2, successes)
	assert.Equal(t, 0, failures)
	assert.Len(t, a.inserted, 1)
	assert.Len(t, b.inserted, 1)
}

func TestLivenessTickRemovesDeadMember(t *testing.T) {
	c, lt := testCoordinator()
	defer c.Stop()

	local, ok := lt.(*localtransport.Local)
	require.True(t, ok)

	dead := &stubNode{alive: true}
	local.Register("dead:1", dead)
	c.HandleMessage(chord.Message{Kind: chord.KindReqKnownNode, NodeID: "dead:1"})
	c.HandleMessage(chord.Message{Kind: chord.KindRegistered, NodeID: "dead:1"})
	require.Len(t, c.Members(), 1)

	// Local transport treats any registered handler as reachable, so
	// simulate an ungraceful crash the way the node package's own failure
	// test does: deregister the local handler entirely.
	local.Deregister("dead:1")

	c.livenessTick()
	assert.Empty(t, c.Members())
}
