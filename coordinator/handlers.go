package coordinator

import (
	"time"

	"github.com/chordring/chord"
	"github.com/chordring/chord/chorderr"
	"github.com/chordring/chord/logging"
)

// handleRegisterJoin implements spec §4.1's RegisterJoin operation.
func (c *Coordinator) handleRegisterJoin(msg chord.Message) chord.Message {
	endpoint := msg.NodeID

	c.mu.Lock()
	defer c.mu.Unlock()

	if size := c.cfg.RingSize(); size != 0 && uint64(len(c.members)) >= size {
		return chord.Message{Kind: chord.KindRingIsFull}
	}

	hNew := chord.HashID(endpoint, c.cfg)
	for _, m := range c.members {
		if m == endpoint || chord.HashID(m, c.cfg) == hNew {
			return chord.Message{Kind: chord.KindNodeExists}
		}
	}

	if len(c.members) == 0 {
		c.members = append(c.members, endpoint)
		c.appendLogLocked("ring empty: %s self-registered as the first member", endpoint)
		return chord.Message{Kind: chord.KindResKnownNode, Known: endpoint}
	}

	pick := c.members[c.cursor%len(c.members)]
	c.cursor++
	c.appendLogLocked("handed %s to joiner %s", pick, endpoint)
	return chord.Message{Kind: chord.KindResKnownNode, Known: pick}
}

// handleRegistered implements spec §4.1's Registered operation: append the
// endpoint if it is not already a member.
func (c *Coordinator) handleRegistered(msg chord.Message) chord.Message {
	endpoint := msg.NodeID

	c.mu.Lock()
	for _, m := range c.members {
		if m == endpoint {
			c.mu.Unlock()
			return chord.Message{Kind: chord.KindPong, Ok: true}
		}
	}
	c.members = append(c.members, endpoint)
	c.appendLogLocked("%s registered", endpoint)
	c.mu.Unlock()
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleLeave implements spec §4.1's Leave operation: remove the endpoint
// from the membership view.
func (c *Coordinator) handleLeave(msg chord.Message) chord.Message {
	endpoint := msg.NodeID

	c.mu.Lock()
	for i, m := range c.members {
		if m == endpoint {
			c.members = append(c.members[:i], c.members[i+1:]...)
			if c.cursor > i {
				c.cursor--
			}
			break
		}
	}
	c.appendLogLocked("%s left", endpoint)
	c.mu.Unlock()
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// resolvePendingLookup matches an inbound LookupRes to an outstanding Lookup
// call by CorrelationID, dropping anything already resolved or unknown — the
// deduplication spec §9's open question calls for, since retry-exhaustion
// can produce more than one LookupRes for the same request.
func (c *Coordinator) resolvePendingLookup(msg chord.Message) {
	c.pendingMu.Lock()
	p, ok := c.pending[msg.CorrelationID]
	if ok {
		delete(c.pending, msg.CorrelationID)
	}
	c.pendingMu.Unlock()
	if !ok {
		return
	}
	if p.key != msg.Key {
		c.log.Warn("lookup response key mismatch",
			logging.F("expected", p.key), logging.F("got", msg.Key))
	}
	select {
	case p.ch <- msg:
	default:
	}
}

// checkNode is the CheckNode internal command of spec §6's message table:
// ping a member once, removing it from the membership view on failure.
func (c *Coordinator) checkNode(member string) {
	if c.tr.Ping(member) {
		return
	}
	c.mu.Lock()
	for i, m := range c.members {
		if m == member {
			c.members = append(c.members[:i], c.members[i+1:]...)
			if c.cursor > i {
				c.cursor--
			}
			break
		}
	}
	c.appendLogLocked("%s failed a liveness check, removed", member)
	c.mu.Unlock()
}

// Lookup implements spec §4.1's Lookup operation: pick the first member,
// rotate the membership by one for load balancing across clients, and
// forward a LookupReq. A send failure triggers CheckNode instead of
// propagating the transport error, matching spec §4.1 exactly.
func (c *Coordinator) Lookup(key string) (chord.Message, error) {
	c.mu.Lock()
	if len(c.members) == 0 {
		c.mu.Unlock()
		return chord.Message{}, chorderr.ErrNotFound
	}
	member := c.members[0]
	c.members = append(c.members[1:], c.members[0])
	c.mu.Unlock()

	corrID := c.nextCorrelationID()
	resultCh := make(chan chord.Message, 1)
	c.pendingMu.Lock()
	c.pending[corrID] = pendingLookup{key: key, ch: resultCh}
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, corrID)
		c.pendingMu.Unlock()
	}()

	if _, err := c.tr.Send(member, chord.Message{
		Kind: chord.KindLookupReq, Key: key, Hops: 0, CorrelationID: corrID,
	}); err != nil {
		c.log.Warn("lookup forward failed", logging.F("member", member), logging.F("err", err.Error()))
		go c.checkNode(member)
		return chord.Message{Kind: chord.KindLookupRes, Key: key, Found: false}, nil
	}

	select {
	case res := <-resultCh:
		return res, nil
	case <-time.After(lookupTimeout):
		return chord.Message{Kind: chord.KindLookupRes, Key: key, Found: false}, nil
	}
}

// BulkInsert implements spec §4.1's BulkInsert operation: fan a record batch
// out to every known member's insert endpoint, counting outcomes.
func (c *Coordinator) BulkInsert(records []chord.Record) (successes, failures int) {
	for _, m := range c.Members() {
		if err := c.tr.Insert(m, records); err != nil {
			failures++
			c.log.Warn("bulk insert failed", logging.F("member", m), logging.F("err", err.Error()))
			continue
		}
		successes++
	}
	return successes, failures
}
