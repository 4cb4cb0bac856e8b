package node

import (
	"fmt"
	"time"

	"github.com/chordring/chord"
	"github.com/chordring/chord/chorderr"
	"github.com/chordring/chord/logging"
)

// sendFireAndForget sends msg to endpoint without surfacing the reply to the
// caller, logging and swallowing any transport failure — spec §7: "transport
// errors to peers are logged and absorbed; the topology must self-heal
// through stabilization."
func (n *Node) sendFireAndForget(endpoint string, msg chord.Message) {
	if endpoint == "" {
		return
	}
	if _, err := n.tr.Send(endpoint, msg); err != nil {
		n.log.Warn("send failed",
			logging.F("endpoint", endpoint),
			logging.F("kind", msg.Kind.String()),
			logging.F("err", err.Error()))
	}
}

// deliverJoinResult hands a ResJoin/NodeExists/RingIsFull message received on
// this node's own mailbox to a Join call blocked waiting for it. A Join not
// currently in flight simply drops the message.
func (n *Node) deliverJoinResult(msg chord.Message) {
	n.joinMu.Lock()
	ch := n.joinResult
	n.joinMu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- msg:
	default:
	}
}

// Join implements spec §4.2.1: register with the coordinator, then hand-shake
// with the returned known node. The handshake's actual result (ResJoin or
// NodeExists) arrives asynchronously on this node's own mailbox — the
// coordinator hands back a peer to contact, and that peer may forward the
// join request along the ring before the owning node replies directly to us
// — so Join blocks on a rendezvous channel fed by dispatch rather than on
// the synchronous reply to its own outbound send.
func (n *Node) Join(bootstrap string) error {
	n.mu.Lock()
	n.coordinator = bootstrap
	n.mu.Unlock()

	reply, err := n.registerWithCoordinator(bootstrap)
	if err != nil {
		return err
	}
	switch reply.Kind {
	case chord.KindRingIsFull:
		return chorderr.ErrRingFull
	case chord.KindNodeExists:
		return chorderr.ErrNodeExists
	case chord.KindResKnownNode:
		// proceed below
	default:
		return chorderr.Protocol("unexpected coordinator reply to join request: " + reply.Kind.String())
	}

	pick := reply.Known
	if pick == "" {
		return chorderr.Protocol("coordinator returned an empty known node")
	}
	if pick == n.id {
		// Ring was empty; the coordinator appended us directly and there is
		// no peer to hand-shake with.
		n.mu.Lock()
		n.inRing = true
		n.mu.Unlock()
		return nil
	}

	ch := make(chan chord.Message, 1)
	n.joinMu.Lock()
	n.joinResult = ch
	n.joinMu.Unlock()
	defer func() {
		n.joinMu.Lock()
		n.joinResult = nil
		n.joinMu.Unlock()
	}()

	if _, err := n.tr.Send(pick, chord.Message{Kind: chord.KindReqJoin, Joiner: n.id}); err != nil {
		return chorderr.Transport(err)
	}

	select {
	case res := <-ch:
		switch res.Kind {
		case chord.KindResJoin:
			return nil
		case chord.KindNodeExists:
			return chorderr.ErrNodeExists
		default:
			return chorderr.Protocol("unexpected join rendezvous message: " + res.Kind.String())
		}
	case <-time.After(joinRendezvousTimeout):
		return chorderr.Transport(fmt.Errorf("timed out waiting for join rendezvous via %s", pick))
	}
}

// registerWithCoordinator sends ReqKnownNode, retrying per spec §7: "transport
// errors to the coordinator during join are retried (5 attempts, 1 s
// spacing); exhaustion terminates the process" — the termination itself is
// the caller's (cmd/node's) responsibility; this just reports the exhausted
// error.
func (n *Node) registerWithCoordinator(bootstrap string) (chord.Message, error) {
	const attempts = 5
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(time.Second)
		}
		reply, err := n.tr.Send(bootstrap, chord.Message{Kind: chord.KindReqKnownNode, NodeID: n.id})
		if err == nil {
			return reply, nil
		}
		lastErr = err
		n.log.Warn("coordinator registration attempt failed",
			logging.F("attempt", i+1), logging.F("err", err.Error()))
	}
	return chord.Message{}, chorderr.Transport(lastErr)
}

// handleReqJoin is the join recipient side, spec §4.2.2.
func (n *Node) handleReqJoin(msg chord.Message) chord.Message {
	joiner := msg.Joiner

	n.mu.Lock()
	me := n.id
	succ := n.successors.GetFirst()
	n.mu.Unlock()

	hMe := n.hashOf(me)
	hSucc := n.hashOf(succ)
	hJoiner := n.hashOf(joiner)

	if hJoiner == hMe || hJoiner == hSucc {
		go n.sendFireAndForget(joiner, chord.Message{Kind: chord.KindNodeExists})
		return chord.Message{Kind: chord.KindPong, Ok: true}
	}

	if chord.IsBetween(hMe, hJoiner, hSucc) {
		old := succ
		n.mu.Lock()
		n.successors.InsertFirst(joiner)
		n.mu.Unlock()
		n.del.NewSuccessor(me, joiner)
		go func() {
			n.sendFireAndForget(joiner, chord.Message{Kind: chord.KindResJoin, NewSuccessor: old, Sender: me})
			if old != "" && old != me {
				n.sendFireAndForget(old, chord.Message{Kind: chord.KindNotify, Sender: joiner})
			}
		}()
		return chord.Message{Kind: chord.KindPong, Ok: true}
	}

	go n.sendFireAndForget(succ, chord.Message{Kind: chord.KindReqJoin, Joiner: joiner})
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleResJoin is the joiner side, spec §4.2.2.
func (n *Node) handleResJoin(msg chord.Message) chord.Message {
	newSuccessor := msg.NewSuccessor
	sender := msg.Sender

	n.mu.Lock()
	n.successors.Clear()
	n.successors.InsertFirst(newSuccessor)
	n.predecessor = sender
	n.inRing = true
	me := n.id
	coordinator := n.coordinator
	firstStart := n.fingers.At(0).Start
	n.mu.Unlock()

	n.del.NewPredecessor(me, sender)
	n.del.NewSuccessor(me, newSuccessor)

	go func() {
		if succList, err := n.tr.GetSuccessors(newSuccessor); err != nil {
			n.log.Warn("failed to fetch new successor's successor list", logging.F("err", err.Error()))
		} else {
			n.mu.Lock()
			n.successors.MergeFrom(me, succList)
			n.mu.Unlock()
		}
		if coordinator != "" {
			n.sendFireAndForget(coordinator, chord.Message{Kind: chord.KindRegistered, NodeID: me})
		}
		n.sendFireAndForget(me, chord.Message{Kind: chord.KindReqFinger, From: me, FingerStart: firstStart})
	}()

	n.deliverJoinResult(msg)
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleNotify implements spec §4.2.3's Notify handler.
func (n *Node) handleNotify(msg chord.Message) chord.Message {
	sender := msg.Sender

	n.mu.Lock()
	pred := n.predecessor
	me := n.id
	hPred := n.hashOf(pred)
	hSender := n.hashOf(sender)
	hMe := n.hashOf(me)
	accept := chord.IsBetween(hPred, hSender, hMe)
	if accept {
		n.predecessor = sender
	}
	n.mu.Unlock()

	if !accept {
		return chord.Message{Kind: chord.KindPong, Ok: true}
	}
	n.del.NewPredecessor(me, sender)

	records := n.kv.SelectByArc(&hPred, &hSender)
	if len(records) > 0 {
		if _, err := n.tr.Send(sender, chord.Message{Kind: chord.KindData, From: me, Data: records}); err != nil {
			n.log.Warn("failed to migrate records on notify",
				logging.F("sender", sender), logging.F("err", err.Error()))
		} else {
			n.kv.DeleteByArc(&hPred, &hSender)
			n.del.RecordsMigrated(me, records)
		}
	}
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleIAmYourPredecessor implements the leave-triggered pointer fix a
// departing node's successor receives (spec §4.2.1 step 2).
func (n *Node) handleIAmYourPredecessor(msg chord.Message) chord.Message {
	n.mu.Lock()
	n.predecessor = msg.NodeID
	me := n.id
	n.mu.Unlock()
	n.del.NewPredecessor(me, msg.NodeID)
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleIAmYourSuccessor implements the leave-triggered pointer fix a
// departing node's predecessor receives (spec §4.2.1 step 3).
func (n *Node) handleIAmYourSuccessor(msg chord.Message) chord.Message {
	n.mu.Lock()
	n.successors.InsertFirst(msg.NodeID)
	me := n.id
	n.mu.Unlock()
	n.del.NewSuccessor(me, msg.NodeID)
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleData stores a transferred record batch, used both for leave-time
// store transfer and notify-triggered migration.
func (n *Node) handleData(msg chord.Message) chord.Message {
	if len(msg.Data) > 0 {
		n.kv.Insert(msg.Data)
		n.del.RecordsMigrated(n.id, msg.Data)
	}
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleLeaveNotice implements spec §4.2.6: propagate a Leave notice exactly
// once along the ring so every live node prunes the departed endpoint from
// its successor list.
func (n *Node) handleLeaveNotice(msg chord.Message) chord.Message {
	leaving := msg.NodeID

	n.mu.Lock()
	me := n.id
	succ := n.successors.GetFirst()
	n.successors.Remove(leaving)
	if n.successors.GetFirst() == "" {
		n.successors.PromoteFirstNonEmpty()
	}
	n.mu.Unlock()

	if succ != leaving && succ != "" && succ != me {
		go n.sendFireAndForget(succ, chord.Message{Kind: chord.KindLeave, NodeID: leaving})
	}
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleReqFinger implements the recursive finger-fill walk of spec §4.2.5.
func (n *Node) handleReqFinger(msg chord.Message) chord.Message {
	from := msg.From
	start := msg.FingerStart

	n.mu.Lock()
	me := n.id
	succ := n.successors.GetFirst()
	n.mu.Unlock()

	hMe := n.hashOf(me)
	hSucc := n.hashOf(succ)

	if chord.IsBetween(hMe, start, hSucc) {
		go n.sendFireAndForget(from, chord.Message{Kind: chord.KindResFinger, Owner: succ, FingerStart: start})
	} else {
		go n.sendFireAndForget(succ, chord.Message{Kind: chord.KindReqFinger, From: from, FingerStart: start})
	}
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleResFinger implements the finger-fill continuation of spec §4.2.5.
func (n *Node) handleResFinger(msg chord.Message) chord.Message {
	start := msg.FingerStart
	owner := msg.Owner

	n.mu.Lock()
	n.fingers.UpdateEntry(start, owner)
	next, hasNext := n.fingers.GetNextEntry(start)
	me := n.id
	n.mu.Unlock()

	if hasNext && next.Start != start {
		go n.sendFireAndForget(me, chord.Message{Kind: chord.KindReqFinger, From: me, FingerStart: next.Start})
	}
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// handleLookupReq implements spec §4.2.4's three-tier lookup routing.
func (n *Node) handleLookupReq(msg chord.Message) chord.Message {
	key := msg.Key
	hops := msg.Hops
	corrID := msg.CorrelationID
	hKey := n.hashOf(key)

	n.mu.Lock()
	me := n.id
	pred := n.predecessor
	succ := n.successors.GetFirst()
	coordinator := n.coordinator
	n.mu.Unlock()

	hMe := n.hashOf(me)
	hPred := n.hashOf(pred)
	hSucc := n.hashOf(succ)

	if chord.IsBetween(hPred, hKey, hMe) {
		rec, found := n.kv.SelectByKey(key)
		var records []chord.Record
		if found {
			records = []chord.Record{rec}
		}
		go n.sendFireAndForget(coordinator, chord.Message{
			Kind: chord.KindLookupRes, Key: key, Hops: hops, Found: found,
			Records: records, CorrelationID: corrID,
		})
		return chord.Message{Kind: chord.KindPong, Ok: true}
	}

	if chord.IsBetween(hMe, hKey, hSucc) {
		go func() {
			if _, err := n.tr.Send(succ, chord.Message{
				Kind: chord.KindLookupReq, Key: key, Hops: hops + 1, CorrelationID: corrID,
			}); err != nil {
				n.log.Warn("lookup forward to successor failed", logging.F("err", err.Error()))
				n.sendFireAndForget(coordinator, chord.Message{
					Kind: chord.KindLookupRes, Key: key, Hops: hops, Found: false, CorrelationID: corrID,
				})
			}
		}()
		return chord.Message{Kind: chord.KindPong, Ok: true}
	}

	go n.routeByFingers(key, hKey, hops, corrID, coordinator)
	return chord.Message{Kind: chord.KindPong, Ok: true}
}

// routeByFingers implements spec §4.2.4's finger-shortcut tier: a pairwise
// scan for the bracketing (start_i, start_i+1) arc, falling back to a
// reverse scan over every finger with a known owner if the primary pick
// fails to accept the forward.
func (n *Node) routeByFingers(key string, hKey chord.ID, hops int, corrID, coordinator string) {
	n.mu.Lock()
	m := n.fingers.Len()
	entries := make([]chord.FingerEntry, m)
	for i := 0; i < m; i++ {
		entries[i] = n.fingers.At(i)
	}
	n.mu.Unlock()

	fwd := chord.Message{Kind: chord.KindLookupReq, Key: key, Hops: hops + 1, CorrelationID: corrID}

	primary := ""
	for i := 0; i+1 < m; i++ {
		if entries[i].Owner != "" && chord.IsBetween(entries[i].Start, hKey, entries[i+1].Start) {
			primary = entries[i].Owner
			break
		}
	}
	if primary != "" {
		if _, err := n.tr.Send(primary, fwd); err == nil {
			return
		}
		n.log.Warn("primary finger forward failed, falling back to reverse scan", logging.F("owner", primary))
	}

	for i := m - 1; i >= 0; i-- {
		owner := entries[i].Owner
		if owner == "" || owner == primary {
			continue
		}
		if _, err := n.tr.Send(owner, fwd); err == nil {
			return
		}
	}

	n.sendFireAndForget(coordinator, chord.Message{
		Kind: chord.KindLookupRes, Key: key, Hops: hops, Found: false, CorrelationID: corrID,
	})
}

// resetLocked restores a node to its freshly-constructed, alone-in-the-ring
// state. Caller must hold n.mu.
func (n *Node) resetLocked() {
	n.successors.Clear()
	n.successors.InsertFirst(n.id)
	n.fingers.Clear()
	n.predecessor = n.id
	n.inRing = false
}

// Leave implements spec §4.2.1's graceful leave sequence.
func (n *Node) Leave() error {
	n.mu.Lock()
	me := n.id
	succ := n.successors.GetFirst()
	if succ == "" || succ == me {
		n.resetLocked()
		n.mu.Unlock()
		n.del.Shutdown(me)
		return nil
	}
	pred := n.predecessor
	coordinator := n.coordinator
	n.mu.Unlock()

	records := n.kv.SelectByArc(nil, nil)
	if len(records) > 0 {
		if _, err := n.tr.Send(succ, chord.Message{Kind: chord.KindData, From: me, Data: records}); err != nil {
			n.log.Warn("failed to transfer store on leave",
				logging.F("successor", succ), logging.F("err", err.Error()))
		} else {
			n.del.RecordsMigrated(me, records)
		}
	}

	n.sendFireAndForget(succ, chord.Message{Kind: chord.KindIAmYourPredecessor, NodeID: pred})
	if pred != "" && pred != me {
		n.sendFireAndForget(pred, chord.Message{Kind: chord.KindIAmYourSuccessor, NodeID: succ})
	}
	if coordinator != "" {
		n.sendFireAndForget(coordinator, chord.Message{Kind: chord.KindLeave, NodeID: me})
	}

	n.mu.Lock()
	n.resetLocked()
	n.mu.Unlock()
	n.kv.DeleteAll()
	n.del.Shutdown(me)
	return nil
}
