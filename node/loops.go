package node

import (
	"time"

	"github.com/chordring/chord"
	"github.com/chordring/chord/logging"
)

// stabilizeLoop runs spec §4.2.3's periodic stabilization protocol every
// StabilizeInterval.
func (n *Node) stabilizeLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.StabilizeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.stabilizeTick()
		case <-n.stopCh:
			return
		}
	}
}

// stabilizeTick is a single stabilization pass. It is a no-op when the node
// is alone in the ring, per spec §8's boundary behavior.
func (n *Node) stabilizeTick() {
	n.mu.Lock()
	me := n.id
	first := n.successors.GetFirst()
	n.mu.Unlock()
	if first == "" || first == me {
		return
	}

	n.mu.Lock()
	entries := make([]string, n.successors.Len())
	for i := range entries {
		entries[i] = n.successors.Get(i)
	}
	n.mu.Unlock()

	alive := make([]string, 0, len(entries))
	for _, e := range entries {
		if e == "" {
			continue
		}
		if e == me || n.tr.Ping(e) {
			alive = append(alive, e)
			continue
		}
		n.log.Warn("successor list entry unreachable, dropping", logging.F("entry", e))
	}

	n.mu.Lock()
	n.successors.Clear()
	for i, e := range alive {
		if i >= n.successors.Len() {
			break
		}
		n.successors.Set(i, e)
	}
	if n.successors.GetFirst() == "" {
		n.successors.PromoteFirstNonEmpty()
	}
	succ := n.successors.GetFirst()
	n.mu.Unlock()

	if succ == "" || succ == me {
		return
	}

	candidates, err := n.tr.GetSuccessors(succ)
	if err != nil {
		n.log.Warn("failed to fetch successor's successor list",
			logging.F("successor", succ), logging.F("err", err.Error()))
	} else {
		verified := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if c == "" || c == me {
				continue
			}
			if c == succ || n.tr.Ping(c) {
				verified = append(verified, c)
			}
		}
		n.mu.Lock()
		n.successors.MergeFrom(me, verified)
		n.mu.Unlock()
	}

	n.sendFireAndForget(succ, chord.Message{Kind: chord.KindNotify, Sender: me})
}

// fingerLoop runs spec §4.2.5's periodic finger-fill kickoff every
// FingerInterval.
func (n *Node) fingerLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.FingerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.fingerTick()
		case <-n.stopCh:
			return
		}
	}
}

func (n *Node) fingerTick() {
	n.mu.Lock()
	me := n.id
	inRing := n.inRing
	start := n.fingers.At(0).Start
	n.mu.Unlock()
	if !inRing {
		return
	}
	n.sendFireAndForget(me, chord.Message{Kind: chord.KindReqFinger, From: me, FingerStart: start})
}
