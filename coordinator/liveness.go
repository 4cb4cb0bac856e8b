package coordinator

import "time"

// livenessLoop is spec §4.1's liveness checker: every LivenessInterval, ping
// each known member and remove it on failure — the only authoritative
// garbage-collector for unreachable nodes in the coordinator's view.
// Grounded on johnjansen-torua's health_monitor.go periodic-ticker shape,
// adapted from REST /health polling to a Chord Ping message.
func (c *Coordinator) livenessLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.LivenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.livenessTick()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Coordinator) livenessTick() {
	for _, m := range c.Members() {
		if c.tr.Ping(m) {
			continue
		}
		c.mu.Lock()
		for i, mm := range c.members {
			if mm == m {
				c.members = append(c.members[:i], c.members[i+1:]...)
				if c.cursor > i {
					c.cursor--
				}
				break
			}
		}
		c.appendLogLocked("%s failed periodic liveness check, removed", m)
		c.mu.Unlock()
	}
}
