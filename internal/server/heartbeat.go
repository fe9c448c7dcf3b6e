// Package server runs the background timers that reclaim resources: a
// heartbeat sweep that terminates half-open connections and a reaper that
// expires idle rooms and stale dissolution records.
package server

import (
	"log"
	"time"
)

// runHeartbeat pings every connection at the configured interval and
// terminates any connection that never answered the previous probe.
func (reg *Registry) runHeartbeat() {
	ticker := time.NewTicker(reg.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-reg.ctx.Done():
			return
		case <-ticker.C:
			reg.sweepConnections()
		}
	}
}

func (reg *Registry) sweepConnections() {
	for _, c := range reg.clientSnapshot() {
		if !c.alive.Swap(false) {
			log.Printf("Client %s missed heartbeat; terminating connection", c.id)
			c.terminate()
			continue
		}
		c.ping()
	}
}

// runReaper periodically deletes rooms idle past the TTL and purges expired
// dissolution cooldowns.
func (reg *Registry) runReaper() {
	ticker := time.NewTicker(reg.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-reg.ctx.Done():
			return
		case <-ticker.C:
			if removed := reg.Reap(time.Now()); removed > 0 {
				log.Printf("Reaper removed %d idle rooms; %d rooms remain", removed, reg.RoomCount())
			}
		}
	}
}
