package ice

import (
	"time"

	"github.com/lanikai/ice/internal/turnclient"
)

// turnRefreshInterval is how often allocations are refreshed, well inside
// the 10-minute default TURN lifetime (spec §4.2/§12).
const turnRefreshInterval = 3 * time.Minute

// turnAllocationInfo tracks one live allocation for periodic refresh and
// for forget_relays teardown.
type turnAllocationInfo struct {
	server  *TurnServer
	alloc   *turnclient.Allocation
	forgot  bool
}

// refreshAllocations sends a Refresh for every live TURN allocation this
// agent holds. Failures are logged and the allocation is left in place;
// the next periodic tick will try again (spec §4.2 doesn't mandate giving
// up after one failed refresh, unlike connectivity checks).
func (a *Agent) refreshAllocations() {
	a.mu.RLock()
	infos := make([]*turnAllocationInfo, 0, len(a.allocations))
	for _, info := range a.allocations {
		infos = append(infos, info)
	}
	a.mu.RUnlock()

	for _, info := range infos {
		if info.forgot {
			continue
		}
		if err := info.alloc.Refresh(10 * time.Minute); err != nil {
			log.Warn("TURN refresh failed for %s: %s", info.server.Address, err)
		}
	}
}

// ForgetRelays releases every TURN allocation this agent holds without
// waiting for the server's acknowledgment (spec §12 "forget_relays
// fire-and-forget refresh"): each allocation is sent a zero-lifetime
// Refresh to deallocate server-side state, then the local client and
// socket are closed immediately rather than waiting for a response.
func (a *Agent) ForgetRelays() {
	a.mu.Lock()
	infos := make([]*turnAllocationInfo, 0, len(a.allocations))
	for k, info := range a.allocations {
		info.forgot = true
		infos = append(infos, info)
		delete(a.allocations, k)
	}
	a.mu.Unlock()

	for _, info := range infos {
		go func(info *turnAllocationInfo) {
			_ = info.alloc.Refresh(0)
			_ = info.alloc.Close()
		}(info)
	}
}
