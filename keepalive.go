package ice

import istun "github.com/lanikai/ice/internal/stun"

// sendKeepalives fires a STUN Binding indication on every component's
// selected pair, per spec §4.7 (Tr timer). Best-effort: a send failure is
// logged at Debug and otherwise ignored, matching the resolved open
// question that keepalives never surface as component errors.
func (a *Agent) sendKeepalives() {
	for _, s := range a.Streams() {
		for _, c := range s.Components() {
			p := c.SelectedPair()
			if p == nil {
				continue
			}
			msg, err := istun.BuildBindingIndication()
			if err != nil {
				log.Debug("keepalive build failed: %s", err)
				continue
			}
			if _, err := p.Local.base.SendMessages(p.Remote.Addr, [][]byte{msg.Raw}); err != nil {
				log.Debug("keepalive send failed on %s: %s", p, err)
			}
		}
	}
}
