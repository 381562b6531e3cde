package stun

import (
	"sync"
	"time"
)

// Handler processes a STUN response matched to the transaction id of a
// request this package sent. Adapted from the teacher's
// internal/ice/base.go transactionHandlers map.
type Handler func(msg *Message)

// Table is a STUN transaction table keyed by 96-bit transaction id (spec
// §4.3). An Agent owns a single Table shared by all of its streams and
// components; entries are added when
// a request is sent and removed when a response arrives, the pair/discovery/
// refresh that owns the transaction is cancelled, or retransmission gives up.
type Table struct {
	mu sync.Mutex
	m  map[TransactionID]*Transaction
}

// Transaction tracks one outstanding request.
type Transaction struct {
	ID      TransactionID
	handler Handler

	mu          sync.Mutex
	retransmits int
	rto         time.Duration
	floor       time.Duration
	timer       *time.Timer
	onTimeout   func()
	done        bool
}

// NewTable creates an empty transaction table.
func NewTable() *Table {
	return &Table{m: make(map[TransactionID]*Transaction)}
}

// Put registers a transaction, arming its retransmission timer. rto is the
// initial retransmission timeout (spec §4.3: Ta*(#Waiting+#InProgress),
// floored at 500ms reliable / 100ms unreliable); maxRetransmits is 7 by
// default for classic STUN, 0 (no retransmission) for reliable transports.
func (t *Table) Put(id TransactionID, handler Handler, rto time.Duration, maxRetransmits int, retransmit func(attempt int), onTimeout func()) *Transaction {
	tx := &Transaction{ID: id, handler: handler, rto: rto, floor: rto, onTimeout: onTimeout}

	t.mu.Lock()
	t.m[id] = tx
	t.mu.Unlock()

	if maxRetransmits > 0 {
		tx.armRetransmit(maxRetransmits, retransmit, func() {
			t.Forget(id)
			if onTimeout != nil {
				onTimeout()
			}
		})
	} else {
		// Reliable transports: one long timeout, no retransmission (spec §4.3).
		tx.timer = time.AfterFunc(rto, func() {
			t.Forget(id)
			if onTimeout != nil {
				onTimeout()
			}
		})
	}
	return tx
}

func (tx *Transaction) armRetransmit(maxRetransmits int, retransmit func(attempt int), onGiveUp func()) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return
	}
	attempt := tx.retransmits
	tx.timer = time.AfterFunc(tx.rto, func() {
		tx.mu.Lock()
		if tx.done {
			tx.mu.Unlock()
			return
		}
		tx.retransmits++
		n := tx.retransmits
		tx.rto *= 2
		tx.mu.Unlock()

		if n >= maxRetransmits {
			onGiveUp()
			return
		}
		if retransmit != nil {
			retransmit(n)
		}
		tx.armRetransmit(maxRetransmits, retransmit, onGiveUp)
	})
	_ = attempt
}

// Match looks up the transaction for an inbound response. If found, the
// transaction is removed from the table (it has reached a terminal state)
// and its handler is returned for the caller to invoke with the response.
// A response with no matching id returns (nil, false); spec §4.3 says this
// "does not error the session but is offered to sibling agents."
func (t *Table) Match(id TransactionID) (Handler, bool) {
	t.mu.Lock()
	tx, ok := t.m[id]
	if ok {
		delete(t.m, id)
	}
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	tx.stop()
	return tx.handler, true
}

// Forget removes a transaction without invoking its handler, used when the
// owning pair/discovery/refresh is cancelled (spec §4.3).
func (t *Table) Forget(id TransactionID) {
	t.mu.Lock()
	tx, ok := t.m[id]
	if ok {
		delete(t.m, id)
	}
	t.mu.Unlock()
	if ok {
		tx.stop()
	}
}

func (tx *Transaction) stop() {
	tx.mu.Lock()
	tx.done = true
	timer := tx.timer
	tx.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

// Len reports the number of outstanding transactions. The check engine's
// RTO formula does not use it; it counts Waiting and InProgress pairs
// directly.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}
