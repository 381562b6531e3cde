package stun

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTxID(b byte) TransactionID {
	var id TransactionID
	id[0] = b
	return id
}

func TestTableMatchInvokesHandler(t *testing.T) {
	tbl := NewTable()
	id := testTxID(1)

	var got *Message
	done := make(chan struct{})
	tbl.Put(id, func(msg *Message) {
		got = msg
		close(done)
	}, time.Hour, 7, nil, nil)

	handler, ok := tbl.Match(id)
	require.True(t, ok)
	handler(&Message{})
	<-done
	assert.NotNil(t, got)

	// A second Match for the same id fails: the transaction was already
	// removed on first match.
	_, ok = tbl.Match(id)
	assert.False(t, ok)
}

func TestTableMatchUnknownIDFails(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Match(testTxID(9))
	assert.False(t, ok)
}

func TestTableForgetStopsTimer(t *testing.T) {
	tbl := NewTable()
	id := testTxID(2)

	var retransmitted int32
	tbl.Put(id, func(msg *Message) {}, 10*time.Millisecond, 7, func(attempt int) {
		atomic.AddInt32(&retransmitted, 1)
	}, nil)

	tbl.Forget(id)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&retransmitted))
}

func TestTableRetransmitsThenTimesOut(t *testing.T) {
	tbl := NewTable()
	id := testTxID(3)

	var retransmits int32
	timedOut := make(chan struct{})

	tbl.Put(id, func(msg *Message) {}, 5*time.Millisecond, 2, func(attempt int) {
		atomic.AddInt32(&retransmits, 1)
	}, func() {
		close(timedOut)
	})

	select {
	case <-timedOut:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("transaction never timed out")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&retransmits), int32(1))

	_, ok := tbl.Match(id)
	assert.False(t, ok)
}

func TestTableReliableTransportSkipsRetransmit(t *testing.T) {
	tbl := NewTable()
	id := testTxID(4)

	timedOut := make(chan struct{})
	tbl.Put(id, func(msg *Message) {}, 10*time.Millisecond, 0, nil, func() {
		close(timedOut)
	})

	select {
	case <-timedOut:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("reliable transaction never timed out")
	}
}
