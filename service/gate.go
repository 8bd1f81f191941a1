package service

import (
	"sync"
	"time"
)

// TransactionTimeout is the lazily-checked transaction watchdog: a request
// arriving more than this long after the last touch from the owning PID
// finds the gate released, as if the owner had sent ROLLBACK. The gate
// only decides who may run mutating operations: each operation commits its
// own database changes, so neither expiry nor an explicit ROLLBACK undoes
// operations already run inside the transaction.
const TransactionTimeout = 5 * time.Second

// gateState is the transaction gate's own state, distinct from Status:
// gate events decide whether an operation runs at all, before it ever
// produces a reply.
type gateState int

const (
	gateIdle gateState = iota
	gateOpen
)

// gate implements the per-transaction state machine: idle, or open and owned
// by one pid until it ends, rolls back, or the watchdog expires it. All
// state is guarded by mu; now is overridable so watchdog expiry is
// deterministic in tests.
type gate struct {
	mu        sync.Mutex
	state     gateState
	ownerPid  int32
	lastTouch time.Time
	now       func() time.Time
}

func newGate() *gate {
	return &gate{now: time.Now}
}

// admit evaluates a mutating request from pid against the state table. It
// returns ok=false with a status if the caller must receive
// SIMULTANEOUS_ACCESS instead of running the operation. An expired
// transaction is released first; a request from the owner refreshes its
// last touch. admit never opens the gate: the Begin handler does that with
// open.
func (g *gate) admit(pid int32) (ok bool, status Status) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case gateIdle:
		return true, StatusSuccess
	case gateOpen:
		if g.now().Sub(g.lastTouch) > TransactionTimeout {
			// expired: the owning chain is abandoned and the gate released.
			g.state = gateIdle
			g.ownerPid = 0
			return true, StatusSuccess
		}
		if pid != g.ownerPid {
			return false, StatusSimultaneousAccess
		}
		g.touch(pid)
		return true, StatusSuccess
	default:
		return true, StatusSuccess
	}
}

// touch records pid as the current owner at the current time, opening the
// gate if it was idle. The caller must already hold mu.
func (g *gate) touch(pid int32) {
	g.state = gateOpen
	g.ownerPid = pid
	g.lastTouch = g.now()
}

// open opens (or re-opens, if the prior owner timed out) the gate for pid.
// Used by the Begin handler after admit has cleared the request.
func (g *gate) open(pid int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.touch(pid)
}

// close returns the gate to IDLE unconditionally. Used by End/Rollback once
// the caller's ownership has already been established via admit.
func (g *gate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = gateIdle
	g.ownerPid = 0
}

// isOwner reports whether pid currently owns an open transaction, without
// applying the timeout re-evaluation admit does. Used by End/Rollback, which
// per the state table only transition OPEN(owner) -> IDLE when pid == owner.
func (g *gate) isOwner(pid int32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == gateOpen && g.ownerPid == pid
}
