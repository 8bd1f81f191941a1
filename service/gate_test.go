package service

import (
	"testing"
	"time"
)

func TestGateStandaloneMutatingOp(t *testing.T) {
	t.Parallel()
	g := newGate()

	ok, status := g.admit(100)
	if !ok || status != StatusSuccess {
		t.Fatalf("admit() = (%v, %v), want (true, SUCCESS) from IDLE", ok, status)
	}
}

func TestGateSimultaneousAccess(t *testing.T) {
	t.Parallel()
	g := newGate()
	g.open(100)

	ok, status := g.admit(200)
	if ok || status != StatusSimultaneousAccess {
		t.Fatalf("admit() by non-owner = (%v, %v), want (false, SIMULTANEOUS_ACCESS)", ok, status)
	}
	if !g.isOwner(100) {
		t.Error("gate ownership changed after a rejected simultaneous request")
	}
}

func TestGateSameOwnerTouchesTransaction(t *testing.T) {
	t.Parallel()
	g := newGate()
	g.open(100)

	ok, status := g.admit(100)
	if !ok || status != StatusSuccess {
		t.Fatalf("admit() by owner = (%v, %v), want (true, SUCCESS)", ok, status)
	}
	if !g.isOwner(100) {
		t.Error("owner lost ownership after touching its own transaction")
	}
}

func TestGateWatchdogImplicitRollback(t *testing.T) {
	t.Parallel()
	g := newGate()
	fake := time.Now()
	g.now = func() time.Time { return fake }
	g.open(100)

	fake = fake.Add(TransactionTimeout + time.Second)

	ok, status := g.admit(200)
	if !ok || status != StatusSuccess {
		t.Fatalf("admit() after timeout = (%v, %v), want (true, SUCCESS) as if rolled back", ok, status)
	}
	if g.isOwner(100) {
		t.Error("prior owner still holds the gate after watchdog expiry")
	}
}

func TestGateEndRequiresOwner(t *testing.T) {
	t.Parallel()
	g := newGate()
	g.open(100)

	if g.isOwner(200) {
		t.Fatal("non-owner reported as owner")
	}
	if !g.isOwner(100) {
		t.Fatal("owner not reported as owner")
	}
	g.close()
	if g.isOwner(100) {
		t.Error("gate still OPEN after close()")
	}
}
