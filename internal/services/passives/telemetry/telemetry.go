// Package telemetry journals tree mutations for replay and analysis.
//
// The journal is the canonical record of allocation activity. It is written
// after a mutation commits, so journal faults must never unwind gameplay
// state; callers log append errors and move on.
package telemetry

import (
	"context"
	"time"

	"github.com/louisbranch/hollowspire.game/internal/services/passives/storage"
)

// Emitter appends allocation events to the journal. A nil emitter or an
// emitter without a store silently drops events, which keeps storage
// optional for read-only deployments.
type Emitter struct {
	store storage.TreeStore
	clock func() time.Time
}

// NewEmitter wires an emitter to a store. A nil store produces a no-op
// emitter.
func NewEmitter(store storage.TreeStore) *Emitter {
	return &Emitter{store: store, clock: time.Now}
}

// Emit appends one journal entry, stamping the current time when the event
// carries none.
func (e *Emitter) Emit(ctx context.Context, event storage.AllocationEvent) error {
	if e == nil || e.store == nil {
		return nil
	}
	if event.CreatedAt.IsZero() {
		clock := e.clock
		if clock == nil {
			clock = time.Now
		}
		event.CreatedAt = clock().UTC()
	}
	return e.store.AppendAllocationEvent(ctx, event)
}

// Allocation journals a successful node allocation.
func (e *Emitter) Allocation(ctx context.Context, characterID, nodeID string, pointsAfter int) error {
	return e.Emit(ctx, storage.AllocationEvent{
		CharacterID: characterID,
		NodeID:      nodeID,
		Action:      storage.ActionAllocate,
		PointsAfter: pointsAfter,
	})
}

// Refund journals a successful node refund.
func (e *Emitter) Refund(ctx context.Context, characterID, nodeID string, pointsAfter int) error {
	return e.Emit(ctx, storage.AllocationEvent{
		CharacterID: characterID,
		NodeID:      nodeID,
		Action:      storage.ActionRefund,
		PointsAfter: pointsAfter,
	})
}

// Reset journals a full tree reset.
func (e *Emitter) Reset(ctx context.Context, characterID string, pointsAfter int) error {
	return e.Emit(ctx, storage.AllocationEvent{
		CharacterID: characterID,
		Action:      storage.ActionReset,
		PointsAfter: pointsAfter,
	})
}
