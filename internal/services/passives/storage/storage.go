// Package storage defines persistence contracts for passive tree state.
package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/hollowspire.game/internal/platform/errors"
)

// ErrNotFound indicates a requested tree record is missing. It carries
// CodeNotFound so transport layers can map it without unwrapping.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "tree state not found")

// Action labels one entry in the allocation journal.
type Action string

// Journal actions.
const (
	ActionAllocate Action = "allocate"
	ActionRefund   Action = "refund"
	ActionReset    Action = "reset"
)

// TreeStateRecord stores one character's persisted passive tree.
type TreeStateRecord struct {
	CharacterID     string
	AllocatedNodes  []string
	AvailablePoints int
	ActiveKeystones []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AllocationEvent stores one append-only journal entry. Seq is assigned by
// the store on append. NodeID is empty for reset events.
type AllocationEvent struct {
	Seq         int64
	CharacterID string
	NodeID      string
	Action      Action
	PointsAfter int
	CreatedAt   time.Time
}

// TreeStore persists passive tree state and its allocation journal.
type TreeStore interface {
	GetTreeState(ctx context.Context, characterID string) (TreeStateRecord, error)
	PutTreeState(ctx context.Context, record TreeStateRecord) error
	DeleteTreeState(ctx context.Context, characterID string) error
	AppendAllocationEvent(ctx context.Context, event AllocationEvent) error
	ListAllocationEvents(ctx context.Context, characterID string, limit int) ([]AllocationEvent, error)
}
