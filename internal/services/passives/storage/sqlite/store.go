// Package sqlite provides a SQLite-backed tree storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/hollowspire.game/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/storage"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists passive tree state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func encodeIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal node ids: %w", err)
	}
	return string(encoded), nil
}

func decodeIDs(value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "[]" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal node ids: %w", err)
	}
	return ids, nil
}

// Open opens a SQLite tree store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetTreeState returns the persisted tree for one character.
func (s *Store) GetTreeState(ctx context.Context, characterID string) (storage.TreeStateRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TreeStateRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.TreeStateRecord{}, fmt.Errorf("storage is not configured")
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return storage.TreeStateRecord{}, fmt.Errorf("character id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT character_id,
		        allocated_nodes,
		        available_points,
		        active_keystones,
		        created_at,
		        updated_at
		 FROM tree_states
		 WHERE character_id = ?`,
		characterID,
	)

	var (
		record       storage.TreeStateRecord
		allocatedRaw string
		keystonesRaw string
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(
		&record.CharacterID,
		&allocatedRaw,
		&record.AvailablePoints,
		&keystonesRaw,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.TreeStateRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.TreeStateRecord{}, fmt.Errorf("scan tree state: %w", err)
	}

	allocated, err := decodeIDs(allocatedRaw)
	if err != nil {
		return storage.TreeStateRecord{}, err
	}
	keystones, err := decodeIDs(keystonesRaw)
	if err != nil {
		return storage.TreeStateRecord{}, err
	}
	record.AllocatedNodes = allocated
	record.ActiveKeystones = keystones
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// PutTreeState inserts or replaces the persisted tree for one character.
func (s *Store) PutTreeState(ctx context.Context, record storage.TreeStateRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	characterID := strings.TrimSpace(record.CharacterID)
	if characterID == "" {
		return fmt.Errorf("character id is required")
	}
	if record.AvailablePoints < 0 {
		return fmt.Errorf("available points must not be negative")
	}

	allocated, err := encodeIDs(record.AllocatedNodes)
	if err != nil {
		return err
	}
	keystones, err := encodeIDs(record.ActiveKeystones)
	if err != nil {
		return err
	}

	createdAt := record.CreatedAt.UTC()
	updatedAt := record.UpdatedAt.UTC()
	if createdAt.IsZero() && updatedAt.IsZero() {
		createdAt = time.Now().UTC()
		updatedAt = createdAt
	} else {
		if createdAt.IsZero() {
			createdAt = updatedAt
		}
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO tree_states (
		   character_id,
		   allocated_nodes,
		   available_points,
		   active_keystones,
		   created_at,
		   updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(character_id) DO UPDATE SET
		   allocated_nodes = excluded.allocated_nodes,
		   available_points = excluded.available_points,
		   active_keystones = excluded.active_keystones,
		   updated_at = excluded.updated_at`,
		characterID,
		allocated,
		record.AvailablePoints,
		keystones,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put tree state: %w", err)
	}
	return nil
}

// DeleteTreeState removes the persisted tree for one character. Deleting a
// missing record returns ErrNotFound.
func (s *Store) DeleteTreeState(ctx context.Context, characterID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return fmt.Errorf("character id is required")
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM tree_states WHERE character_id = ?`,
		characterID,
	)
	if err != nil {
		return fmt.Errorf("delete tree state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tree state rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendAllocationEvent appends one journal entry. Seq is assigned by the
// store.
func (s *Store) AppendAllocationEvent(ctx context.Context, event storage.AllocationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	characterID := strings.TrimSpace(event.CharacterID)
	if characterID == "" {
		return fmt.Errorf("character id is required")
	}
	switch event.Action {
	case storage.ActionAllocate, storage.ActionRefund, storage.ActionReset:
	default:
		return fmt.Errorf("unknown journal action %q", event.Action)
	}

	createdAt := event.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO allocation_events (
		   character_id,
		   node_id,
		   action,
		   points_after,
		   created_at
		 ) VALUES (?, ?, ?, ?, ?)`,
		characterID,
		event.NodeID,
		string(event.Action),
		event.PointsAfter,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("append allocation event: %w", err)
	}
	return nil
}

// ListAllocationEvents returns journal entries for one character, newest
// first. A non-positive limit falls back to 50.
func (s *Store) ListAllocationEvents(ctx context.Context, characterID string, limit int) ([]storage.AllocationEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, fmt.Errorf("character id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT seq, character_id, node_id, action, points_after, created_at
		 FROM allocation_events
		 WHERE character_id = ?
		 ORDER BY seq DESC
		 LIMIT ?`,
		characterID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list allocation events: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var events []storage.AllocationEvent
	for rows.Next() {
		var (
			event     storage.AllocationEvent
			action    string
			createdAt int64
		)
		if err := rows.Scan(
			&event.Seq,
			&event.CharacterID,
			&event.NodeID,
			&action,
			&event.PointsAfter,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan allocation event: %w", err)
		}
		event.Action = storage.Action(action)
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocation events: %w", err)
	}
	return events, nil
}

var _ storage.TreeStore = (*Store)(nil)
