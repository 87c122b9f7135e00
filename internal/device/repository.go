package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence operations the orchestrator relies on.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// UpsertDevices records the latest poll result for each snapshot.
	// Room assignment and visibility are never overwritten.
	UpsertDevices(ctx context.Context, snapshots []Snapshot) error

	// LookupEnrichment returns room and group metadata for every known device.
	LookupEnrichment(ctx context.Context) ([]Enrichment, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with migrations applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// UpsertDevices inserts or updates one row per snapshot, keyed by external ID.
//
// The whole batch is written in a single transaction. A new device gets a
// fresh row ID; an existing one keeps its ID, room and hidden flag.
//
// Parameters:
//   - ctx: Context for cancellation
//   - snapshots: Devices to record
//
// Returns:
//   - error: ErrInvalidSnapshot for an unusable snapshot, or a database error
func (r *SQLiteRepository) UpsertDevices(ctx context.Context, snapshots []Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO devices (
			id, external_id, vendor, name, model, capabilities, state,
			reachable, last_seen_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			vendor       = excluded.vendor,
			name         = excluded.name,
			model        = excluded.model,
			capabilities = excluded.capabilities,
			state        = excluded.state,
			reachable    = excluded.reachable,
			last_seen_at = excluded.last_seen_at,
			updated_at   = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, s := range snapshots {
		if s.ID == "" || s.Vendor == "" {
			return fmt.Errorf("%w: id=%q vendor=%q", ErrInvalidSnapshot, s.ID, s.Vendor)
		}

		stateJSON, err := json.Marshal(s.State)
		if err != nil {
			return fmt.Errorf("marshalling state for %s: %w", s.ID, err)
		}
		caps := s.Capabilities
		if caps == nil {
			caps = []string{}
		}
		capsJSON, err := json.Marshal(caps)
		if err != nil {
			return fmt.Errorf("marshalling capabilities for %s: %w", s.ID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(),
			s.ID,
			string(s.Vendor),
			s.Name,
			nullableString(s.Model),
			string(capsJSON),
			string(stateJSON),
			boolToInt(s.Reachable),
			now,
			now,
			now,
		); err != nil {
			return fmt.Errorf("upserting device %s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// LookupEnrichment returns the room, visibility and group memberships of
// every persisted device.
//
// Returns:
//   - []Enrichment: One record per device row, groups ordered by sort order
//   - error: If a query fails
func (r *SQLiteRepository) LookupEnrichment(ctx context.Context) ([]Enrichment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.external_id, d.room_id, r.name, d.hidden
		FROM devices d
		LEFT JOIN rooms r ON r.id = d.room_id
		ORDER BY d.external_id`)
	if err != nil {
		return nil, fmt.Errorf("querying device enrichment: %w", err)
	}
	defer rows.Close()

	var records []Enrichment
	index := make(map[string]int) // row id -> position in records
	for rows.Next() {
		var rowID string
		var e Enrichment
		var roomID, roomName sql.NullString
		var hidden int
		if err := rows.Scan(&rowID, &e.ExternalID, &roomID, &roomName, &hidden); err != nil {
			return nil, fmt.Errorf("scanning device enrichment: %w", err)
		}
		e.RoomID = stringPtr(roomID)
		e.RoomName = stringPtr(roomName)
		e.Hidden = hidden != 0
		e.Groups = []GroupRef{}
		index[rowID] = len(records)
		records = append(records, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device enrichment: %w", err)
	}

	if err := r.attachGroups(ctx, records, index); err != nil {
		return nil, err
	}
	return records, nil
}

// attachGroups fills in group memberships for records keyed by row ID.
func (r *SQLiteRepository) attachGroups(ctx context.Context, records []Enrichment, index map[string]int) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.device_id, g.id, g.name
		FROM device_group_members m
		JOIN device_groups g ON g.id = m.group_id
		ORDER BY g.sort_order, g.name, m.sort_order`)
	if err != nil {
		return fmt.Errorf("querying group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var deviceID string
		var g GroupRef
		if err := rows.Scan(&deviceID, &g.ID, &g.Name); err != nil {
			return fmt.Errorf("scanning group member: %w", err)
		}
		if i, ok := index[deviceID]; ok {
			records[i].Groups = append(records[i].Groups, g)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating group members: %w", err)
	}
	return nil
}

// nullableString returns nil for an empty string so the column stores NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
