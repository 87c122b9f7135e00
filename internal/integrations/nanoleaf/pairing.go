package nanoleaf

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// DefaultPort is the controller's local API port.
const DefaultPort = 16021

// Pairing is one authorised controller.
type Pairing struct {
	DeviceID  string    `json:"deviceId"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	AuthToken string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the pairing is usable and its ID does not collide with
// another vendor's ID space.
func (p Pairing) Validate() error {
	switch {
	case p.DeviceID == "":
		return fmt.Errorf("%w: device id is required", ErrInvalidPairing)
	case device.HasReservedPrefix(p.DeviceID):
		return fmt.Errorf("%w: device id %q uses a reserved prefix", ErrInvalidPairing, p.DeviceID)
	case p.Host == "":
		return fmt.Errorf("%w: host is required", ErrInvalidPairing)
	case p.AuthToken == "":
		return fmt.Errorf("%w: auth token is required", ErrInvalidPairing)
	case p.Port < 0 || p.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidPairing, p.Port)
	}
	return nil
}

// PairingStore lists the controllers to poll.
type PairingStore interface {
	ListPairings(ctx context.Context) ([]Pairing, error)
}

// SQLitePairingStore persists pairings in the nanoleaf_pairings table.
type SQLitePairingStore struct {
	db *sql.DB
}

// NewSQLitePairingStore creates a store over an open, migrated database.
func NewSQLitePairingStore(db *sql.DB) *SQLitePairingStore {
	return &SQLitePairingStore{db: db}
}

// SavePairing inserts or replaces a pairing.
//
// Parameters:
//   - ctx: Context for cancellation
//   - p: Pairing to store; Port defaults to DefaultPort when zero
//
// Returns:
//   - error: ErrInvalidPairing if validation fails, or a database error
func (s *SQLitePairingStore) SavePairing(ctx context.Context, p Pairing) error {
	if p.Port == 0 {
		p.Port = DefaultPort
	}
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nanoleaf_pairings (device_id, name, host, port, auth_token)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			name       = excluded.name,
			host       = excluded.host,
			port       = excluded.port,
			auth_token = excluded.auth_token`,
		p.DeviceID, p.Name, p.Host, p.Port, p.AuthToken,
	)
	if err != nil {
		return fmt.Errorf("saving pairing %s: %w", p.DeviceID, err)
	}
	return nil
}

// ListPairings returns every pairing ordered by device ID.
func (s *SQLitePairingStore) ListPairings(ctx context.Context) ([]Pairing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT device_id, name, host, port, auth_token, created_at
		FROM nanoleaf_pairings
		ORDER BY device_id`)
	if err != nil {
		return nil, fmt.Errorf("querying pairings: %w", err)
	}
	defer rows.Close()

	var out []Pairing
	for rows.Next() {
		var p Pairing
		var createdAt string
		if err := rows.Scan(&p.DeviceID, &p.Name, &p.Host, &p.Port, &p.AuthToken, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning pairing: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			p.CreatedAt = t
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pairings: %w", err)
	}
	return out, nil
}

// DeletePairing removes a pairing.
// Returns ErrPairingNotFound if no pairing has that ID.
func (s *SQLitePairingStore) DeletePairing(ctx context.Context, deviceID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nanoleaf_pairings WHERE device_id = ?`, deviceID)
	if err != nil {
		return fmt.Errorf("deleting pairing %s: %w", deviceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrPairingNotFound
	}
	return nil
}

// GetPairing returns one pairing.
func (s *SQLitePairingStore) GetPairing(ctx context.Context, deviceID string) (Pairing, error) {
	var p Pairing
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, name, host, port, auth_token, created_at
		FROM nanoleaf_pairings WHERE device_id = ?`, deviceID,
	).Scan(&p.DeviceID, &p.Name, &p.Host, &p.Port, &p.AuthToken, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Pairing{}, ErrPairingNotFound
		}
		return Pairing{}, fmt.Errorf("querying pairing %s: %w", deviceID, err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		p.CreatedAt = t
	}
	return p, nil
}

// deviceIDFor derives the published ID from a controller serial number.
func deviceIDFor(serial string) string {
	return "nanoleaf" + strings.ToUpper(strings.TrimSpace(serial))
}
