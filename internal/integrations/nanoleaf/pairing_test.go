package nanoleaf

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-hub/migrations"
)

func setupTestStore(t *testing.T) *SQLitePairingStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return NewSQLitePairingStore(db.DB)
}

func TestSQLitePairingStore_SaveListDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	p := Pairing{DeviceID: "nanoleafS19A1", Name: "Lounge shapes", Host: "192.168.1.40", AuthToken: "tok"}
	if err := store.SavePairing(ctx, p); err != nil {
		t.Fatalf("SavePairing() error = %v", err)
	}

	got, err := store.ListPairings(ctx)
	if err != nil {
		t.Fatalf("ListPairings() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListPairings() len = %d, want 1", len(got))
	}
	if got[0].Port != DefaultPort {
		t.Errorf("Port = %d, want default %d", got[0].Port, DefaultPort)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	p.AuthToken = "rotated"
	if err := store.SavePairing(ctx, p); err != nil {
		t.Fatalf("SavePairing() replace error = %v", err)
	}
	one, err := store.GetPairing(ctx, p.DeviceID)
	if err != nil {
		t.Fatalf("GetPairing() error = %v", err)
	}
	if one.AuthToken != "rotated" {
		t.Errorf("AuthToken = %q, want rotated", one.AuthToken)
	}

	if err := store.DeletePairing(ctx, p.DeviceID); err != nil {
		t.Fatalf("DeletePairing() error = %v", err)
	}
	if err := store.DeletePairing(ctx, p.DeviceID); !errors.Is(err, ErrPairingNotFound) {
		t.Errorf("second DeletePairing() error = %v, want ErrPairingNotFound", err)
	}
	if _, err := store.GetPairing(ctx, p.DeviceID); !errors.Is(err, ErrPairingNotFound) {
		t.Errorf("GetPairing() after delete error = %v, want ErrPairingNotFound", err)
	}
}

func TestPairing_Validate(t *testing.T) {
	valid := Pairing{DeviceID: "nanoleafX", Host: "10.0.0.2", Port: DefaultPort, AuthToken: "t"}

	tests := []struct {
		name   string
		mutate func(*Pairing)
	}{
		{"missing id", func(p *Pairing) { p.DeviceID = "" }},
		{"hue prefix", func(p *Pairing) { p.DeviceID = "hue-7" }},
		{"switchbot prefix", func(p *Pairing) { p.DeviceID = "switchbot-7" }},
		{"missing host", func(p *Pairing) { p.Host = "" }},
		{"missing token", func(p *Pairing) { p.AuthToken = "" }},
		{"bad port", func(p *Pairing) { p.Port = 70000 }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid pairing: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrInvalidPairing) {
				t.Errorf("Validate() error = %v, want ErrInvalidPairing", err)
			}
		})
	}
}
