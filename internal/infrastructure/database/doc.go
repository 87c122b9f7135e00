// Package database provides SQLite database connectivity for Gray Logic Hub.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Forward-only schema migrations from an embedded filesystem
//   - Connection lifecycle and health checks
//
// The hub's tables hold the persisted side of the device model: rooms,
// groups and the last polled snapshot of every device (used to enrich the
// live cache), plus Nanoleaf pairings.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
package database
