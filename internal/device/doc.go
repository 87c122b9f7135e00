// Package device holds the vendor-neutral device model shared by every
// integration, the in-memory snapshot cache, and the SQLite repository that
// persists poll results and supplies room/group enrichment.
//
// # Key Types
//
//   - Snapshot: last-known normalised view of one device
//   - State: on/off, brightness, tilt, colour and colour temperature
//   - Cache: ID-keyed store of snapshots with per-device change detection
//   - EnrichedDevice: a Snapshot joined with its room and groups
//   - SQLiteRepository: UpsertDevices and LookupEnrichment
//
// # Thread Safety
//
// Cache is NOT synchronised. The orchestrator serialises every access with
// its own mutex. SQLiteRepository is safe for concurrent use.
//
// # Usage
//
//	cache := device.NewCache()
//	changed := cache.UpdateDevices(snapshots)
//	if len(changed) > 0 {
//	    records, _ := repo.LookupEnrichment(ctx)
//	    enriched := device.Enrich(changed, records)
//	}
package device
