// Package orchestrator ties the vendor pollers to the device cache and to
// whoever is watching.
//
// Polling is demand driven: ClientConnected and ClientDisconnected keep a
// reference count, and the three pollers run only while it is above zero.
// Each poll result is merged into the cache; the changed subset and the
// full list are enriched with room and group metadata from the repository
// and handed to the registered ChangeFunc. Results are also upserted to
// the repository on a background goroutine whose failures are only logged.
//
// When an integration loses its configuration (credentials removed, last
// Nanoleaf pairing deleted) its devices are evicted from the cache and
// consumers are notified with an empty change set.
//
// Usage:
//
//	orch, err := orchestrator.New(orchestrator.Config{
//	    Hue:        hueClient,
//	    Nanoleaf:   nanoleafClient,
//	    SwitchBot:  switchbotClient,
//	    Repository: device.NewSQLiteRepository(db.DB),
//	})
//	fanout := notify.NewFanout(notify.SinkFunc(hub.BroadcastDevices), statePublisher)
//	orch.SetOnDeviceChange(fanout.Notify)
//	orch.ClientConnected()
//	defer orch.Stop()
package orchestrator
