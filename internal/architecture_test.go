package internal

import (
	"testing"

	"github.com/kcmvp/archunit"
)

func TestArchitecture(t *testing.T) {
	core := archunit.Packages("core", []string{
		".../internal/device/...",
		".../internal/ratelimit/...",
		".../internal/poller/...",
	})
	orchestrator := archunit.Packages("orchestrator", []string{".../internal/orchestrator/..."})
	integrations := archunit.Packages("integrations", []string{".../internal/integrations/..."})
	infrastructure := archunit.Packages("infrastructure", []string{".../internal/infrastructure/..."})
	notify := archunit.Packages("notify", []string{".../internal/notify/..."})
	api := archunit.Packages("api", []string{".../internal/api/..."})

	check := func(rule string, err error) {
		t.Helper()
		if err != nil {
			t.Errorf("Architecture violation: %s: %v", rule, err)
		}
	}

	// The core knows nothing about who polls it or who listens.
	check("core depends on orchestrator", core.ShouldNotReferLayers(orchestrator))
	check("core depends on integrations", core.ShouldNotReferLayers(integrations))
	check("core depends on notify", core.ShouldNotReferLayers(notify))
	check("core depends on api", core.ShouldNotReferLayers(api))

	// Vendor clients are plain sources.
	check("integrations depend on orchestrator", integrations.ShouldNotReferLayers(orchestrator))
	check("integrations depend on notify", integrations.ShouldNotReferLayers(notify))
	check("integrations depend on api", integrations.ShouldNotReferLayers(api))

	// The orchestrator sees sources and sinks only through interfaces.
	check("orchestrator depends on integrations", orchestrator.ShouldNotReferLayers(integrations))
	check("orchestrator depends on infrastructure", orchestrator.ShouldNotReferLayers(infrastructure))
	check("orchestrator depends on notify", orchestrator.ShouldNotReferLayers(notify))
	check("orchestrator depends on api", orchestrator.ShouldNotReferLayers(api))

	check("infrastructure depends on core", infrastructure.ShouldNotReferLayers(core))
	check("infrastructure depends on orchestrator", infrastructure.ShouldNotReferLayers(orchestrator))
	check("infrastructure depends on notify", infrastructure.ShouldNotReferLayers(notify))
	check("infrastructure depends on api", infrastructure.ShouldNotReferLayers(api))

	check("notify depends on orchestrator", notify.ShouldNotReferLayers(orchestrator))
	check("notify depends on api", notify.ShouldNotReferLayers(api))
}

func TestLayersPresent(t *testing.T) {
	for _, pattern := range []string{
		".../internal/orchestrator",
		".../internal/poller",
		".../internal/ratelimit",
		".../internal/notify",
	} {
		if len(archunit.Packages(pattern, []string{pattern}).Packages()) == 0 {
			t.Errorf("no package found for %s", pattern)
		}
	}
}
