// Package poller drives vendor integrations on fixed schedules.
//
// A Poller owns one Source (an IsConfigured check and a FetchDevices call)
// and runs it once on Start and then every Interval after the previous
// cycle completes. TriggerImmediate resets the phase: the pending cycle is
// cancelled, one runs now, and the next follows one interval later.
//
// Every Start opens a generation. Stop ends it, so a cycle that was in
// flight when Stop was called never delivers its result.
//
// QuotaSource adapts a cloud source with a daily request budget (SwitchBot)
// by pre-charging a ratelimit.Limiter before each fetch.
//
// Default schedules:
//
//	Hue        2.5 s   local bridge, unlimited
//	Nanoleaf   4 s     local panels, unlimited
//	SwitchBot  120 s   cloud API, 10,000 requests/day at 0.8 safety
package poller
