// Package ratelimit provides advisory accounting of a rolling daily request
// quota for cloud APIs that enforce one (SwitchBot: 10,000 requests/day).
//
// The Limiter never blocks and never errors. Callers ask CanMakeRequest
// before spending budget and RecordRequest for each request they make.
// Only a fraction of the vendor limit (the safety factor) is ever
// considered spendable, leaving headroom for the vendor's own app and for
// estimate drift.
//
// The window is a fixed 24 hour span starting at the first request after
// a reset; it is not aligned to calendar days.
package ratelimit
