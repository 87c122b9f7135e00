// Package nanoleaf reads panel state from Nanoleaf controllers over their
// local OpenAPI (port 16021) and keeps the pairing records that make a
// controller pollable.
//
// A controller is paired by holding its power button until the LEDs flash
// and then calling Client.Pair within 30 seconds; the returned auth token
// is stored in the nanoleaf_pairings table. The integration counts as
// configured while at least one pairing exists.
//
// Device IDs are "nanoleaf" followed by the controller serial number. They
// never carry the "hue-" or "switchbot-" prefixes.
package nanoleaf
