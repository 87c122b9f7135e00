// Package switchbot reads device state from the SwitchBot cloud API v1.1.
//
// Every request is signed: the sign header is
// base64(HMAC-SHA256(secret, token + t + nonce)) where t is the Unix time
// in milliseconds and nonce is a random UUID.
//
// One poll costs one device-list call plus one status call per supported
// physical device. The client does not account for quota itself; callers
// wrap it with a ratelimit.Limiter (see poller.QuotaSource).
//
// Shades report their openness as brightness (0 closed, 100 open). Blind
// Tilt slats report their raw position as brightness, where 50 is
// horizontal, plus a TiltPosition bucket.
package switchbot
