// Package hue reads light state from a Philips Hue bridge over its local
// REST API using github.com/amimof/huego, and normalises it into
// device.Snapshot values with "hue-<light id>" IDs.
//
// Ranges are converted to the vendor-neutral model:
//
//	bri  0-254     -> brightness 0-100
//	hue  0-65535   -> colour hue 0-360
//	sat  0-254     -> saturation 0-100
//	ct   mireds    -> colour temperature Kelvin (1,000,000 / ct)
//
// The bridge reports "xy" for lights driven by CIE coordinates; these are
// reported as colour mode "hs" since the bridge also keeps hue/sat current.
package hue
