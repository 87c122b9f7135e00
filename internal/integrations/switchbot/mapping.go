package switchbot

import (
	"math"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// kind groups SwitchBot device types that normalise the same way.
type kind int

const (
	kindSwitch kind = iota // Bot, Plug, Plug Mini
	kindLight              // Color Bulb, Strip Light, Ceiling Light
	kindShade              // Curtain, Curtain3, Roller Shade
	kindTilt               // Blind Tilt
)

var supportedTypes = map[string]kind{
	"Bot":               kindSwitch,
	"Plug":              kindSwitch,
	"Plug Mini (US)":    kindSwitch,
	"Plug Mini (JP)":    kindSwitch,
	"Color Bulb":        kindLight,
	"Strip Light":       kindLight,
	"Ceiling Light":     kindLight,
	"Ceiling Light Pro": kindLight,
	"Curtain":           kindShade,
	"Curtain3":          kindShade,
	"Roller Shade":      kindShade,
	"Blind Tilt":        kindTilt,
}

func kindOf(deviceType string) (kind, bool) {
	k, ok := supportedTypes[deviceType]
	return k, ok
}

func capabilitiesOf(k kind, deviceType string) []string {
	switch k {
	case kindLight:
		if strings.HasPrefix(deviceType, "Ceiling Light") {
			return []string{"on_off", "dim", "color_temp"}
		}
		return []string{"on_off", "dim", "color", "color_temp"}
	case kindShade:
		return []string{"open_close", "position"}
	case kindTilt:
		return []string{"open_close", "position", "tilt"}
	default:
		return []string{"on_off"}
	}
}

func baseSnapshot(d listedDevice, k kind) device.Snapshot {
	return device.Snapshot{
		ID:           device.SwitchBotPrefix + d.DeviceID,
		Name:         d.DeviceName,
		Vendor:       device.VendorSwitchBot,
		Model:        d.DeviceType,
		Capabilities: capabilitiesOf(k, d.DeviceType),
	}
}

// bestEffortSnapshot describes a listed device whose status is unknown.
func bestEffortSnapshot(d listedDevice, k kind) device.Snapshot {
	return baseSnapshot(d, k)
}

func toSnapshot(d listedDevice, k kind, st deviceStatus) device.Snapshot {
	snap := baseSnapshot(d, k)
	snap.Reachable = true

	switch k {
	case kindSwitch:
		snap.State.On = st.Power == "on"
		if snap.State.On {
			snap.State.Brightness = 100
		}

	case kindLight:
		snap.State.On = st.Power == "on"
		snap.State.Brightness = clampPercent(st.Brightness)
		if c, ok := parseRGB(st.Color); ok && !strings.HasPrefix(d.DeviceType, "Ceiling Light") {
			c.Brightness = snap.State.Brightness
			snap.State.Color = &c
		}
		if st.ColorTemperature > 0 {
			snap.State.ColorTemp = device.Ptr(st.ColorTemperature)
		}

	case kindShade:
		// slidePosition: 0 fully open, 100 fully closed.
		open := 100 - clampPercent(st.SlidePosition)
		snap.State.Brightness = open
		snap.State.On = open > 0

	case kindTilt:
		pos := clampPercent(st.SlidePosition)
		tilt := TiltFromPosition(pos)
		snap.State.Brightness = pos
		snap.State.TiltPosition = &tilt
		snap.State.On = tilt != device.TiltClosedDown && tilt != device.TiltClosedUp
	}
	return snap
}

// TiltFromPosition buckets a Blind Tilt position (0 slats down, 50
// horizontal, 100 slats up) into one of five tilt positions.
func TiltFromPosition(pos int) device.TiltPosition {
	switch {
	case pos <= 12:
		return device.TiltClosedDown
	case pos <= 37:
		return device.TiltHalfDown
	case pos <= 62:
		return device.TiltOpen
	case pos <= 87:
		return device.TiltHalfUp
	default:
		return device.TiltClosedUp
	}
}

// parseRGB converts "r:g:b" (0-255 each) into hue/saturation.
func parseRGB(s string) (device.Color, bool) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return device.Color{}, false
	}
	var rgb [3]float64
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return device.Color{}, false
		}
		rgb[i] = float64(v) / 255
	}

	r, g, b := rgb[0], rgb[1], rgb[2]
	hi := math.Max(r, math.Max(g, b))
	lo := math.Min(r, math.Min(g, b))
	delta := hi - lo

	var h float64
	switch {
	case delta == 0:
		h = 0
	case hi == r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case hi == g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}

	var sat float64
	if hi > 0 {
		sat = delta / hi
	}

	return device.Color{
		Hue:        int(math.Round(h)) % 360,
		Saturation: int(math.Round(sat * 100)),
	}, true
}

func clampPercent(v int) int {
	return min(max(v, 0), 100)
}
