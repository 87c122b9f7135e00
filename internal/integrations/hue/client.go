package hue

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/amimof/huego"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// defaultTimeout bounds one bridge request when Config.Timeout is zero.
const defaultTimeout = 5 * time.Second

// LightsAPI is the part of *huego.Bridge the client uses.
type LightsAPI interface {
	GetLightsContext(ctx context.Context) ([]huego.Light, error)
}

// Config holds the bridge connection details.
type Config struct {
	BridgeHost string
	Username   string
	Timeout    time.Duration
}

// Client fetches lights from one bridge.
type Client struct {
	configured bool
	timeout    time.Duration
	api        LightsAPI
}

// NewClient creates a client for the bridge in cfg.
// With an empty host or username the client reports itself not configured.
func NewClient(cfg Config) *Client {
	c := &Client{
		configured: cfg.BridgeHost != "" && cfg.Username != "",
		timeout:    cfg.Timeout,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.configured {
		c.api = huego.New(cfg.BridgeHost, cfg.Username)
	}
	return c
}

// newClientWithAPI is used by tests to substitute the bridge.
func newClientWithAPI(api LightsAPI) *Client {
	return &Client{configured: true, timeout: defaultTimeout, api: api}
}

// IsConfigured reports whether bridge host and username are both set.
func (c *Client) IsConfigured(context.Context) (bool, error) {
	return c.configured, nil
}

// FetchDevices returns a snapshot of every light on the bridge, ordered
// by light ID.
func (c *Client) FetchDevices(ctx context.Context) ([]device.Snapshot, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	lights, err := c.api.GetLightsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBridgeUnavailable, err)
	}

	sort.Slice(lights, func(i, j int) bool { return lights[i].ID < lights[j].ID })

	out := make([]device.Snapshot, 0, len(lights))
	for _, l := range lights {
		out = append(out, ToSnapshot(l))
	}
	return out, nil
}

// ToSnapshot converts one bridge light into a device snapshot.
func ToSnapshot(l huego.Light) device.Snapshot {
	caps := capabilitiesFor(l.Type)
	snap := device.Snapshot{
		ID:           device.HuePrefix + strconv.Itoa(l.ID),
		Name:         l.Name,
		Vendor:       device.VendorHue,
		Model:        l.ModelID,
		Capabilities: caps,
	}
	if l.State == nil {
		return snap
	}

	st := l.State
	snap.Reachable = st.Reachable
	snap.State.On = st.On
	snap.State.Brightness = scale(float64(st.Bri), 254, 100)

	if slices.Contains(caps, "color") {
		snap.State.Color = &device.Color{
			Hue:        scale(float64(st.Hue), 65535, 360),
			Saturation: scale(float64(st.Sat), 254, 100),
			Brightness: snap.State.Brightness,
		}
	}
	if st.Ct > 0 {
		snap.State.ColorTemp = device.Ptr(MiredToKelvin(st.Ct))
	}

	switch {
	case st.Effect == "colorloop":
		snap.State.ColorMode = device.Ptr(device.ColorModeEffect)
	case st.ColorMode == "hs" || st.ColorMode == "xy":
		snap.State.ColorMode = device.Ptr(device.ColorModeHS)
	case st.ColorMode == "ct":
		snap.State.ColorMode = device.Ptr(device.ColorModeCT)
	}
	return snap
}

// MiredToKelvin converts a colour temperature in mireds to Kelvin.
func MiredToKelvin(ct uint16) int {
	if ct == 0 {
		return 0
	}
	return int(math.Round(1e6 / float64(ct)))
}

func capabilitiesFor(lightType string) []string {
	switch lightType {
	case "Extended color light", "Color light":
		return []string{"on_off", "dim", "color", "color_temp"}
	case "Color temperature light":
		return []string{"on_off", "dim", "color_temp"}
	case "Dimmable light":
		return []string{"on_off", "dim"}
	default:
		return []string{"on_off"}
	}
}

// scale maps v from [0, from] onto [0, to], rounding to the nearest integer.
func scale(v, from, to float64) int {
	return int(math.Round(v / from * to))
}
