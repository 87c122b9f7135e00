package nanoleaf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// defaultTimeout bounds one controller request when Config.Timeout is zero.
const defaultTimeout = 3 * time.Second

// maxResponseBytes caps how much of a controller response is read.
const maxResponseBytes = 1 << 20

// Logger is the logging interface used by the client.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Config holds client settings.
type Config struct {
	// Timeout bounds one controller request. Default: 3s.
	Timeout time.Duration

	// Port is used when pairing without an explicit port. Default: DefaultPort.
	Port int
}

// Client polls every paired controller.
type Client struct {
	store  PairingStore
	http   *http.Client
	port   int
	logger Logger
}

// NewClient creates a client reading pairings from store.
func NewClient(store PairingStore, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	port := cfg.Port
	if port <= 0 {
		port = DefaultPort
	}
	return &Client{
		store:  store,
		http:   &http.Client{Timeout: timeout},
		port:   port,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for per-controller failures.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// IsConfigured reports whether at least one controller is paired.
func (c *Client) IsConfigured(ctx context.Context) (bool, error) {
	pairings, err := c.store.ListPairings(ctx)
	if err != nil {
		return false, fmt.Errorf("listing pairings: %w", err)
	}
	return len(pairings) > 0, nil
}

// FetchDevices queries every paired controller.
//
// A controller that cannot be reached is still reported, as unreachable
// with its stored name, so consumers see it drop offline.
func (c *Client) FetchDevices(ctx context.Context) ([]device.Snapshot, error) {
	pairings, err := c.store.ListPairings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pairings: %w", err)
	}

	out := make([]device.Snapshot, 0, len(pairings))
	for _, p := range pairings {
		info, err := c.getInfo(ctx, p.Host, p.Port, p.AuthToken)
		if err != nil {
			c.logger.Warn("nanoleaf controller unavailable", "device_id", p.DeviceID, "host", p.Host, "error", err)
			out = append(out, unreachableSnapshot(p))
			continue
		}
		out = append(out, info.toSnapshot(p))
	}
	return out, nil
}

// Pair requests an auth token from a controller in pairing mode.
//
// Parameters:
//   - ctx: Context for cancellation
//   - host: Controller IP or hostname
//   - port: Local API port; 0 means the configured port
//   - name: Display name; empty uses the controller's own name
//
// Returns:
//   - Pairing: Ready to save; DeviceID is derived from the serial number
//   - error: ErrPairingRefused if the controller is not in pairing mode
func (c *Client) Pair(ctx context.Context, host string, port int, name string) (Pairing, error) {
	if port == 0 {
		port = c.port
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL(host, port)+"/new", nil)
	if err != nil {
		return Pairing{}, fmt.Errorf("building pairing request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Pairing{}, fmt.Errorf("requesting auth token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return Pairing{}, ErrPairingRefused
	}
	if resp.StatusCode != http.StatusOK {
		return Pairing{}, fmt.Errorf("%w: pairing returned HTTP %d", ErrAPI, resp.StatusCode)
	}

	var body struct {
		AuthToken string `json:"auth_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return Pairing{}, fmt.Errorf("%w: decoding pairing response: %v", ErrAPI, err)
	}
	if body.AuthToken == "" {
		return Pairing{}, fmt.Errorf("%w: empty auth token", ErrAPI)
	}

	info, err := c.getInfo(ctx, host, port, body.AuthToken)
	if err != nil {
		return Pairing{}, fmt.Errorf("reading controller info: %w", err)
	}

	p := Pairing{
		DeviceID:  deviceIDFor(info.SerialNo),
		Name:      name,
		Host:      host,
		Port:      port,
		AuthToken: body.AuthToken,
	}
	if info.SerialNo == "" {
		p.DeviceID = deviceIDFor(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	if p.Name == "" {
		p.Name = info.Name
	}
	return p, nil
}

// panelInfo is the subset of GET /api/v1/{token}/ the hub reads.
type panelInfo struct {
	Name     string `json:"name"`
	SerialNo string `json:"serialNo"`
	Model    string `json:"model"`
	State    struct {
		On struct {
			Value bool `json:"value"`
		} `json:"on"`
		Brightness rangedValue `json:"brightness"`
		Hue        rangedValue `json:"hue"`
		Sat        rangedValue `json:"sat"`
		CT         rangedValue `json:"ct"`
		ColorMode  string      `json:"colorMode"`
	} `json:"state"`
}

type rangedValue struct {
	Value int `json:"value"`
}

func (c *Client) getInfo(ctx context.Context, host string, port int, token string) (*panelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL(host, port)+"/"+token+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrAPI, resp.StatusCode)
	}

	var info panelInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decoding state: %v", ErrAPI, err)
	}
	return &info, nil
}

func (info *panelInfo) toSnapshot(p Pairing) device.Snapshot {
	name := p.Name
	if name == "" {
		name = info.Name
	}
	st := info.State
	snap := device.Snapshot{
		ID:           p.DeviceID,
		Name:         name,
		Vendor:       device.VendorNanoleaf,
		Reachable:    true,
		Model:        info.Model,
		Capabilities: []string{"on_off", "dim", "color", "color_temp", "effect"},
		State: device.State{
			On:         st.On.Value,
			Brightness: st.Brightness.Value,
			Color: &device.Color{
				Hue:        st.Hue.Value,
				Saturation: st.Sat.Value,
				Brightness: st.Brightness.Value,
			},
		},
	}
	if st.CT.Value > 0 {
		snap.State.ColorTemp = device.Ptr(st.CT.Value)
	}
	switch device.ColorMode(st.ColorMode) {
	case device.ColorModeHS, device.ColorModeCT, device.ColorModeEffect:
		snap.State.ColorMode = device.Ptr(device.ColorMode(st.ColorMode))
	}
	return snap
}

func unreachableSnapshot(p Pairing) device.Snapshot {
	return device.Snapshot{
		ID:        p.DeviceID,
		Name:      p.Name,
		Vendor:    device.VendorNanoleaf,
		Reachable: false,
	}
}

func baseURL(host string, port int) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimSuffix(host, "/") + "/api/v1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/api/v1"
}
