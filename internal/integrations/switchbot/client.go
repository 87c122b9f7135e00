package switchbot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// DefaultBaseURL is the SwitchBot cloud API root.
const DefaultBaseURL = "https://api.switch-bot.com"

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
	statusSuccess    = 100
)

// Logger is the logging interface used by the client.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Config holds cloud credentials and transport settings.
type Config struct {
	Token   string
	Secret  string
	BaseURL string
	Timeout time.Duration
}

// Client talks to the SwitchBot cloud.
type Client struct {
	token   string
	secret  string
	baseURL string
	http    *http.Client
	logger  Logger

	now   func() time.Time
	nonce func() string
}

// NewClient creates a cloud client.
// With an empty token or secret the client reports itself not configured.
func NewClient(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		token:   cfg.Token,
		secret:  cfg.Secret,
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		logger:  noopLogger{},
		now:     time.Now,
		nonce:   uuid.NewString,
	}
}

// SetLogger sets the logger for per-device status failures.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// IsConfigured reports whether token and secret are both set.
func (c *Client) IsConfigured(context.Context) (bool, error) {
	return c.token != "" && c.secret != "", nil
}

// listedDevice is one entry of GET /v1.1/devices.
type listedDevice struct {
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
}

// deviceStatus is the subset of GET /v1.1/devices/{id}/status the hub reads.
type deviceStatus struct {
	Power            string `json:"power"`
	Brightness       int    `json:"brightness"`
	Color            string `json:"color"`
	ColorTemperature int    `json:"colorTemperature"`
	SlidePosition    int    `json:"slidePosition"`
	Moving           bool   `json:"moving"`
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Body       json.RawMessage `json:"body"`
}

// FetchDevices lists devices and reads the status of each supported one.
//
// The list call must succeed. A failed status call does not drop the
// device; it is reported unreachable with default state.
func (c *Client) FetchDevices(ctx context.Context) ([]device.Snapshot, error) {
	if ok, _ := c.IsConfigured(ctx); !ok {
		return nil, ErrNotConfigured
	}

	var list struct {
		DeviceList []listedDevice `json:"deviceList"`
	}
	if err := c.get(ctx, "/v1.1/devices", &list); err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	out := make([]device.Snapshot, 0, len(list.DeviceList))
	for _, d := range list.DeviceList {
		kind, ok := kindOf(d.DeviceType)
		if !ok {
			continue
		}

		var st deviceStatus
		if err := c.get(ctx, "/v1.1/devices/"+url.PathEscape(d.DeviceID)+"/status", &st); err != nil {
			c.logger.Warn("switchbot status unavailable", "device_id", d.DeviceID, "error", err)
			out = append(out, bestEffortSnapshot(d, kind))
			continue
		}
		out = append(out, toSnapshot(d, kind, st))
	}
	return out, nil
}

// get performs a signed GET and decodes the envelope body into v.
func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.sign(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrAPI, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&env); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrAPI, err)
	}
	if env.StatusCode != statusSuccess {
		return fmt.Errorf("%w: status %d: %s", ErrAPI, env.StatusCode, env.Message)
	}
	if err := json.Unmarshal(env.Body, v); err != nil {
		return fmt.Errorf("%w: decoding body: %v", ErrAPI, err)
	}
	return nil
}

// sign sets the v1.1 authentication headers.
func (c *Client) sign(req *http.Request) {
	t := strconv.FormatInt(c.now().UnixMilli(), 10)
	nonce := c.nonce()

	req.Header.Set("Authorization", c.token)
	req.Header.Set("t", t)
	req.Header.Set("nonce", nonce)
	req.Header.Set("sign", Signature(c.token, c.secret, t, nonce))
	req.Header.Set("Content-Type", "application/json; charset=utf8")
}

// Signature computes base64(HMAC-SHA256(secret, token+t+nonce)).
func Signature(token, secret, t, nonce string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token + t + nonce))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
