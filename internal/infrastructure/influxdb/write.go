package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the hub.
const (
	MeasurementDeviceState = "device_state"
	MeasurementRateLimit   = "rate_limit"
)

// DeviceState is one device_state sample.
//
// Vendor and Room are tags; the remaining values are fields. Room is
// omitted when empty.
type DeviceState struct {
	DeviceID   string
	Vendor     string
	Room       string
	On         bool
	Brightness int
	Reachable  bool
	At         time.Time
}

// Quota is one rate_limit sample for a vendor with a request budget.
type Quota struct {
	Vendor    string
	Count     int
	Limit     int
	Remaining int
	At        time.Time
}

// WriteDeviceState records a device state sample.
// The write is non-blocking; a zero At is stamped with the current time.
func (c *Client) WriteDeviceState(s DeviceState) {
	if !c.IsConnected() {
		return
	}
	if s.At.IsZero() {
		s.At = c.now()
	}
	c.writeAPI.WritePoint(deviceStatePoint(s))
}

// WriteQuota records rate limiter usage.
// The write is non-blocking; a zero At is stamped with the current time.
func (c *Client) WriteQuota(q Quota) {
	if !c.IsConnected() {
		return
	}
	if q.At.IsZero() {
		q.At = c.now()
	}
	c.writeAPI.WritePoint(quotaPoint(q))
}

// WritePoint writes a custom point stamped with the current time.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Indexed, low-cardinality key-value pairs
//   - fields: The recorded values
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, c.now()))
}

func deviceStatePoint(s DeviceState) *write.Point {
	tags := map[string]string{
		"device_id": s.DeviceID,
		"vendor":    s.Vendor,
	}
	if s.Room != "" {
		tags["room"] = s.Room
	}
	return write.NewPoint(MeasurementDeviceState, tags, map[string]any{
		"on":         s.On,
		"brightness": s.Brightness,
		"reachable":  s.Reachable,
	}, s.At)
}

func quotaPoint(q Quota) *write.Point {
	return write.NewPoint(MeasurementRateLimit,
		map[string]string{"vendor": q.Vendor},
		map[string]any{
			"count":     q.Count,
			"limit":     q.Limit,
			"remaining": q.Remaining,
		}, q.At)
}
