package device

import (
	"strings"
	"time"
)

// Vendor identifies which integration produced a snapshot.
type Vendor string

// Supported vendors.
const (
	VendorHue       Vendor = "hue"
	VendorNanoleaf  Vendor = "nanoleaf"
	VendorSwitchBot Vendor = "switchbot"
)

// Valid reports whether v is one of the supported vendors.
func (v Vendor) Valid() bool {
	switch v {
	case VendorHue, VendorNanoleaf, VendorSwitchBot:
		return true
	}
	return false
}

// Device ID prefixes. Nanoleaf IDs are opaque and carry neither prefix.
const (
	HuePrefix       = "hue-"
	SwitchBotPrefix = "switchbot-"
)

// VendorForID routes a device ID to the vendor that owns it by prefix.
// Any ID without a known prefix belongs to Nanoleaf.
func VendorForID(id string) Vendor {
	switch {
	case strings.HasPrefix(id, HuePrefix):
		return VendorHue
	case strings.HasPrefix(id, SwitchBotPrefix):
		return VendorSwitchBot
	default:
		return VendorNanoleaf
	}
}

// HasReservedPrefix reports whether id starts with a vendor prefix that an
// opaque (Nanoleaf) ID must never use.
func HasReservedPrefix(id string) bool {
	return strings.HasPrefix(id, HuePrefix) || strings.HasPrefix(id, SwitchBotPrefix)
}

// TiltPosition is one of the five slat positions of a tilting blind.
type TiltPosition string

// Tilt positions, from slats fully tilted down to fully tilted up.
// TiltOpen is horizontal slats (maximum light).
const (
	TiltClosedDown TiltPosition = "closed_down"
	TiltHalfDown   TiltPosition = "half_down"
	TiltOpen       TiltPosition = "open"
	TiltHalfUp     TiltPosition = "half_up"
	TiltClosedUp   TiltPosition = "closed_up"
)

// ColorMode reports which colour representation is currently active.
type ColorMode string

// Colour modes.
const (
	ColorModeHS     ColorMode = "hs"
	ColorModeCT     ColorMode = "ct"
	ColorModeEffect ColorMode = "effect"
)

// Color is an HSB colour in normalised ranges.
type Color struct {
	Hue        int `json:"hue"`        // 0-360
	Saturation int `json:"saturation"` // 0-100
	Brightness int `json:"brightness"` // 0-100
}

// State is the vendor-neutral device state.
//
// Optional fields are nil when the device does not support the feature.
type State struct {
	On           bool          `json:"on"`
	Brightness   int           `json:"brightness"` // 0-100
	TiltPosition *TiltPosition `json:"tiltPosition,omitempty"`
	Color        *Color        `json:"color,omitempty"`
	ColorTemp    *int          `json:"colorTemp,omitempty"` // Kelvin
	ColorMode    *ColorMode    `json:"colorMode,omitempty"`
}

// Placement is optional room/visibility metadata a snapshot may carry.
// When present it takes part in change detection.
type Placement struct {
	RoomID   *string `json:"roomId,omitempty"`
	RoomName *string `json:"roomName,omitempty"`
	Hidden   bool    `json:"hidden"`
}

// Snapshot is the last-known normalised view of one device.
type Snapshot struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Vendor       Vendor     `json:"type"`
	State        State      `json:"state"`
	Reachable    bool       `json:"reachable"`
	Model        string     `json:"model,omitempty"`
	Capabilities []string   `json:"capabilities,omitempty"`
	Placement    *Placement `json:"placement,omitempty"`
}

// Clone returns an independent copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	cpy := s
	cpy.State = s.State.clone()
	if s.Capabilities != nil {
		cpy.Capabilities = append([]string(nil), s.Capabilities...)
	}
	if s.Placement != nil {
		p := *s.Placement
		p.RoomID = cloneString(s.Placement.RoomID)
		p.RoomName = cloneString(s.Placement.RoomName)
		cpy.Placement = &p
	}
	return cpy
}

func (st State) clone() State {
	cpy := st
	if st.TiltPosition != nil {
		v := *st.TiltPosition
		cpy.TiltPosition = &v
	}
	if st.Color != nil {
		v := *st.Color
		cpy.Color = &v
	}
	if st.ColorTemp != nil {
		v := *st.ColorTemp
		cpy.ColorTemp = &v
	}
	if st.ColorMode != nil {
		v := *st.ColorMode
		cpy.ColorMode = &v
	}
	return cpy
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Entry is a cached snapshot with its bookkeeping timestamp.
type Entry struct {
	Snapshot    Snapshot
	LastUpdated time.Time
}

// GroupRef is a group membership attached to an enriched device.
type GroupRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Enrichment is the persisted metadata for one device, keyed by external ID.
type Enrichment struct {
	ExternalID string
	RoomID     *string
	RoomName   *string
	Hidden     bool
	Groups     []GroupRef
}

// EnrichedDevice is a snapshot joined with persisted room/group metadata.
// This is the shape handed to consumers.
type EnrichedDevice struct {
	Snapshot
	RoomID   *string    `json:"roomId"`
	RoomName *string    `json:"roomName"`
	Hidden   bool       `json:"hidden"`
	Groups   []GroupRef `json:"groups"`
}

// Enrich joins snapshots with enrichment records by ID.
//
// Devices without a record get the defaults (no room, not hidden, no
// groups). Groups is never nil so it encodes as [].
func Enrich(snapshots []Snapshot, records []Enrichment) []EnrichedDevice {
	byID := make(map[string]Enrichment, len(records))
	for _, r := range records {
		byID[r.ExternalID] = r
	}

	out := make([]EnrichedDevice, 0, len(snapshots))
	for _, s := range snapshots {
		ed := EnrichedDevice{Snapshot: s.Clone(), Groups: []GroupRef{}}
		if r, ok := byID[s.ID]; ok {
			ed.RoomID = cloneString(r.RoomID)
			ed.RoomName = cloneString(r.RoomName)
			ed.Hidden = r.Hidden
			if len(r.Groups) > 0 {
				ed.Groups = append(ed.Groups, r.Groups...)
			}
		}
		out = append(out, ed)
	}
	return out
}

// Ptr returns a pointer to v. Handy for the optional State fields.
func Ptr[T any](v T) *T {
	return &v
}
