package proof_of_heat

import (
	"encoding/json"
	"time"
)

// Mode is the thermostat operating mode of a device.
type Mode string

const (
	ModeComfort Mode = "comfort" // max performance
	ModeEco     Mode = "eco"     // reduced power
	ModeOff     Mode = "off"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeComfort, ModeEco, ModeOff:
		return true
	}
	return false
}

// Label returns the human-readable form of the mode.
func (m Mode) Label() string {
	switch m {
	case ModeComfort:
		return "Comfort (max performance)"
	case ModeEco:
		return "Eco (reduced power)"
	case ModeOff:
		return "Off"
	}
	return string(m)
}

// DeviceKind selects the driver implementation for a device.
type DeviceKind string

const (
	KindMiner           DeviceKind = "miner"
	KindWeatherProvider DeviceKind = "weather"
)

// Reading is one successful measurement from a device. Immutable once
// produced; the poller replaces it wholesale on each successful poll.
type Reading struct {
	MeasuredTempC float64         `json:"measured_temp_c"`
	PowerWatts    float64         `json:"power_watts"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// ErrorInfo describes the last failed poll of a device.
type ErrorInfo struct {
	Kind    string    `json:"kind"` // see ErrorKind
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// DeviceState is the published snapshot of a device. Values are
// immutable once published: writers build a new DeviceState and swap
// it in, so readers always observe a consistent whole (in particular
// LastReading and LastPollAt always come from the same poll).
type DeviceState struct {
	DeviceID    string     `json:"device_id"`
	Mode        Mode       `json:"mode"`
	TargetTempC float64    `json:"target_temp_c"`
	PowerLimitW float64    `json:"power_limit_w,omitempty"`
	LastReading *Reading   `json:"last_reading,omitempty"`
	LastPollAt  time.Time  `json:"last_poll_at"`
	LastError   *ErrorInfo `json:"last_error,omitempty"`
}

// Stale reports whether the displayed reading is older than the last
// poll attempt, i.e. the most recent poll failed.
func (s DeviceState) Stale() bool {
	return s.LastError != nil
}

// HistorySnapshot is one append-only history record. Exactly one is
// written per successful poll and per successful command.
type HistorySnapshot struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	DeviceID    string    `json:"device_id"`
	Mode        Mode      `json:"mode"`
	TargetTempC float64   `json:"target_temp_c"`
	Reading     Reading   `json:"reading"`
}
