// internal/status/constants.go
package status

// Device health values.
// These values are part of the report format and MUST NOT be configurable.

// ---- HEALTH CODES ----

// Health is the device health state.
type Health uint16

// HealthUnknown represents an unknown or boot state.
const HealthUnknown Health = 0

// HealthOK represents a healthy device.
const HealthOK Health = 1

// HealthError represents a device error state.
const HealthError Health = 2

// HealthStale represents a stale data state.
const HealthStale Health = 3

// HealthDisabled represents a disconnected device.
const HealthDisabled Health = 4

// ---- LIMITS ----

// MaxSecondsInError is where SecondsInError saturates.
const MaxSecondsInError = 65535

func (h Health) String() string {
	switch h {
	case HealthUnknown:
		return "unknown"
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	}
	return "invalid"
}

func (h Health) MarshalText() ([]byte, error) { return []byte(h.String()), nil }
