// internal/config/validate.go
package config

import (
	"github.com/pkg/errors"

	"github.com/tamzrod/modem-hal/internal/device"
	"github.com/tamzrod/modem-hal/internal/mbim"
	"github.com/tamzrod/modem-hal/internal/ril"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	// ------------------------------------------------------------
	// DEVICE
	// ------------------------------------------------------------

	d := cfg.Device
	switch d.Kind {
	case "", device.KindCDC, device.KindSerial:
	default:
		return errors.Errorf("device: unknown kind %q (want %s or %s)", d.Kind, device.KindCDC, device.KindSerial)
	}
	if d.Kind == device.KindSerial && d.Path == "" {
		return errors.New("device: serial kind requires a path")
	}
	if d.MaxSegment != 0 && d.MaxSegment < mbim.MinSegmentSize {
		return errors.Errorf("device: max_segment %d below %d", d.MaxSegment, mbim.MinSegmentSize)
	}
	if d.BaudRate < 0 || d.TimeoutMs < 0 || d.MaxOutstanding < 0 || d.CloseTimeoutMs < 0 {
		return errors.New("device: negative values are not allowed")
	}

	// ------------------------------------------------------------
	// POLL
	// ------------------------------------------------------------

	p := cfg.Poll
	if p.IntervalMs < 0 || p.TimeoutMs < 0 {
		return errors.New("poll: negative values are not allowed")
	}
	if len(p.Queries) > 0 && d.Path == "" {
		return errors.New("poll: queries are set but device.path is empty")
	}

	names := make(map[string]int)
	for i, q := range p.Queries {
		if q.Service == "" {
			return errors.Errorf("poll: query %d has no service", i)
		}
		if _, err := mbim.LookupService(q.Service); err != nil {
			return errors.Wrapf(err, "poll: query %d", i)
		}
		if q.CID == 0 {
			return errors.Errorf("poll: query %d has no cid", i)
		}
		if q.Name == "" {
			continue
		}
		if prev, exists := names[q.Name]; exists {
			return errors.Errorf("poll: query name %q used by queries %d and %d", q.Name, prev, i)
		}
		names[q.Name] = i
	}

	// ------------------------------------------------------------
	// REPORT
	// ------------------------------------------------------------

	// device_name sanity (ASCII only)
	for i := 0; i < len(cfg.Report.DeviceName); i++ {
		if cfg.Report.DeviceName[i] > 0x7F {
			return errors.New("report: device_name must contain ASCII characters only")
		}
	}

	// ------------------------------------------------------------
	// RADIO CAPS
	// ------------------------------------------------------------

	slots := make(map[int]bool)
	for _, s := range cfg.RadioCaps.Slots {
		if s.Slot < 0 {
			return errors.Errorf("radio_caps: negative slot %d", s.Slot)
		}
		if slots[s.Slot] {
			return errors.Errorf("radio_caps: slot %d listed twice", s.Slot)
		}
		slots[s.Slot] = true

		raf, err := ril.ParseRAF(s.RAF)
		if err != nil {
			return errors.Wrapf(err, "radio_caps: slot %d", s.Slot)
		}
		if raf == 0 {
			return errors.Errorf("radio_caps: slot %d has no raf", s.Slot)
		}
		if _, err := ril.ParseMode(s.Requested); err != nil {
			return errors.Wrapf(err, "radio_caps: slot %d", s.Slot)
		}
		if len(s.UUID) >= ril.MaxLogicalModemUUID {
			return errors.Errorf("radio_caps: slot %d uuid longer than %d bytes", s.Slot, ril.MaxLogicalModemUUID-1)
		}
	}

	return nil
}
