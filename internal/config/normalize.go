// internal/config/normalize.go
package config

import (
	"fmt"

	"github.com/tamzrod/modem-hal/internal/device"
	"github.com/tamzrod/modem-hal/internal/mbim"
)

// Defaults applied by Normalize.
const (
	DefaultMaxSegment     = 4096
	DefaultBaudRate       = 115200
	DefaultTimeoutMs      = 1000
	DefaultPollIntervalMs = 5000
	DefaultPollTimeoutMs  = 5000

	// DeviceNameMaxChars bounds report.device_name.
	DeviceNameMaxChars = 16
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	d := &cfg.Device
	if d.Kind == "" {
		d.Kind = device.KindCDC
	}
	if d.MaxSegment == 0 {
		d.MaxSegment = DefaultMaxSegment
	}
	if d.BaudRate == 0 {
		d.BaudRate = DefaultBaudRate
	}
	if d.TimeoutMs == 0 {
		d.TimeoutMs = DefaultTimeoutMs
	}
	if d.Name == "" {
		d.Name = d.Path
	}

	p := &cfg.Poll
	if p.IntervalMs == 0 {
		p.IntervalMs = DefaultPollIntervalMs
	}
	if p.TimeoutMs == 0 {
		p.TimeoutMs = DefaultPollTimeoutMs
	}
	for i := range p.Queries {
		q := &p.Queries[i]
		// service names are resolvable, checked by Validate
		if u, err := mbim.LookupService(q.Service); err == nil {
			q.Service = u.ServiceName()
		}
		if q.Name == "" {
			q.Name = fmt.Sprintf("%s/%d", q.Service, q.CID)
		}
	}

	// Normalize device_name:
	// - ASCII already validated
	// - Truncate to max 16 characters
	r := &cfg.Report
	if r.DeviceName == "" {
		r.DeviceName = d.Name
	}
	if len(r.DeviceName) > DeviceNameMaxChars {
		r.DeviceName = r.DeviceName[:DeviceNameMaxChars]
	}
}
