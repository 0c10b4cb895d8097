// internal/ril/check.go
package ril

import (
	"time"

	"github.com/tamzrod/modem-hal/internal/loop"
)

// Probe tuning.
const (
	CheckRetries    = 3
	CheckRetryDelay = time.Second
	CheckTimeout    = 10 * time.Second
)

// Probe is a one-shot GET_RADIO_CAPABILITY used to find out whether a
// modem supports capability switching at all.
type Probe struct {
	io    IO
	loop  *loop.Loop
	cb    func(*RadioCapability)
	tries int
	delay time.Duration
	reqID uint32
	timer *loop.Source
	done  bool
}

// Check probes io and calls cb exactly once: with the capability, or with
// nil when the request is not supported, not allowed, or keeps failing.
func Check(io IO, l *loop.Loop, cb func(*RadioCapability)) *Probe {
	p := &Probe{io: io, loop: l, cb: cb, delay: CheckRetryDelay}
	p.send()
	return p
}

// Cancel stops the probe without calling back.
func (p *Probe) Cancel() {
	if p.done {
		return
	}
	p.done = true
	p.timer.Remove()
	if p.reqID != 0 {
		p.io.Cancel(p.reqID)
		p.reqID = 0
	}
}

func (p *Probe) send() {
	p.timer = nil
	p.tries++
	p.reqID = p.io.Send(RequestGetRadioCapability, nil, SendOptions{Timeout: CheckTimeout}, p.response)
	if p.reqID == 0 {
		p.finish(nil)
	}
}

func (p *Probe) response(st Errno, data []byte) {
	p.reqID = 0
	if p.done {
		return
	}
	switch st {
	case ESuccess:
		if rc, err := UnmarshalCapability(data); err == nil {
			p.finish(rc)
			return
		}
	case ERequestNotSupported, EOperationNotAllowed:
		p.finish(nil)
		return
	}

	if p.tries > CheckRetries {
		p.finish(nil)
		return
	}
	p.timer = p.loop.Timeout(p.delay, p.send)
}

func (p *Probe) finish(rc *RadioCapability) {
	if p.done {
		return
	}
	p.done = true
	if p.cb != nil {
		p.cb(rc)
	}
}
