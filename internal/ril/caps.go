// internal/ril/caps.go
package ril

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config describes one slot.
type Config struct {
	Slot           int
	Name           string
	RequestTimeout time.Duration
	QueryRetries   int
}

type modesHandler struct {
	id uint32
	fn func(*Caps)
}

type unhook struct {
	remove func(uint32)
	id     uint32
}

// Caps is the per-slot radio capability agent. It tracks the slot's current
// capability and takes part in manager transactions.
type Caps struct {
	mgr      *Manager
	io       IO
	watch    Watch
	data     Data
	radio    Radio
	sim      SimCard
	settings Settings
	cfg      Config
	log      *logrus.Entry

	cap            *RadioCapability // nil until known
	modes          Mode
	requestedModes Mode

	// transaction participation
	txID      int32
	txPending int
	oldCap    RadioCapability
	newCap    RadioCapability

	queryID   uint32
	hooks     []unhook
	handlers  []modesHandler
	handlerID uint32
	dropped   bool
}

// NewCaps attaches a slot to mgr. With a nil initial capability the agent
// asks the modem with GET_RADIO_CAPABILITY.
func NewCaps(mgr *Manager, io IO, watch Watch, data Data, radio Radio, sim SimCard,
	settings Settings, cfg Config, initial *RadioCapability) *Caps {

	c := &Caps{
		mgr:      mgr,
		io:       io,
		watch:    watch,
		data:     data,
		radio:    radio,
		sim:      sim,
		settings: settings,
		cfg:      cfg,
	}
	c.log = mgr.log.WithField("slot", cfg.Slot)
	if cfg.Name != "" {
		c.log = c.log.WithField("name", cfg.Name)
	}

	changed := func() { mgr.scheduleCheck() }
	c.hook(radio.RemoveHandler, radio.AddStateChangedHandler(changed))
	c.hook(sim.RemoveHandler, sim.AddStateChangedHandler(changed))
	c.hook(watch.RemoveHandler, watch.AddPresenceChangedHandler(changed))
	c.hook(watch.RemoveHandler, watch.AddIMSIChangedHandler(changed))
	c.hook(settings.RemoveHandler, settings.AddPrefModeChangedHandler(func() {
		c.log.WithField("pref", settings.PrefMode()).Debug("preferred mode changed")
		mgr.scheduleCheck()
	}))
	c.hook(io.RemoveHandler, io.AddUnsolHandler(UnsolRadioCapability, c.unsolCapability))

	if initial != nil {
		cp := *initial
		c.setCap(&cp)
	} else {
		c.query()
	}

	mgr.add(c)
	return c
}

func (c *Caps) hook(remove func(uint32), id uint32) {
	if id != 0 {
		c.hooks = append(c.hooks, unhook{remove: remove, id: id})
	}
}

func (c *Caps) Slot() int { return c.cfg.Slot }

// Cap returns a copy of the current capability, nil while unknown.
func (c *Caps) Cap() *RadioCapability {
	if c.cap == nil {
		return nil
	}
	cp := *c.cap
	return &cp
}

// SupportedModes are the access modes of the current capability.
func (c *Caps) SupportedModes() Mode { return c.modes }

// RequestedModes is what the top manager request wants from this slot.
func (c *Caps) RequestedModes() Mode { return c.requestedModes }

// AddSupportedModesHandler is called whenever SupportedModes changes.
func (c *Caps) AddSupportedModesHandler(fn func(*Caps)) uint32 {
	if fn == nil {
		return 0
	}
	c.handlerID++
	c.handlers = append(c.handlers, modesHandler{id: c.handlerID, fn: fn})
	return c.handlerID
}

func (c *Caps) RemoveHandler(id uint32) {
	for i, h := range c.handlers {
		if h.id == id {
			c.handlers = append(c.handlers[:i:i], c.handlers[i+1:]...)
			return
		}
	}
}

// Drop detaches the agent from its collaborators and the manager.
// Requests already issued for a running transaction still complete.
func (c *Caps) Drop() {
	if c.dropped {
		return
	}
	c.dropped = true
	for _, h := range c.hooks {
		h.remove(h.id)
	}
	c.hooks = nil
	if c.queryID != 0 {
		c.io.Cancel(c.queryID)
		c.queryID = 0
	}
	c.handlers = nil
	c.mgr.remove(c)
}

func (c *Caps) query() {
	opts := SendOptions{Timeout: c.cfg.RequestTimeout, Retries: c.cfg.QueryRetries}
	c.queryID = c.io.Send(RequestGetRadioCapability, nil, opts, func(st Errno, data []byte) {
		c.queryID = 0
		if st != ESuccess {
			c.log.WithField("status", st).Warn("GET_RADIO_CAPABILITY failed")
			return
		}
		rc, err := UnmarshalCapability(data)
		if err != nil {
			c.log.WithError(err).Warn("bad GET_RADIO_CAPABILITY response")
			return
		}
		c.log.WithField("cap", rc).Debug("radio capability")
		c.setCap(rc)
		c.mgr.scheduleCheck()
	})
	if c.queryID == 0 {
		c.log.Warn("cannot query radio capability")
	}
}

func (c *Caps) unsolCapability(data []byte) {
	rc, err := UnmarshalCapability(data)
	if err != nil {
		c.log.WithError(err).Warn("bad RADIO_CAPABILITY indication")
		return
	}
	if c.txID != 0 {
		c.log.WithField("cap", rc).Debug("RADIO_CAPABILITY during transaction ignored")
		return
	}
	c.log.WithField("cap", rc).Debug("RADIO_CAPABILITY")
	c.setCap(rc)
	c.mgr.scheduleCheck()
}

func (c *Caps) setCap(rc *RadioCapability) {
	c.cap = rc
	modes := rc.Modes()
	if modes == c.modes {
		return
	}
	c.log.WithField("modes", modes).Info("supported modes changed")
	c.modes = modes
	for _, h := range append([]modesHandler(nil), c.handlers...) {
		h.fn(c)
	}
}

// usable: radio online and SIM present.
func (c *Caps) usable() bool {
	return c.radio.Online() && c.sim.Present()
}

func (c *Caps) slotState() SlotState {
	s := SlotState{Usable: c.usable(), Requested: c.requestedModes}
	if c.cap != nil {
		s.Cap = *c.cap
	}
	return s
}
