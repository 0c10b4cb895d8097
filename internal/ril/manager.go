// internal/ril/manager.go
package ril

import (
	"cmp"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/tamzrod/modem-hal/internal/loop"
)

// CheckLaterTimeout delays the re-check after a transaction was abandoned
// before any capability switch command went out.
const CheckLaterTimeout = 5 * time.Second

// State of the manager.
type State int

const (
	StateIdle State = iota
	StateChecking
	StateWaitSIMIO
	StateWaitIO
	StateDeactivate
	StateSuspend
	StateStart
	StateApply
	StateFinish
	StateAbort
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateChecking:   "checking",
	StateWaitSIMIO:  "wait-sim-io",
	StateWaitIO:     "wait-io",
	StateDeactivate: "deactivate",
	StateSuspend:    "suspend",
	StateStart:      "start",
	StateApply:      "apply",
	StateFinish:     "finish",
	StateAbort:      "abort",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// ManagerOptions tune a Manager. The zero value is usable.
type ManagerOptions struct {
	Logger     *logrus.Entry
	CheckLater time.Duration
}

type signalKind int

const (
	signalAborted signalKind = iota
	signalDone
)

type signal struct {
	id   uint32
	kind signalKind
	fn   func()
}

// Manager moves radio capabilities between slots so that the best
// assignment is in effect. At most one transaction runs at a time.
type Manager struct {
	loop       *loop.Loop
	log        *logrus.Entry
	dm         DataManager
	checkLater time.Duration

	agents   []*Caps // sorted by slot
	requests []*Request

	state        State
	txID         int32
	txFailed     bool
	issuing      bool
	participants []*Caps
	locked       []IO
	waits        []unhook

	checkSrc *loop.Source
	laterSrc *loop.Source

	signals  []signal
	signalID uint32
}

func NewManager(l *loop.Loop, dm DataManager, opts ManagerOptions) *Manager {
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	later := opts.CheckLater
	if later <= 0 {
		later = CheckLaterTimeout
	}
	return &Manager{
		loop:       l,
		log:        log.WithField("component", "radio-caps"),
		dm:         dm,
		checkLater: later,
	}
}

// State reports the transaction state; StateChecking while a check is queued.
func (m *Manager) State() State {
	if m.state == StateIdle && m.checkSrc.Pending() {
		return StateChecking
	}
	return m.state
}

// ---- signals ----

func (m *Manager) AddTxAbortedHandler(fn func()) uint32 { return m.addSignal(signalAborted, fn) }
func (m *Manager) AddTxDoneHandler(fn func()) uint32 { return m.addSignal(signalDone, fn) }

func (m *Manager) addSignal(kind signalKind, fn func()) uint32 {
	if fn == nil {
		return 0
	}
	m.signalID++
	m.signals = append(m.signals, signal{id: m.signalID, kind: kind, fn: fn})
	return m.signalID
}

func (m *Manager) RemoveHandler(id uint32) {
	for i, s := range m.signals {
		if s.id == id {
			m.signals = append(m.signals[:i:i], m.signals[i+1:]...)
			return
		}
	}
}

func (m *Manager) emit(kind signalKind) {
	for _, s := range append([]signal(nil), m.signals...) {
		if s.kind == kind {
			s.fn()
		}
	}
}

// ---- agents ----

func (m *Manager) add(c *Caps) {
	m.agents = append(m.agents, c)
	slices.SortStableFunc(m.agents, func(a, b *Caps) int { return cmp.Compare(a.cfg.Slot, b.cfg.Slot) })
	m.updateRequests()
	m.scheduleCheck()
}

func (m *Manager) remove(c *Caps) {
	if i := slices.Index(m.agents, c); i >= 0 {
		m.agents = slices.Delete(m.agents, i, i+1)
	}
	kept := m.requests[:0]
	for _, r := range m.requests {
		if r.caps != c {
			kept = append(kept, r)
		}
	}
	m.requests = kept
	m.updateRequests()
	m.scheduleCheck()
}

// ---- check ----

func (m *Manager) scheduleCheck() {
	if m.state != StateIdle || m.checkSrc.Pending() {
		return
	}
	m.checkSrc = m.loop.Idle(m.check)
}

func (m *Manager) scheduleCheckLater() {
	m.laterSrc.Remove()
	m.laterSrc = m.loop.Timeout(m.checkLater, func() {
		m.laterSrc = nil
		m.scheduleCheck()
	})
}

// canCheck holds off while enabled slots are still initialising.
func (m *Manager) canCheck() bool {
	if m.state != StateIdle || len(m.agents) == 0 {
		return false
	}
	for _, c := range m.agents {
		if c.txPending > 0 {
			return false
		}
		if !c.watch.Present() {
			continue
		}
		if c.radio.Online() && c.cap == nil {
			return false
		}
		if c.sim.Present() && c.watch.IMSI() == "" {
			return false
		}
	}
	return true
}

func (m *Manager) candidates() []*Caps {
	var list []*Caps
	for _, c := range m.agents {
		if c.cap != nil {
			list = append(list, c)
		}
	}
	return list
}

func (m *Manager) check() {
	m.checkSrc = nil
	if !m.canCheck() {
		m.log.Debug("not ready to check")
		return
	}

	list := m.candidates()
	if len(list) < 2 {
		return
	}
	slots := make([]SlotState, len(list))
	for i, c := range list {
		slots[i] = c.slotState()
	}

	best := BestAssignment(slots)
	if !best.Better() {
		m.log.WithField("score", best.IdentityScore).Debug("current assignment is best")
		return
	}
	m.log.WithFields(logrus.Fields{
		"perm":  best.Perm,
		"score": best.Score,
		"was":   best.IdentityScore,
	}).Info("better capability assignment found")
	m.startTx(list, best.Perm)
}

// ---- transaction ----

func (m *Manager) nextTxID() int32 {
	m.txID++
	if m.txID <= 0 {
		m.txID = 1
	}
	return m.txID
}

func (m *Manager) startTx(list []*Caps, perm []int) {
	id := m.nextTxID()
	m.txFailed = false
	m.participants = nil
	for k, c := range list {
		src := list[perm[k]]
		if src == c {
			continue
		}
		c.oldCap = *c.cap
		c.newCap = *src.cap
		c.txID = id
		m.participants = append(m.participants, c)
		c.log.WithFields(logrus.Fields{"tx": id, "old": c.oldCap.RAF, "new": c.newCap.RAF}).Info("capability switch")
	}
	m.waitSIMIO()
}

func (m *Manager) simIOActive() bool {
	for _, c := range m.participants {
		if c.sim.IOActive() {
			return true
		}
	}
	return false
}

func (m *Manager) waitSIMIO() {
	m.state = StateWaitSIMIO
	if !m.simIOActive() {
		m.lockIO()
		return
	}
	m.log.WithField("tx", m.txID).Debug("waiting for SIM I/O")
	for _, c := range m.participants {
		m.wait(c.sim.RemoveHandler, c.sim.AddIOActiveChangedHandler(m.simIOChanged))
	}
}

func (m *Manager) simIOChanged() {
	if m.state == StateWaitSIMIO && !m.simIOActive() {
		m.clearWaits()
		m.lockIO()
	}
}

func (m *Manager) lockIO() {
	m.state = StateWaitIO
	for _, c := range m.participants {
		if slices.Contains(m.locked, c.io) {
			continue
		}
		c.io.TxStart()
		m.locked = append(m.locked, c.io)
	}
	if m.ioReady() {
		m.deactivate()
		return
	}
	m.log.WithField("tx", m.txID).Debug("waiting for I/O channels")
	for _, io := range m.locked {
		m.wait(io.RemoveHandler, io.AddOwnerChangedHandler(m.ioChanged))
		m.wait(io.RemoveHandler, io.AddPendingChangedHandler(m.ioChanged))
	}
}

func (m *Manager) ioReady() bool {
	for _, io := range m.locked {
		if !io.TxOwned() || io.Pending() > 0 {
			return false
		}
	}
	return true
}

func (m *Manager) ioChanged() {
	if m.state == StateWaitIO && m.ioReady() {
		m.clearWaits()
		m.deactivate()
	}
}

func (m *Manager) wait(remove func(uint32), id uint32) {
	if id != 0 {
		m.waits = append(m.waits, unhook{remove: remove, id: id})
	}
}

func (m *Manager) clearWaits() {
	for _, w := range m.waits {
		w.remove(w.id)
	}
	m.waits = nil
}

func (m *Manager) pending() int {
	n := 0
	for _, c := range m.participants {
		n += c.txPending
	}
	return n
}

// submit sends one request of the current step. ok decides whether the
// completion counts as a failure of the transaction.
func (m *Manager) submit(c *Caps, code uint32, data []byte, ok func(Errno, []byte) bool) {
	c.txPending++
	opts := SendOptions{Blocking: true, Timeout: c.cfg.RequestTimeout}
	id := c.io.Send(code, data, opts, func(st Errno, resp []byte) {
		c.txPending--
		if !ok(st, resp) {
			c.log.WithFields(logrus.Fields{"tx": m.txID, "code": code, "status": st}).Warn("request failed")
			m.txFailed = true
		}
		if !m.issuing && m.pending() == 0 {
			m.advance()
		}
	})
	if id == 0 {
		c.txPending--
		c.log.WithField("code", code).Warn("cannot send request")
		m.txFailed = true
	}
}

// issue runs fn to submit a batch of requests and advances right away when
// nothing remains outstanding.
func (m *Manager) issue(fn func()) {
	m.issuing = true
	fn()
	m.issuing = false
	if m.pending() == 0 {
		m.advance()
	}
}

// advance runs when every request of the current step has completed.
func (m *Manager) advance() {
	switch m.state {
	case StateDeactivate:
		m.suspend()
	case StateSuspend:
		if m.txFailed {
			m.abandon()
		} else {
			m.phase(StateStart)
		}
	case StateStart:
		m.nextPhase(StateApply)
	case StateApply:
		m.nextPhase(StateFinish)
	case StateFinish:
		if m.txFailed {
			m.abort()
		} else {
			m.commit()
		}
	case StateAbort:
		m.finishAbort()
	}
}

func (m *Manager) deactivate() {
	m.state = StateDeactivate
	m.issue(func() {
		for _, c := range m.participants {
			for _, cid := range c.data.ActiveCalls() {
				var p Parcel
				p.PutStrings(strconv.Itoa(int(cid)), "0")
				m.submit(c, RequestDeactivateDataCall, p.Bytes(), func(st Errno, _ []byte) bool {
					if st != ESuccess {
						c.data.PollCallState()
						return false
					}
					return true
				})
			}
		}
	})
}

func (m *Manager) suspend() {
	m.state = StateSuspend
	m.issue(func() {
		for _, c := range m.participants {
			var p Parcel
			p.PutInts(0)
			m.submit(c, RequestAllowData, p.Bytes(), func(st Errno, _ []byte) bool {
				return st == ESuccess
			})
		}
	})
}

func (m *Manager) nextPhase(next State) {
	if m.txFailed {
		m.abort()
		return
	}
	m.phase(next)
}

func (m *Manager) phase(st State) {
	m.state = st

	var (
		ph     Phase
		status CapStatus
		useNew bool
	)
	switch st {
	case StateStart:
		ph, status = PhaseStart, CapStatusNone
	case StateApply:
		ph, status, useNew = PhaseApply, CapStatusNone, true
	case StateFinish:
		ph, status, useNew = PhaseFinish, CapStatusSuccess, true
	case StateAbort:
		ph, status = PhaseFinish, CapStatusFail
	}

	m.log.WithFields(logrus.Fields{"tx": m.txID, "phase": ph, "status": status}).Debug("SET_RADIO_CAPABILITY")
	m.issue(func() {
		for _, c := range m.participants {
			rc := c.oldCap
			if useNew {
				rc = c.newCap
			}
			rc.Version = CapabilityVersion
			rc.Session = m.txID
			rc.Phase = ph
			rc.Status = status
			m.submit(c, RequestSetRadioCapability, rc.Marshal(), setCapabilityOK)
		}
	})
}

func setCapabilityOK(st Errno, data []byte) bool {
	if st != ESuccess {
		return false
	}
	rc, err := UnmarshalCapability(data)
	if err != nil {
		return false
	}
	return rc.Status != CapStatusFail
}

// abort rolls participants back with a single FINISH/FAIL round under a new
// transaction id.
func (m *Manager) abort() {
	id := m.nextTxID()
	m.log.WithField("tx", id).Warn("capability switch failed, aborting")
	for _, c := range m.participants {
		c.txID = id
	}
	m.phase(StateAbort)
}

func (m *Manager) finishAbort() {
	m.endTx()
	m.emit(signalAborted)
	m.checkData()
}

// abandon gives up before any capability switch command was sent.
func (m *Manager) abandon() {
	m.log.WithField("tx", m.txID).Warn("transaction abandoned")
	m.endTx()
	m.emit(signalAborted)
	m.scheduleCheckLater()
	m.checkData()
}

func (m *Manager) commit() {
	for _, c := range m.participants {
		rc := c.newCap
		c.setCap(&rc)
	}
	m.log.WithField("tx", m.txID).Info("capability switch done")
	m.endTx()
	m.emit(signalDone)
	m.checkData()
	m.scheduleCheck()
}

func (m *Manager) endTx() {
	m.clearWaits()
	for _, c := range m.participants {
		c.txID = 0
	}
	for _, io := range m.locked {
		io.TxFinish()
	}
	m.locked = nil
	m.participants = nil
	m.state = StateIdle
}

func (m *Manager) checkData() {
	if m.dm != nil {
		m.dm.CheckData()
	}
}
