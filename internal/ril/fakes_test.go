// internal/ril/fakes_test.go
package ril

import (
	"fmt"
	"testing"

	"github.com/tamzrod/modem-hal/internal/loop"
)

type hookEntry struct {
	kind string
	fn   func()
}

type hooks struct {
	next uint32
	m    map[uint32]hookEntry
}

func (h *hooks) add(kind string, fn func()) uint32 {
	if h.m == nil {
		h.m = make(map[uint32]hookEntry)
	}
	h.next++
	h.m[h.next] = hookEntry{kind: kind, fn: fn}
	return h.next
}

func (h *hooks) RemoveHandler(id uint32) { delete(h.m, id) }

func (h *hooks) fire(kind string) {
	var fns []func()
	for _, e := range h.m {
		if e.kind == kind {
			fns = append(fns, e.fn)
		}
	}
	for _, fn := range fns {
		fn()
	}
}

func (h *hooks) count() int { return len(h.m) }

// ---- IO ----

type sentReq struct {
	id       uint32
	code     uint32
	data     []byte
	opts     SendOptions
	cb       ResponseFunc
	answered bool
}

type fakeIO struct {
	hooks
	nextID    uint32
	sent      []*sentReq
	cancelled []uint32
	unsol     map[uint32]func([]byte)

	grantLater bool
	owned      bool
	pending    int
	txStarts   int
	txFinishes int
}

func (f *fakeIO) Send(code uint32, data []byte, opts SendOptions, cb ResponseFunc) uint32 {
	f.nextID++
	f.sent = append(f.sent, &sentReq{id: f.nextID, code: code, data: data, opts: opts, cb: cb})
	return f.nextID
}

func (f *fakeIO) Cancel(id uint32) {
	f.cancelled = append(f.cancelled, id)
	for _, r := range f.sent {
		if r.id == id {
			r.answered = true
		}
	}
}

func (f *fakeIO) TxStart() bool {
	f.txStarts++
	if f.grantLater {
		return false
	}
	f.owned = true
	return true
}

func (f *fakeIO) TxOwned() bool { return f.owned }

func (f *fakeIO) TxFinish() {
	f.txFinishes++
	f.owned = false
}

func (f *fakeIO) Pending() int { return f.pending }

func (f *fakeIO) AddOwnerChangedHandler(fn func()) uint32   { return f.add("owner", fn) }
func (f *fakeIO) AddPendingChangedHandler(fn func()) uint32 { return f.add("pending", fn) }

func (f *fakeIO) AddUnsolHandler(code uint32, fn func([]byte)) uint32 {
	if f.unsol == nil {
		f.unsol = make(map[uint32]func([]byte))
	}
	id := f.add(fmt.Sprintf("unsol-%d", code), func() {})
	f.unsol[id] = fn
	return id
}

func (f *fakeIO) RemoveHandler(id uint32) {
	f.hooks.RemoveHandler(id)
	delete(f.unsol, id)
}

func (f *fakeIO) deliverUnsol(data []byte) {
	for _, fn := range f.unsol {
		fn(data)
	}
}

// open returns unanswered requests with the given code.
func (f *fakeIO) open(code uint32) []*sentReq {
	var out []*sentReq
	for _, r := range f.sent {
		if r.code == code && !r.answered {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeIO) count(code uint32) int {
	n := 0
	for _, r := range f.sent {
		if r.code == code {
			n++
		}
	}
	return n
}

func (r *sentReq) answer(st Errno, data []byte) {
	r.answered = true
	r.cb(st, data)
}

// ---- slot collaborators ----

type fakeSIM struct {
	hooks
	present  bool
	ioActive bool
}

func (f *fakeSIM) Present() bool                             { return f.present }
func (f *fakeSIM) IOActive() bool                            { return f.ioActive }
func (f *fakeSIM) AddStateChangedHandler(fn func()) uint32    { return f.add("state", fn) }
func (f *fakeSIM) AddIOActiveChangedHandler(fn func()) uint32 { return f.add("io", fn) }

type fakeRadio struct {
	hooks
	online bool
}

func (f *fakeRadio) Online() bool                          { return f.online }
func (f *fakeRadio) AddStateChangedHandler(fn func()) uint32 { return f.add("state", fn) }

type fakeWatch struct {
	hooks
	present bool
	imsi    string
}

func (f *fakeWatch) Present() bool                              { return f.present }
func (f *fakeWatch) IMSI() string                               { return f.imsi }
func (f *fakeWatch) AddPresenceChangedHandler(fn func()) uint32 { return f.add("presence", fn) }
func (f *fakeWatch) AddIMSIChangedHandler(fn func()) uint32     { return f.add("imsi", fn) }

type fakeSettings struct {
	hooks
	mode Mode
}

func (f *fakeSettings) PrefMode() Mode                             { return f.mode }
func (f *fakeSettings) AddPrefModeChangedHandler(fn func()) uint32 { return f.add("pref", fn) }

type fakeData struct {
	calls []int32
	polls int
}

func (f *fakeData) ActiveCalls() []int32 { return f.calls }
func (f *fakeData) PollCallState()       { f.polls++ }

type fakeDataManager struct{ checks int }

func (f *fakeDataManager) CheckData() { f.checks++ }

// ---- environment ----

type env struct {
	l       *loop.Loop
	dm      *fakeDataManager
	m       *Manager
	aborted int
	done    int
}

func newEnv() *env {
	e := &env{l: loop.New(), dm: &fakeDataManager{}}
	e.m = NewManager(e.l, e.dm, ManagerOptions{})
	e.m.AddTxAbortedHandler(func() { e.aborted++ })
	e.m.AddTxDoneHandler(func() { e.done++ })
	return e
}

type slot struct {
	io       *fakeIO
	sim      *fakeSIM
	radio    *fakeRadio
	watch    *fakeWatch
	settings *fakeSettings
	data     *fakeData
	caps     *Caps
}

func testCap(n int, raf RAF) *RadioCapability {
	return &RadioCapability{
		Version:          CapabilityVersion,
		Phase:            PhaseConfigured,
		RAF:              raf,
		LogicalModemUUID: fmt.Sprintf("modem%d", n),
	}
}

// newSlot adds an enabled slot. A usable slot has its radio online and a
// SIM with a known IMSI.
func (e *env) newSlot(n int, raf RAF, usable bool) *slot {
	s := &slot{
		io:       &fakeIO{},
		sim:      &fakeSIM{present: usable},
		radio:    &fakeRadio{online: usable},
		watch:    &fakeWatch{present: true},
		settings: &fakeSettings{},
		data:     &fakeData{},
	}
	if usable {
		s.watch.imsi = fmt.Sprintf("24405000000000%d", n)
	}
	var initial *RadioCapability
	if raf != 0 {
		initial = testCap(n, raf)
	}
	s.caps = NewCaps(e.m, s.io, s.watch, s.data, s.radio, s.sim, s.settings, Config{Slot: n}, initial)
	return s
}

// echoCapability answers a SET_RADIO_CAPABILITY with the request echoed back
// and the given status.
func echoCapability(t *testing.T, req []byte, st CapStatus) []byte {
	t.Helper()
	rc, err := UnmarshalCapability(req)
	if err != nil {
		t.Fatalf("bad SET_RADIO_CAPABILITY request: %v", err)
	}
	rc.Status = st
	return rc.Marshal()
}

func decodeSet(t *testing.T, r *sentReq) *RadioCapability {
	t.Helper()
	rc, err := UnmarshalCapability(r.data)
	if err != nil {
		t.Fatalf("bad SET_RADIO_CAPABILITY request: %v", err)
	}
	return rc
}

// answerAll completes every open request with code on the given slots.
func answerAll(t *testing.T, code uint32, slots ...*slot) {
	t.Helper()
	for _, s := range slots {
		for _, r := range s.io.open(code) {
			var data []byte
			if code == RequestSetRadioCapability {
				data = echoCapability(t, r.data, CapStatusSuccess)
			}
			r.answer(ESuccess, data)
		}
	}
}

func expectOpen(t *testing.T, s *slot, code uint32, n int) []*sentReq {
	t.Helper()
	open := s.io.open(code)
	if len(open) != n {
		t.Fatalf("slot %d: expected %d open requests %d, got %d", s.caps.Slot(), n, code, len(open))
	}
	return open
}
