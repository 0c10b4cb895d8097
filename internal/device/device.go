// internal/device/device.go
package device

import (
	"encoding/hex"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/modem-hal/internal/loop"
	"github.com/tamzrod/modem-hal/internal/mbim"
)

// State of the control channel.
type State int

const (
	StateOpening State = iota
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrHandshake = errors.New("device: handshake failed")
	ErrProtocol  = errors.New("device: protocol violation")
)

// ReplyFunc receives the COMMAND_DONE or FUNCTION_ERROR for a sent command.
type ReplyFunc func(m *mbim.Message)

// NotifyFunc receives a matching INDICATE_STATUS.
type NotifyFunc func(m *mbim.Message)

// Options tune a Device. The zero value is usable.
type Options struct {
	Name           string
	MaxOutstanding int           // 0 = unlimited
	CloseTimeout   time.Duration // 0 = wait for CLOSE_DONE forever
	Debug          bool
	Logger         *logrus.Entry
}

type request struct {
	tid     uint32
	gid     uint32
	segs    [][]byte
	reply   ReplyFunc
	destroy func()
}

type registration struct {
	id      uint32
	gid     uint32
	uuid    mbim.UUID
	cid     uint32
	notify  NotifyFunc
	destroy func()
}

// Device is an MBIM control channel over a byte stream.
//
// All methods and callbacks run on the loop goroutine. A reader goroutine
// and a writer goroutine move bytes and post everything else to the loop.
type Device struct {
	loop *loop.Loop
	rwc  io.ReadWriteCloser
	log  *logrus.Entry

	maxSegment     uint32
	maxOutstanding int
	closeTimeout   time.Duration
	debug          bool

	state    State
	tid      uint32
	queue    []*request
	awaiting map[uint32]*request
	regs     []*registration
	regID    uint32

	rbuf  []byte
	reasm *mbim.Reassembler

	onReady      func()
	onDisconnect func(error)

	outq    [][]byte    // segments not yet handed to the writer
	writing bool        // the writer holds a segment
	writes  chan []byte // capacity 1, only sent to while !writing

	closeTimer   *loop.Source
	teardown     *loop.Source
	teardownDone bool
}

// New starts the OPEN handshake on rwc. maxSegment is both the advertised
// max control transfer and the largest segment accepted from the device.
func New(l *loop.Loop, rwc io.ReadWriteCloser, maxSegment uint32, opts Options) (*Device, error) {
	if maxSegment < mbim.MinSegmentSize {
		return nil, errors.Errorf("device: max segment %d below %d", maxSegment, mbim.MinSegmentSize)
	}

	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Name != "" {
		log = log.WithField("device", opts.Name)
	}

	d := &Device{
		loop:           l,
		rwc:            rwc,
		log:            log,
		maxSegment:     maxSegment,
		maxOutstanding: opts.MaxOutstanding,
		closeTimeout:   opts.CloseTimeout,
		debug:          opts.Debug,
		awaiting:       make(map[uint32]*request),
		reasm:          mbim.NewReassembler(),
		writes:         make(chan []byte, 1),
	}

	go d.readLoop()
	go d.writeLoop()

	d.log.WithField("max_segment", maxSegment).Debug("sending OPEN")
	d.write(mbim.EncodeOpen(d.nextTID(), maxSegment))
	return d, nil
}

// ---- configuration ----

func (d *Device) SetReadyHandler(fn func()) { d.onReady = fn }

// SetDisconnectHandler is called once when the device is torn down: with the
// fatal error, or nil after an orderly Shutdown.
func (d *Device) SetDisconnectHandler(fn func(error)) { d.onDisconnect = fn }

func (d *Device) SetDebug(on bool) { d.debug = on }

// SetMaxOutstanding limits commands awaiting a reply. 0 removes the limit.
func (d *Device) SetMaxOutstanding(n int) {
	if n < 0 {
		n = 0
	}
	d.maxOutstanding = n
	d.flush()
}

func (d *Device) State() State { return d.state }

// Outstanding returns the number of commands written and awaiting a reply.
func (d *Device) Outstanding() int { return len(d.awaiting) }

// ---- commands ----

// Send queues a sealed command and returns its transaction id, or 0 when the
// device is shutting down or the message cannot be serialized. On 0 nothing
// is retained and destroy is not called.
func (d *Device) Send(gid uint32, m *mbim.Message, reply ReplyFunc, destroy func()) uint32 {
	if m == nil || m.Kind() != mbim.KindCommand {
		return 0
	}
	if d.state == StateClosing || d.state == StateClosed {
		return 0
	}

	tid := d.nextTID()
	segs, err := m.Segments(tid, d.maxSegment)
	if err != nil {
		d.log.WithError(err).Warn("cannot serialize command")
		return 0
	}

	d.queue = append(d.queue, &request{tid: tid, gid: gid, segs: segs, reply: reply, destroy: destroy})
	d.flush()
	return tid
}

// Cancel forgets a pending command. Its reply is never delivered.
func (d *Device) Cancel(tid uint32) bool {
	if r, ok := d.awaiting[tid]; ok {
		delete(d.awaiting, tid)
		release(r)
		d.flush()
		return true
	}
	for i, r := range d.queue {
		if r.tid == tid {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			release(r)
			return true
		}
	}
	return false
}

// CancelGroup forgets every pending command of gid.
func (d *Device) CancelGroup(gid uint32) {
	for tid, r := range d.awaiting {
		if r.gid == gid {
			delete(d.awaiting, tid)
			release(r)
		}
	}
	kept := d.queue[:0]
	for _, r := range d.queue {
		if r.gid == gid {
			release(r)
			continue
		}
		kept = append(kept, r)
	}
	d.queue = kept
	d.flush()
}

func release(r *request) {
	if r.destroy != nil {
		r.destroy()
	}
}

// ---- notifications ----

// Register subscribes notify to indications of (uuid, cid). Returns 0 if
// notify is nil.
func (d *Device) Register(gid uint32, uuid mbim.UUID, cid uint32, notify NotifyFunc, destroy func()) uint32 {
	if notify == nil {
		return 0
	}
	d.regID++
	if d.regID == 0 {
		d.regID = 1
	}
	d.regs = append(d.regs, &registration{id: d.regID, gid: gid, uuid: uuid, cid: cid, notify: notify, destroy: destroy})
	return d.regID
}

func (d *Device) Unregister(id uint32) bool {
	for i, r := range d.regs {
		if r.id == id {
			d.regs = append(d.regs[:i:i], d.regs[i+1:]...)
			if r.destroy != nil {
				r.destroy()
			}
			return true
		}
	}
	return false
}

func (d *Device) UnregisterGroup(gid uint32) {
	var kept []*registration
	for _, r := range d.regs {
		if r.gid == gid {
			if r.destroy != nil {
				r.destroy()
			}
			continue
		}
		kept = append(kept, r)
	}
	d.regs = kept
}

// ---- lifecycle ----

// Shutdown starts the CLOSE handshake. The device is torn down on the loop
// turn after CLOSE_DONE arrives (or CloseTimeout expires).
func (d *Device) Shutdown() {
	switch d.state {
	case StateClosing, StateClosed:
		return
	}
	d.state = StateClosing
	d.log.Debug("sending CLOSE")
	d.write(mbim.EncodeClose(d.nextTID()))

	if d.closeTimeout > 0 {
		d.closeTimer = d.loop.Timeout(d.closeTimeout, func() {
			d.log.Warn("no CLOSE_DONE, closing anyway")
			d.finish(nil)
		})
	}
}

// fail is the fatal path for I/O errors and protocol violations.
func (d *Device) fail(err error) {
	if d.teardown != nil || d.teardownDone {
		return
	}
	d.log.WithError(err).Warn("device failed")
	d.finish(err)
}

// finish marks the device closed and defers destruction to an idle turn so
// no callback destroys the device underneath its own caller.
func (d *Device) finish(err error) {
	if d.teardown != nil || d.teardownDone {
		return
	}
	d.state = StateClosed
	d.closeTimer.Remove()
	d.teardown = d.loop.Idle(func() { d.destroy(err) })
}

func (d *Device) destroy(err error) {
	d.teardown = nil
	d.teardownDone = true

	d.outq = nil
	close(d.writes)
	if cerr := d.rwc.Close(); cerr != nil {
		d.log.WithError(cerr).Debug("close")
	}

	for _, r := range d.queue {
		release(r)
	}
	for _, r := range d.awaiting {
		release(r)
	}
	d.queue = nil
	d.awaiting = map[uint32]*request{}
	d.reasm.Reset()

	for _, r := range d.regs {
		if r.destroy != nil {
			r.destroy()
		}
	}
	d.regs = nil

	if d.onDisconnect != nil {
		d.onDisconnect(err)
	}
}

// ---- internals ----

// nextTID skips 0 and ids still awaiting a reply.
func (d *Device) nextTID() uint32 {
	for {
		d.tid++
		if d.tid == 0 {
			continue
		}
		if _, busy := d.awaiting[d.tid]; !busy {
			return d.tid
		}
	}
}

func (d *Device) write(b []byte) {
	if d.teardownDone {
		return
	}
	if d.debug {
		d.log.Debugf("> %s", hex.EncodeToString(b))
	}
	d.outq = append(d.outq, b)
	d.pumpWrites()
}

// pumpWrites hands the next queued segment to the writer goroutine. The
// writer takes one segment at a time, so the send never blocks the loop.
func (d *Device) pumpWrites() {
	if d.writing || d.teardownDone || len(d.outq) == 0 {
		return
	}
	b := d.outq[0]
	d.outq[0] = nil
	d.outq = d.outq[1:]
	d.writing = true
	d.writes <- b
}

func (d *Device) written() {
	d.writing = false
	d.pumpWrites()
}

func (d *Device) flush() {
	if d.state != StateReady {
		return
	}
	for len(d.queue) > 0 {
		if d.maxOutstanding > 0 && len(d.awaiting) >= d.maxOutstanding {
			return
		}
		r := d.queue[0]
		d.queue = d.queue[1:]
		d.awaiting[r.tid] = r
		for _, s := range r.segs {
			d.write(s)
		}
		r.segs = nil
	}
}

func (d *Device) readLoop() {
	buf := make([]byte, d.maxSegment)
	for {
		n, err := d.rwc.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			d.loop.Post(func() { d.received(chunk) })
		}
		if err != nil {
			d.loop.Post(func() { d.fail(errors.Wrap(err, "device: read")) })
			return
		}
	}
}

func (d *Device) writeLoop() {
	for b := range d.writes {
		if _, err := d.rwc.Write(b); err != nil {
			d.loop.Post(func() { d.fail(errors.Wrap(err, "device: write")) })
			return
		}
		d.loop.Post(d.written)
	}
}

// received reassembles the byte stream into segments: header first, then
// the rest of the declared length.
func (d *Device) received(chunk []byte) {
	if d.state == StateClosed {
		return
	}
	d.rbuf = append(d.rbuf, chunk...)

	for len(d.rbuf) >= mbim.HeaderSize && d.state != StateClosed {
		h, err := mbim.ParseHeader(d.rbuf)
		if err != nil {
			d.fail(errors.Wrap(ErrProtocol, err.Error()))
			return
		}
		if h.Len > d.maxSegment {
			d.fail(errors.Wrapf(ErrProtocol, "segment of %d bytes exceeds %d", h.Len, d.maxSegment))
			return
		}
		if uint32(len(d.rbuf)) < h.Len {
			return
		}

		seg := append([]byte(nil), d.rbuf[:h.Len]...)
		d.rbuf = d.rbuf[h.Len:]
		if d.debug {
			d.log.Debugf("< %s", hex.EncodeToString(seg))
		}
		d.dispatch(h, seg)
	}
}

func (d *Device) dispatch(h mbim.Header, raw []byte) {
	switch d.state {
	case StateOpening:
		if h.Type != mbim.TypeOpenDone {
			d.log.WithField("type", h.Type).Debug("ignored while opening")
			return
		}
		st, err := mbim.DoneStatus(raw[mbim.HeaderSize:])
		if err != nil {
			d.fail(errors.Wrap(ErrHandshake, err.Error()))
			return
		}
		if st != mbim.StatusSuccess {
			d.fail(errors.Wrapf(ErrHandshake, "OPEN_DONE %s", st))
			return
		}
		d.state = StateReady
		d.log.Info("device ready")
		if d.onReady != nil {
			d.onReady()
		}
		d.flush()

	case StateClosing:
		if h.Type == mbim.TypeCloseDone {
			d.log.Debug("CLOSE_DONE")
			d.finish(nil)
		}

	case StateReady:
		switch h.Type {
		case mbim.TypeCommandDone, mbim.TypeIndicateStatus, mbim.TypeFunctionError:
		default:
			d.log.WithField("type", h.Type).Debug("ignored")
			return
		}
		seg, err := mbim.ParseSegment(raw)
		if err != nil {
			d.log.WithError(err).Warn("dropping segment")
			return
		}
		m, err := d.reasm.Add(seg)
		if err != nil {
			d.log.WithError(err).WithField("tid", h.TID).Warn("dropping transaction")
			return
		}
		if m != nil {
			d.deliver(h.TID, m)
		}
	}
}

func (d *Device) deliver(tid uint32, m *mbim.Message) {
	switch m.Kind() {
	case mbim.KindCommandDone, mbim.KindFunctionError:
		r, ok := d.awaiting[tid]
		if !ok {
			d.log.WithField("tid", tid).Debug("reply without request")
			return
		}
		delete(d.awaiting, tid)
		if r.reply != nil {
			r.reply(m)
		}
		release(r)
		d.flush()

	case mbim.KindIndication:
		matched := 0
		for _, r := range append([]*registration(nil), d.regs...) {
			if r.uuid == m.UUID() && r.cid == m.CID() && d.registered(r) {
				r.notify(m)
				matched++
			}
		}
		if matched == 0 {
			d.log.WithField("service", m.UUID().ServiceName()).WithField("cid", m.CID()).Debug("unhandled indication")
		}
	}
}

// registered guards against handlers unregistered by an earlier handler of
// the same indication.
func (d *Device) registered(r *registration) bool {
	for _, x := range d.regs {
		if x == r {
			return true
		}
	}
	return false
}
