// internal/device/client_test.go
package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tamzrod/modem-hal/internal/loop"
	"github.com/tamzrod/modem-hal/internal/mbim"
)

type running struct {
	l      *loop.Loop
	modem  *fakeModem
	client *Client
	stop   context.CancelFunc
}

// startClient runs a loop on its own goroutine and completes the OPEN
// handshake behind a Client.
func startClient(t *testing.T) *running {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{l: loop.New(), modem: newFakeModem(), stop: cancel}
	go r.l.Run(ctx)
	t.Cleanup(cancel)

	devc := make(chan *Device, 1)
	r.l.Post(func() {
		d, err := New(r.l, r.modem, testSegment, Options{Name: "client"})
		if err != nil {
			t.Errorf("New err=%v", err)
		}
		devc <- d
	})
	d := <-devc
	if d == nil {
		t.FailNow()
	}

	hdr := r.frame(t, 0)
	r.modem.feed(mbim.EncodeDone(mbim.TypeOpenDone, hdr.TID, mbim.StatusSuccess), 64)
	r.client = NewClient(r.l, d, 9)
	return r
}

// waitFrame is safe from helper goroutines.
func (r *running) waitFrame(i int) (mbim.Header, error) {
	deadline := time.Now().Add(2 * time.Second)
	for len(r.modem.frames()) <= i {
		if time.Now().After(deadline) {
			return mbim.Header{}, errors.New("timed out waiting for frame")
		}
		time.Sleep(time.Millisecond)
	}
	return mbim.ParseHeader(r.modem.frames()[i])
}

func (r *running) frame(t *testing.T, i int) mbim.Header {
	t.Helper()
	hdr, err := r.waitFrame(i)
	if err != nil {
		t.Fatalf("frame %d: %v", i, err)
	}
	return hdr
}

// answer waits for frame i and feeds m back under its tid.
func (r *running) answer(t *testing.T, i int, m *mbim.Message) {
	hdr, err := r.waitFrame(i)
	if err != nil {
		t.Errorf("frame %d: %v", i, err)
		return
	}
	r.reply(t, m, hdr.TID)
}

func (r *running) reply(t *testing.T, m *mbim.Message, tid uint32) {
	segs, err := m.Segments(tid, testSegment)
	if err != nil {
		t.Errorf("Segments err=%v", err)
		return
	}
	for _, s := range segs {
		r.modem.feed(s, 16)
	}
}

func (r *running) outstanding() int {
	n := make(chan int, 1)
	r.l.Post(func() { n <- r.client.dev.Outstanding() })
	return <-n
}

func TestClient_Do(t *testing.T) {
	r := startClient(t)

	done := mbim.NewCommandDone(mbim.UUIDBasicConnect, mbim.CIDRadioState, mbim.StatusSuccess)
	if err := done.SetArguments(mbim.SigRadioState, 1, 1); err != nil {
		t.Fatalf("SetArguments err=%v", err)
	}
	go r.answer(t, 1, done)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := r.client.Query(ctx, mbim.UUIDBasicConnect, mbim.CIDRadioState)
	if err != nil {
		t.Fatalf("Query err=%v", err)
	}
	rs, err := mbim.ParseRadioState(m)
	if err != nil || !rs.On() {
		t.Fatalf("unexpected radio state %+v err=%v", rs, err)
	}
}

func TestClient_DoFailedStatus(t *testing.T) {
	r := startClient(t)

	done := mbim.NewCommandDone(mbim.UUIDBasicConnect, mbim.CIDSignalState, mbim.StatusBusy)
	if err := done.SetArguments(""); err != nil {
		t.Fatalf("SetArguments err=%v", err)
	}
	go r.answer(t, 1, done)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	m, err := r.client.Query(ctx, mbim.UUIDBasicConnect, mbim.CIDSignalState)
	var st mbim.Status
	if !errors.As(err, &st) || st != mbim.StatusBusy {
		t.Fatalf("expected StatusBusy, got %v", err)
	}
	if m == nil {
		t.Fatalf("the failed completion must still be returned")
	}
}

func TestClient_DoContextCancelled(t *testing.T) {
	r := startClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.client.Query(ctx, mbim.UUIDBasicConnect, mbim.CIDSignalState); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.outstanding() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("cancelled command still outstanding")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestClient_Watch(t *testing.T) {
	r := startClient(t)

	got := make(chan *mbim.Message, 1)
	stop := r.client.Watch(mbim.UUIDBasicConnect, mbim.CIDSignalState, func(m *mbim.Message) { got <- m })
	defer stop()

	ind := mbim.NewIndication(mbim.UUIDBasicConnect, mbim.CIDSignalState)
	if err := ind.SetArguments(mbim.SigSignalState, 20, 99, 5, 0, 0); err != nil {
		t.Fatalf("SetArguments err=%v", err)
	}
	// the registration is queued on the loop ahead of the bytes read below
	r.reply(t, ind, 0)

	select {
	case m := <-got:
		s, err := mbim.ParseSignalState(m)
		if err != nil || s.RSSI != 20 {
			t.Fatalf("unexpected signal %+v err=%v", s, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("indication not delivered")
	}
}

func TestClient_Close(t *testing.T) {
	r := startClient(t)

	go func() {
		// OPEN, then CLOSE
		hdr, err := r.waitFrame(1)
		if err != nil || hdr.Type != mbim.TypeClose {
			t.Errorf("expected CLOSE, got %s err=%v", hdr.Type, err)
			return
		}
		r.modem.feed(mbim.EncodeDone(mbim.TypeCloseDone, hdr.TID, mbim.StatusSuccess), 64)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Close(ctx); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if !r.modem.isClosed() {
		t.Fatalf("byte stream not closed")
	}
}

func TestConnect_OpenError(t *testing.T) {
	l := loop.New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Connect(ctx, l, Endpoint{Kind: KindCDC, Path: "/nonexistent/cdc-wdm9"}, testSegment, Options{})
	if err == nil {
		t.Fatalf("expected open error")
	}
	if _, err := Connect(ctx, l, Endpoint{Kind: "usb"}, testSegment, Options{}); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestClient_DoneOnHangup(t *testing.T) {
	r := startClient(t)

	r.modem.Close()
	select {
	case <-r.client.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("Done not closed after hangup")
	}
	if err := r.client.Err(); err == nil || errors.Is(err, ErrClosed) {
		t.Fatalf("expected read error, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := r.client.Query(ctx, mbim.UUIDBasicConnect, mbim.CIDRadioState); err == nil {
		t.Fatalf("expected error from a torn-down device")
	}
}

func TestClient_WatchStopIsIdempotent(t *testing.T) {
	r := startClient(t)

	stop := r.client.Watch(mbim.UUIDBasicConnect, mbim.CIDSignalState, func(*mbim.Message) {})
	other := r.client.Watch(mbim.UUIDBasicConnect, mbim.CIDRadioState, func(*mbim.Message) {})

	done := make(chan struct{})
	go func() {
		stop()
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("second stop blocked")
	}

	regs := make(chan int, 1)
	r.l.Post(func() { regs <- len(r.client.dev.regs) })
	if n := <-regs; n != 1 {
		t.Fatalf("expected 1 registration left, got %d", n)
	}

	// the loop is gone; stop must still return
	r.stop()
	done2 := make(chan struct{})
	go func() {
		other()
		close(done2)
	}()
	select {
	case <-done2:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop blocked without a running loop")
	}
}

func TestConnect_ContextExpiresBeforeOpenDone(t *testing.T) {
	l := loop.New()
	lctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(lctx)

	modem := newFakeModem()
	ctx, ocancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer ocancel()

	// the modem never answers OPEN
	_, err := connect(ctx, l, modem, testSegment, Options{Name: "silent"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !modem.isClosed() {
		if time.Now().After(deadline) {
			t.Fatalf("channel left open after a timed-out connect")
		}
		time.Sleep(time.Millisecond)
	}
}
