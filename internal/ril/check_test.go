// internal/ril/check_test.go
package ril

import (
	"testing"
	"time"

	"github.com/tamzrod/modem-hal/internal/loop"
)

type probeResult struct {
	calls int
	rc    *RadioCapability
}

func (r *probeResult) cb(rc *RadioCapability) {
	r.calls++
	r.rc = rc
}

func TestCheck_Success(t *testing.T) {
	io := &fakeIO{}
	var res probeResult
	Check(io, loop.New(), res.cb)

	reqs := io.open(RequestGetRadioCapability)
	if len(reqs) != 1 || reqs[0].opts.Timeout != CheckTimeout {
		t.Fatalf("expected one GET_RADIO_CAPABILITY with the probe timeout")
	}
	reqs[0].answer(ESuccess, testCap(0, rafFull).Marshal())
	if res.calls != 1 || res.rc == nil || res.rc.RAF != rafFull {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCheck_NotSupported(t *testing.T) {
	for _, st := range []Errno{ERequestNotSupported, EOperationNotAllowed} {
		io := &fakeIO{}
		var res probeResult
		Check(io, loop.New(), res.cb)
		io.open(RequestGetRadioCapability)[0].answer(st, nil)
		if res.calls != 1 || res.rc != nil {
			t.Fatalf("%s: expected a single nil result, got %+v", st, res)
		}
		if len(io.sent) != 1 {
			t.Fatalf("%s: must not retry", st)
		}
	}
}

func TestCheck_RetriesThenGivesUp(t *testing.T) {
	io := &fakeIO{}
	l := loop.New()
	var res probeResult
	p := Check(io, l, res.cb)
	p.delay = time.Millisecond

	deadline := time.Now().Add(2 * time.Second)
	for res.calls == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("probe never finished, %d requests sent", len(io.sent))
		}
		for _, r := range io.open(RequestGetRadioCapability) {
			r.answer(EGenericFailure, nil)
		}
		l.Iterate()
		time.Sleep(time.Millisecond)
	}
	if res.rc != nil {
		t.Fatalf("expected nil capability")
	}
	if len(io.sent) != CheckRetries+1 {
		t.Fatalf("expected %d attempts, got %d", CheckRetries+1, len(io.sent))
	}
}

func TestCheck_Cancel(t *testing.T) {
	io := &fakeIO{}
	var res probeResult
	p := Check(io, loop.New(), res.cb)
	req := io.open(RequestGetRadioCapability)[0]

	p.Cancel()
	if len(io.cancelled) != 1 || io.cancelled[0] != req.id {
		t.Fatalf("request not cancelled")
	}
	req.cb(ESuccess, testCap(0, rafFull).Marshal())
	if res.calls != 0 {
		t.Fatalf("cancelled probe called back")
	}
}
