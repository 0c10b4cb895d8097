// internal/device/client.go
package device

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/tamzrod/modem-hal/internal/loop"
	"github.com/tamzrod/modem-hal/internal/mbim"
)

var (
	// ErrClosed reports a device torn down before the call completed.
	ErrClosed = errors.New("device: closed")

	// ErrRejected reports a command the device would not queue.
	ErrRejected = errors.New("device: command rejected")
)

// Client is the blocking face of a Device for goroutines other than the
// loop's. The loop must be running (loop.Run) for any call to complete.
type Client struct {
	loop *loop.Loop
	dev  *Device
	gid  uint32

	gone chan struct{}
	err  error // set before gone is closed
}

func newClient(l *loop.Loop, d *Device, gid uint32) *Client {
	return &Client{loop: l, dev: d, gid: gid, gone: make(chan struct{})}
}

// disconnected runs on the loop goroutine.
func (c *Client) disconnected(err error) {
	select {
	case <-c.gone:
		return
	default:
	}
	c.err = err
	close(c.gone)
}

// Connect opens ep, performs the OPEN handshake on l and returns once the
// device is ready.
func Connect(ctx context.Context, l *loop.Loop, ep Endpoint, maxSegment uint32, opts Options) (*Client, error) {
	rwc, err := Open(ep)
	if err != nil {
		return nil, err
	}
	return connect(ctx, l, rwc, maxSegment, opts)
}

// connect owns rwc: it is closed on every failure path, including ctx
// expiring before OPEN_DONE.
func connect(ctx context.Context, l *loop.Loop, rwc io.ReadWriteCloser, maxSegment uint32, opts Options) (*Client, error) {
	ready := make(chan *Client, 1)
	var c *Client // loop goroutine only

	l.Post(func() {
		d, err := New(l, rwc, maxSegment, opts)
		if err != nil {
			_ = rwc.Close()
			c = newClient(l, nil, 1)
			c.disconnected(err)
			ready <- c
			return
		}
		c = newClient(l, d, 1)
		d.SetReadyHandler(func() { ready <- c })
		d.SetDisconnectHandler(func(err error) {
			if err == nil {
				err = ErrClosed
			}
			c.disconnected(err)
			select {
			case ready <- c:
			default:
			}
		})
	})

	var cl *Client
	select {
	case cl = <-ready:
	case <-ctx.Done():
		err := errors.Wrap(ctx.Err(), "device: open")
		l.Post(func() {
			// no CLOSE handshake: the caller never gets this device
			if c != nil && c.dev != nil {
				c.dev.fail(err)
			}
		})
		return nil, err
	}
	select {
	case <-cl.gone:
		return nil, cl.err
	default:
	}
	return cl, nil
}

// NewClient wraps an existing device and takes over its disconnect handler.
// gid groups the client's commands and watches so Close can cancel them
// together.
func NewClient(l *loop.Loop, d *Device, gid uint32) *Client {
	c := newClient(l, d, gid)
	l.Post(func() {
		d.SetDisconnectHandler(func(err error) {
			if err == nil {
				err = ErrClosed
			}
			c.disconnected(err)
		})
	})
	return c
}

// Done is closed once the device has been torn down.
func (c *Client) Done() <-chan struct{} { return c.gone }

// Err is the reason for teardown: ErrClosed after an orderly close. Only
// meaningful once Done is closed.
func (c *Client) Err() error {
	select {
	case <-c.gone:
		return c.err
	default:
		return nil
	}
}

// Do sends m and waits for the reply. A failed status comes back as the
// error together with the message.
func (c *Client) Do(ctx context.Context, m *mbim.Message) (*mbim.Message, error) {
	type result struct {
		msg *mbim.Message
		err error
	}
	done := make(chan result, 1)
	var tid uint32 // loop goroutine only

	c.loop.Post(func() {
		replied := false
		tid = c.dev.Send(c.gid, m, func(r *mbim.Message) {
			replied = true
			done <- result{msg: r, err: r.Err()}
		}, func() {
			if !replied {
				done <- result{err: ErrClosed}
			}
		})
		if tid == 0 {
			done <- result{err: ErrRejected}
		}
	})

	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		c.loop.Post(func() {
			if tid != 0 {
				c.dev.Cancel(tid)
			}
		})
		return nil, ctx.Err()
	}
}

// Query sends an empty query for (service, cid).
func (c *Client) Query(ctx context.Context, service mbim.UUID, cid uint32) (*mbim.Message, error) {
	return c.Do(ctx, mbim.Query(service, cid))
}

// Watch delivers indications of (service, cid) to fn on the loop goroutine
// until the returned stop function is called or the device goes away.
// stop never blocks and may be called more than once.
func (c *Client) Watch(service mbim.UUID, cid uint32, fn func(*mbim.Message)) (stop func()) {
	var id uint32 // loop goroutine only
	c.loop.Post(func() {
		id = c.dev.Register(c.gid, service, cid, fn, nil)
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			// queued behind the Register above
			c.loop.Post(func() {
				if id != 0 {
					c.dev.Unregister(id)
				}
			})
		})
	}
}

// Outstanding reports the commands awaiting a reply, 0 once torn down.
func (c *Client) Outstanding() int {
	n := make(chan int, 1)
	c.loop.Post(func() { n <- c.dev.Outstanding() })
	select {
	case v := <-n:
		return v
	case <-c.gone:
		return 0
	}
}

// Close cancels the client's commands and watches, runs the CLOSE handshake
// and waits for teardown.
func (c *Client) Close(ctx context.Context) error {
	c.loop.Post(func() {
		c.dev.CancelGroup(c.gid)
		c.dev.UnregisterGroup(c.gid)
		c.dev.Shutdown()
	})

	select {
	case <-c.gone:
		if errors.Is(c.err, ErrClosed) {
			return nil
		}
		return c.err
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "device: close")
	}
}
