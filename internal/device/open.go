// internal/device/open.go
package device

import (
	"io"
	"os"
	"time"

	"github.com/goburrow/serial"
	"github.com/pkg/errors"
)

// Channel kinds.
const (
	KindCDC    = "cdc"    // cdc-wdm character device
	KindSerial = "serial" // tty carrying raw MBIM framing
)

// Endpoint describes where the control channel lives.
type Endpoint struct {
	Kind     string
	Path     string
	BaudRate int
	Timeout  time.Duration // serial read timeout; reads are retried on expiry
}

// Open opens the control channel byte stream.
func Open(ep Endpoint) (io.ReadWriteCloser, error) {
	switch ep.Kind {
	case "", KindCDC:
		f, err := os.OpenFile(ep.Path, os.O_RDWR, 0)
		if err != nil {
			return nil, errors.Wrapf(err, "device: open %s", ep.Path)
		}
		return f, nil

	case KindSerial:
		baud := ep.BaudRate
		if baud <= 0 {
			baud = 115200
		}
		timeout := ep.Timeout
		if timeout <= 0 {
			timeout = time.Second
		}
		p, err := serial.Open(&serial.Config{
			Address:  ep.Path,
			BaudRate: baud,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
			Timeout:  timeout,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "device: open serial %s", ep.Path)
		}
		return &serialPort{Port: p}, nil
	}
	return nil, errors.Errorf("device: unknown channel kind %q", ep.Kind)
}

// serialPort turns read timeouts into retries so the reader goroutine only
// sees real errors.
type serialPort struct {
	serial.Port
}

func (p *serialPort) Read(b []byte) (int, error) {
	for {
		n, err := p.Port.Read(b)
		if err == serial.ErrTimeout {
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}
