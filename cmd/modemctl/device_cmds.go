// cmd/modemctl/device_cmds.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/tamzrod/modem-hal/internal/config"
	"github.com/tamzrod/modem-hal/internal/mbim"
	"github.com/tamzrod/modem-hal/internal/report"
)

// withSession loads config, connects, runs fn and closes the device.
func (g *CLI) withSession(fn func(ctx context.Context, s *session) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	return g.runSession(cfg, fn)
}

// runSession connects to cfg's device until fn returns or the process is
// interrupted.
func (g *CLI) runSession(cfg *config.Config, fn func(ctx context.Context, s *session) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := g.connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(ctx, s)
}

// --- caps ---

type CapsCmd struct{}

func (c *CapsCmd) Run(globals *CLI) error {
	return globals.withSession(func(ctx context.Context, s *session) error {
		m, err := s.query(ctx, mbim.CIDDeviceCaps)
		if err != nil {
			return errors.Wrap(err, "device caps")
		}
		caps, err := mbim.ParseDeviceCaps(m)
		if err != nil {
			return err
		}
		return printJSON(caps)
	})
}

// --- subscriber ---

type SubscriberCmd struct{}

func (c *SubscriberCmd) Run(globals *CLI) error {
	return globals.withSession(func(ctx context.Context, s *session) error {
		m, err := s.query(ctx, mbim.CIDSubscriberReadyStatus)
		if err != nil {
			return errors.Wrap(err, "subscriber ready status")
		}
		st, err := mbim.ParseSubscriberReadyStatus(m)
		if err != nil {
			return err
		}
		return printJSON(st)
	})
}

// --- radio ---

type RadioCmd struct {
	State string `arg:"" optional:"" help:"on or off; omit to show the current state"`
}

type radioOutput struct {
	*mbim.RadioState
	On bool `json:"on"`
}

func (c *RadioCmd) Run(globals *CLI) error {
	var req *mbim.Message
	switch c.State {
	case "":
	case "on":
		req = mbim.SetRadioState(true)
	case "off":
		req = mbim.SetRadioState(false)
	default:
		return errors.Errorf("radio: want on or off, got %q", c.State)
	}

	return globals.withSession(func(ctx context.Context, s *session) error {
		var (
			m   *mbim.Message
			err error
		)
		if req != nil {
			m, err = s.do(ctx, req)
		} else {
			m, err = s.query(ctx, mbim.CIDRadioState)
		}
		if err != nil {
			return errors.Wrap(err, "radio state")
		}
		r, err := mbim.ParseRadioState(m)
		if err != nil {
			return err
		}
		return printJSON(radioOutput{RadioState: r, On: r.On()})
	})
}

// --- monitor ---

// Basic Connect notifications worth watching.
var monitorCIDs = []uint32{
	mbim.CIDSubscriberReadyStatus,
	mbim.CIDRadioState,
	mbim.CIDRegisterState,
	mbim.CIDSignalState,
}

type MonitorCmd struct {
	For time.Duration `help:"Stop after this long (0 = until interrupted)"`
}

func (c *MonitorCmd) Run(globals *CLI) error {
	return globals.withSession(func(ctx context.Context, s *session) error {
		sink := report.NewSink(stdout)
		for _, cid := range monitorCIDs {
			stop := s.client.Watch(mbim.UUIDBasicConnect, cid, func(m *mbim.Message) {
				if err := sink.WriteIndication(s.name, m); err != nil {
					s.log.WithError(err).Warn("indication write failed")
				}
			})
			defer stop()
		}

		if c.For > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.For)
			defer cancel()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-s.client.Done():
			return errors.Wrap(s.client.Err(), "device lost")
		}
	})
}
