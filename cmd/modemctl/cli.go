// cmd/modemctl/cli.go
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/modem-hal/internal/config"
	"github.com/tamzrod/modem-hal/internal/device"
	"github.com/tamzrod/modem-hal/internal/loop"
	"github.com/tamzrod/modem-hal/internal/mbim"
)

// CLI is the root command structure for modemctl.
type CLI struct {
	Config     string `short:"c" help:"YAML config file" type:"path"`
	Device     string `short:"d" help:"Control channel path (overrides device.path)"`
	Kind       string `help:"Control channel kind: cdc or serial (overrides device.kind)"`
	Baud       int    `help:"Serial baud rate (overrides device.baud_rate)"`
	MaxSegment uint32 `name:"max-segment" help:"Largest control segment in bytes (overrides device.max_segment)"`
	Debug      bool   `help:"Dump control traffic (implies --log-level=debug)"`

	LogLevel  string        `name:"log-level" default:"info" enum:"trace,debug,info,warn,error" help:"Log level"`
	LogFormat string        `name:"log-format" default:"text" enum:"text,json" help:"Log format"`
	Timeout   time.Duration `default:"10s" help:"Timeout for opening the device and for single commands"`

	Caps       CapsCmd       `cmd:"" help:"Show device capabilities"`
	Subscriber SubscriberCmd `cmd:"" help:"Show subscriber ready status"`
	Radio      RadioCmd      `cmd:"" help:"Show or switch the radio"`
	Monitor    MonitorCmd    `cmd:"" help:"Print Basic Connect indications as JSON lines"`
	Poll       PollCmd       `cmd:"" help:"Run the configured queries periodically and report results and device health"`
	RadioCaps  RadioCapsCmd  `cmd:"" name:"radio-caps" help:"Radio capability planning"`
}

func (g *CLI) setupLogging() error {
	lvl, err := logrus.ParseLevel(g.LogLevel)
	if err != nil {
		return errors.Wrap(err, "log level")
	}
	if g.Debug && lvl < logrus.DebugLevel {
		lvl = logrus.DebugLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetOutput(os.Stderr)

	switch g.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// loadConfig reads the config file (if any), applies command-line overrides
// and only then validates and normalizes.
func (g *CLI) loadConfig() (*config.Config, error) {
	var raw []byte
	if g.Config != "" {
		b, err := os.ReadFile(g.Config)
		if err != nil {
			return nil, errors.Wrap(err, "config: read")
		}
		raw = b
	}

	cfg, err := config.Decode(raw)
	if err != nil {
		return nil, err
	}
	g.applyOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func (g *CLI) applyOverrides(cfg *config.Config) {
	d := &cfg.Device
	if g.Device != "" {
		d.Path = g.Device
	}
	if g.Kind != "" {
		d.Kind = g.Kind
	}
	if g.Baud > 0 {
		d.BaudRate = g.Baud
	}
	if g.MaxSegment > 0 {
		d.MaxSegment = g.MaxSegment
	}
	if g.Debug {
		d.Debug = true
	}
}

// ---- SESSION ----

// session is one open device with its loop running on a background
// goroutine.
type session struct {
	name    string
	client  *device.Client
	log     *logrus.Entry
	timeout time.Duration
	stop    context.CancelFunc // loop
}

func (g *CLI) connect(ctx context.Context, cfg *config.Config) (*session, error) {
	d := cfg.Device
	if d.Path == "" {
		return nil, errors.New("no device: set --device or device.path")
	}
	log := logrus.WithField("device", d.Name)

	l := loop.New()
	lctx, stop := context.WithCancel(context.Background())
	go l.Run(lctx)

	octx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	c, err := device.Connect(octx, l,
		device.Endpoint{
			Kind:     d.Kind,
			Path:     d.Path,
			BaudRate: d.BaudRate,
			Timeout:  time.Duration(d.TimeoutMs) * time.Millisecond,
		},
		d.MaxSegment,
		device.Options{
			Name:           d.Name,
			MaxOutstanding: d.MaxOutstanding,
			CloseTimeout:   time.Duration(d.CloseTimeoutMs) * time.Millisecond,
			Debug:          d.Debug,
			Logger:         log,
		},
	)
	if err != nil {
		stop()
		return nil, err
	}
	log.Debug("device ready")
	return &session{name: d.Name, client: c, log: log, timeout: g.Timeout, stop: stop}, nil
}

// query runs one Basic Connect query under the session timeout.
func (s *session) query(ctx context.Context, cid uint32) (*mbim.Message, error) {
	return s.do(ctx, mbim.Query(mbim.UUIDBasicConnect, cid))
}

func (s *session) do(ctx context.Context, m *mbim.Message) (*mbim.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Do(ctx, m)
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.client.Close(ctx); err != nil {
		s.log.WithError(err).Warn("close failed")
	}
	s.stop()
}

// ---- OUTPUT ----

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode output")
	}
	data = append(data, '\n')
	_, err = stdout.Write(data)
	return err
}
