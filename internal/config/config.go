// internal/config/config.go
package config

type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Poll      PollConfig      `yaml:"poll"`
	Report    ReportConfig    `yaml:"report"`
	RadioCaps RadioCapsConfig `yaml:"radio_caps"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"` // cdc | serial
	Path       string `yaml:"path"`
	BaudRate   int    `yaml:"baud_rate"`
	TimeoutMs  int    `yaml:"timeout_ms"`
	MaxSegment uint32 `yaml:"max_segment"`

	MaxOutstanding int  `yaml:"max_outstanding"` // 0 = unlimited
	CloseTimeoutMs int  `yaml:"close_timeout_ms"`
	Debug          bool `yaml:"debug"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalMs int           `yaml:"interval_ms"`
	TimeoutMs  int           `yaml:"timeout_ms"` // per query
	Queries    []QueryConfig `yaml:"queries"`
}

// QueryConfig is one MBIM query issued every poll cycle.
type QueryConfig struct {
	Name    string `yaml:"name"`
	Service string `yaml:"service"` // short name or UUID
	CID     uint32 `yaml:"cid"`
}

// ---- REPORT ----

type ReportConfig struct {
	Path       string `yaml:"path"` // "" or "-" = stdout
	DeviceName string `yaml:"device_name"`
}

// ---- RADIO CAPS ----

type RadioCapsConfig struct {
	Slots []SlotConfig `yaml:"slots"`
}

// SlotConfig describes one slot for offline assignment planning.
type SlotConfig struct {
	Slot      int    `yaml:"slot"`
	Online    bool   `yaml:"online"`
	SIM       bool   `yaml:"sim"`
	RAF       string `yaml:"raf"`       // e.g. "gsm|umts|lte"
	Requested string `yaml:"requested"` // e.g. "lte"
	UUID      string `yaml:"uuid"`
}
