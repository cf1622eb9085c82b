package settings

import (
	"fmt"
	"os"
	"time"

	"proof_of_heat"

	"gopkg.in/yaml.v3"
)

// Fleet-wide fallbacks applied when a device omits a value.
const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultIOTimeout       = 10 * time.Second
)

// Duration accepts either a Go duration string ("30s") or a bare
// number of seconds, matching what operators tend to write.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs int64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// DeviceConfig is one device descriptor from the settings file.
// Connection parameters are driver-specific: host/port/login/password
// for miners, latitude/longitude/timezone for weather providers.
type DeviceConfig struct {
	ID              string   `yaml:"id"`
	Kind            string   `yaml:"kind"` // miner | weather
	RefreshInterval Duration `yaml:"refresh_interval"`
	Timeout         Duration `yaml:"timeout"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Login    string `yaml:"login"`
	Password string `yaml:"password"`

	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Timezone  string  `yaml:"timezone"`
}

// Settings is the device fleet description consumed at startup. It is
// read-only to the core; a future reload would go through re-register,
// never field mutation.
type Settings struct {
	RefreshInterval Duration       `yaml:"refresh_interval"` // fleet-wide default
	Devices         []DeviceConfig `yaml:"devices"`
}

// Load reads and validates the settings file.
func Load(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates settings from raw YAML.
func Parse(raw []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = Duration(DefaultRefreshInterval)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	seen := make(map[string]struct{}, len(s.Devices))
	for i, d := range s.Devices {
		if d.ID == "" {
			return fmt.Errorf("devices[%d]: missing id", i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("devices[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}

		switch proof_of_heat.DeviceKind(d.Kind) {
		case proof_of_heat.KindMiner:
			if d.Host == "" {
				return fmt.Errorf("device %q: miner requires host", d.ID)
			}
		case proof_of_heat.KindWeatherProvider:
			// lat/lon of 0,0 is technically valid, accept as-is
		default:
			return fmt.Errorf("device %q: unknown kind %q", d.ID, d.Kind)
		}
	}
	return nil
}

// Interval returns the device's refresh interval, falling back to the
// fleet-wide default.
func (s *Settings) Interval(d DeviceConfig) time.Duration {
	if d.RefreshInterval > 0 {
		return time.Duration(d.RefreshInterval)
	}
	return time.Duration(s.RefreshInterval)
}

// IOTimeout returns the device's configured I/O timeout or the default.
func (d DeviceConfig) IOTimeout() time.Duration {
	if d.Timeout > 0 {
		return time.Duration(d.Timeout)
	}
	return DefaultIOTimeout
}
