package settings

import (
	"strings"
	"testing"
	"time"
)

func TestParse_FullFleet(t *testing.T) {
	t.Parallel()

	raw := []byte(`
refresh_interval: 45
devices:
  - id: miner-1
    kind: miner
    host: 192.168.1.50
    port: 4433
    login: admin
    password: secret
    refresh_interval: 15s
    timeout: 5s
  - id: weather-home
    kind: weather
    latitude: 52.52
    longitude: 13.41
    timezone: Europe/Berlin
`)

	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if time.Duration(s.RefreshInterval) != 45*time.Second {
		t.Fatalf("fleet interval: %v", time.Duration(s.RefreshInterval))
	}
	if len(s.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(s.Devices))
	}

	miner := s.Devices[0]
	if miner.ID != "miner-1" || miner.Host != "192.168.1.50" || miner.Port != 4433 {
		t.Fatalf("miner config: %+v", miner)
	}
	if s.Interval(miner) != 15*time.Second {
		t.Fatalf("per-device interval: %v", s.Interval(miner))
	}
	if miner.IOTimeout() != 5*time.Second {
		t.Fatalf("io timeout: %v", miner.IOTimeout())
	}

	weather := s.Devices[1]
	if weather.Latitude != 52.52 || weather.Longitude != 13.41 || weather.Timezone != "Europe/Berlin" {
		t.Fatalf("weather config: %+v", weather)
	}
	// No per-device values: fleet interval and default timeout apply.
	if s.Interval(weather) != 45*time.Second {
		t.Fatalf("fallback interval: %v", s.Interval(weather))
	}
	if weather.IOTimeout() != DefaultIOTimeout {
		t.Fatalf("fallback timeout: %v", weather.IOTimeout())
	}
}

func TestParse_DefaultFleetInterval(t *testing.T) {
	t.Parallel()

	s, err := Parse([]byte("devices: []"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if time.Duration(s.RefreshInterval) != DefaultRefreshInterval {
		t.Fatalf("expected default interval, got %v", time.Duration(s.RefreshInterval))
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "missing id",
			raw:  "devices:\n  - kind: miner\n    host: h",
			want: "missing id",
		},
		{
			name: "duplicate id",
			raw:  "devices:\n  - {id: a, kind: weather}\n  - {id: a, kind: weather}",
			want: "duplicate id",
		},
		{
			name: "miner without host",
			raw:  "devices:\n  - {id: m, kind: miner}",
			want: "requires host",
		},
		{
			name: "unknown kind",
			raw:  "devices:\n  - {id: x, kind: toaster}",
			want: "unknown kind",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.raw))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

func TestDuration_Forms(t *testing.T) {
	t.Parallel()

	raw := []byte(`
devices:
  - {id: a, kind: weather, refresh_interval: 90}
  - {id: b, kind: weather, refresh_interval: 2m30s}
`)
	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := time.Duration(s.Devices[0].RefreshInterval); got != 90*time.Second {
		t.Fatalf("bare seconds: %v", got)
	}
	if got := time.Duration(s.Devices[1].RefreshInterval); got != 150*time.Second {
		t.Fatalf("duration string: %v", got)
	}
}

func TestDuration_Invalid(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("devices:\n  - {id: a, kind: weather, refresh_interval: soon}"))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected invalid duration error, got %v", err)
	}
}
