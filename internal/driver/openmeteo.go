package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"proof_of_heat"
)

const (
	openMeteoBaseURL        = "https://api.open-meteo.com/v1/forecast"
	defaultWeatherTimeout   = 10 * time.Second
	defaultWeatherTimezone  = "auto"
	maxWeatherResponseBytes = 1 << 20 // 1 MB
)

// OpenMeteo polls the Open-Meteo current-weather endpoint for outdoor
// temperature. It is a read-only device: all control verbs are
// rejected.
type OpenMeteo struct {
	latitude   float64
	longitude  float64
	timezone   string
	baseURL    string
	httpClient *http.Client
}

// OpenMeteoConfig carries the provider location from settings.
type OpenMeteoConfig struct {
	Latitude  float64
	Longitude float64
	Timezone  string
	Timeout   time.Duration

	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
}

func NewOpenMeteo(cfg OpenMeteoConfig) *OpenMeteo {
	if cfg.Timezone == "" {
		cfg.Timezone = defaultWeatherTimezone
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultWeatherTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openMeteoBaseURL
	}
	return &OpenMeteo{
		latitude:  cfg.Latitude,
		longitude: cfg.Longitude,
		timezone:  cfg.Timezone,
		baseURL:   cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Poll fetches the current weather for the configured location.
func (c *OpenMeteo) Poll(ctx context.Context) (proof_of_heat.Reading, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(c.longitude, 'f', -1, 64))
	q.Set("current_weather", "true")
	q.Set("timezone", c.timezone)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return proof_of_heat.Reading{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return proof_of_heat.Reading{}, fmt.Errorf("%w: %v", proof_of_heat.ErrDeviceUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return proof_of_heat.Reading{}, fmt.Errorf("%w: weather API returned status %d", proof_of_heat.ErrDeviceProtocol, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWeatherResponseBytes))
	if err != nil {
		return proof_of_heat.Reading{}, fmt.Errorf("%w: read body: %v", proof_of_heat.ErrDeviceProtocol, err)
	}

	var payload struct {
		CurrentWeather struct {
			Temperature float64 `json:"temperature"`
		} `json:"current_weather"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return proof_of_heat.Reading{}, fmt.Errorf("%w: decode body: %v", proof_of_heat.ErrDeviceProtocol, err)
	}

	return proof_of_heat.Reading{
		MeasuredTempC: payload.CurrentWeather.Temperature,
		Raw:           body,
	}, nil
}

func (c *OpenMeteo) SetMode(ctx context.Context, mode proof_of_heat.Mode) error {
	return c.readOnly()
}

func (c *OpenMeteo) SetTargetTemperature(ctx context.Context, celsius float64) error {
	return c.readOnly()
}

func (c *OpenMeteo) Start(ctx context.Context) error {
	return c.readOnly()
}

func (c *OpenMeteo) Stop(ctx context.Context) error {
	return c.readOnly()
}

func (c *OpenMeteo) SetPowerLimit(ctx context.Context, watts float64) error {
	return c.readOnly()
}

func (c *OpenMeteo) readOnly() error {
	return fmt.Errorf("%w: weather provider is read-only", proof_of_heat.ErrDeviceRejected)
}
