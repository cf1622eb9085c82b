package driver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"proof_of_heat"
)

// WhatsMiner defaults.
const (
	DefaultMinerPort    = 4433
	DefaultMinerTimeout = 10 * time.Second

	// Power percentage applied per mode. Off goes through Stop instead.
	comfortPowerPercent = 100
	ecoPowerPercent     = 50
)

// WhatsMiner talks to a WhatsMiner unit over its TCP JSON API. The
// miner has no thermostat of its own: the target temperature lives in
// the control layer, and mode changes translate to power commands.
type WhatsMiner struct {
	host     string
	port     int
	login    string
	password string
	timeout  time.Duration

	dialer net.Dialer
}

// WhatsMinerConfig carries the connection parameters from settings.
type WhatsMinerConfig struct {
	Host     string
	Port     int
	Login    string
	Password string
	Timeout  time.Duration
}

func NewWhatsMiner(cfg WhatsMinerConfig) *WhatsMiner {
	if cfg.Port == 0 {
		cfg.Port = DefaultMinerPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultMinerTimeout
	}
	return &WhatsMiner{
		host:     cfg.Host,
		port:     cfg.Port,
		login:    cfg.Login,
		password: cfg.Password,
		timeout:  cfg.Timeout,
	}
}

// minerRequest is one command frame. Set commands carry a token derived
// from the account password and the device salt.
type minerRequest struct {
	Cmd     string `json:"cmd"`
	Param   any    `json:"param,omitempty"`
	Account string `json:"account"`
	Token   string `json:"token,omitempty"`
}

// minerResponse is the common envelope the miner answers with.
type minerResponse struct {
	Code int             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
	When int64           `json:"when"`
}

// Poll runs get.miner.status summary and maps it into a Reading.
func (m *WhatsMiner) Poll(ctx context.Context) (proof_of_heat.Reading, error) {
	resp, raw, err := m.call(ctx, "get.miner.status", "summary", "")
	if err != nil {
		return proof_of_heat.Reading{}, err
	}

	var msg struct {
		Summary map[string]json.Number `json:"summary"`
	}
	if err := json.Unmarshal(resp.Msg, &msg); err != nil {
		return proof_of_heat.Reading{}, fmt.Errorf("%w: decode summary: %v", proof_of_heat.ErrDeviceProtocol, err)
	}

	reading := proof_of_heat.Reading{Raw: raw}
	reading.MeasuredTempC = summaryFloat(msg.Summary, "environment-temperature", "temperature")
	reading.PowerWatts = summaryFloat(msg.Summary, "power", "power-consumption")
	return reading, nil
}

// SetMode maps comfort/eco to a power percentage; off stops the unit.
func (m *WhatsMiner) SetMode(ctx context.Context, mode proof_of_heat.Mode) error {
	switch mode {
	case proof_of_heat.ModeComfort:
		return m.set(ctx, "set.miner.power_percent", comfortPowerPercent)
	case proof_of_heat.ModeEco:
		return m.set(ctx, "set.miner.power_percent", ecoPowerPercent)
	case proof_of_heat.ModeOff:
		return m.Stop(ctx)
	}
	return fmt.Errorf("%w: miner has no mode %q", proof_of_heat.ErrDeviceRejected, mode)
}

// SetTargetTemperature acks without a device call: the miner exposes no
// temperature setpoint, the target is held by the control layer.
func (m *WhatsMiner) SetTargetTemperature(ctx context.Context, celsius float64) error {
	return nil
}

func (m *WhatsMiner) Start(ctx context.Context) error {
	return m.set(ctx, "set.miner.power", "on")
}

func (m *WhatsMiner) Stop(ctx context.Context) error {
	return m.set(ctx, "set.miner.power", "off")
}

func (m *WhatsMiner) SetPowerLimit(ctx context.Context, watts float64) error {
	return m.set(ctx, "set.miner.power_limit", int(watts))
}

// set fetches a fresh salt and issues one set.* command with the
// derived token.
func (m *WhatsMiner) set(ctx context.Context, cmd string, param any) error {
	salt, err := m.fetchSalt(ctx)
	if err != nil {
		return err
	}
	_, _, err = m.call(ctx, cmd, param, m.token(salt))
	return err
}

// fetchSalt runs get.device.info salt and extracts the salt string.
func (m *WhatsMiner) fetchSalt(ctx context.Context) (string, error) {
	resp, _, err := m.call(ctx, "get.device.info", "salt", "")
	if err != nil {
		return "", err
	}
	var msg struct {
		Salt string `json:"salt"`
	}
	if err := json.Unmarshal(resp.Msg, &msg); err != nil || msg.Salt == "" {
		return "", fmt.Errorf("%w: missing salt in device info", proof_of_heat.ErrDeviceProtocol)
	}
	return msg.Salt, nil
}

// token derives the per-request credential from password and salt.
func (m *WhatsMiner) token(salt string) string {
	sum := sha256.Sum256([]byte(m.password + salt))
	return hex.EncodeToString(sum[:])
}

// call opens one connection, writes the request and reads the response
// envelope. A dial failure means the device is unreachable; anything
// after an established connection is a protocol error.
func (m *WhatsMiner) call(ctx context.Context, cmd string, param any, token string) (minerResponse, json.RawMessage, error) {
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))

	dialCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	conn, err := m.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return minerResponse{}, nil, fmt.Errorf("%w: dial %s: %v", proof_of_heat.ErrDeviceUnreachable, addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(m.timeout))

	req := minerRequest{Cmd: cmd, Param: param, Account: m.login, Token: token}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return minerResponse{}, nil, fmt.Errorf("%w: write %s: %v", proof_of_heat.ErrDeviceProtocol, cmd, err)
	}

	var rawResp json.RawMessage
	if err := json.NewDecoder(conn).Decode(&rawResp); err != nil {
		return minerResponse{}, nil, fmt.Errorf("%w: read %s: %v", proof_of_heat.ErrDeviceProtocol, cmd, err)
	}
	var resp minerResponse
	if err := json.Unmarshal(rawResp, &resp); err != nil {
		return minerResponse{}, nil, fmt.Errorf("%w: decode %s: %v", proof_of_heat.ErrDeviceProtocol, cmd, err)
	}
	if resp.Code != 0 {
		return minerResponse{}, nil, fmt.Errorf("%w: %s returned code %d", proof_of_heat.ErrDeviceRejected, cmd, resp.Code)
	}
	return resp, rawResp, nil
}

// summaryFloat returns the first present numeric key from the summary.
func summaryFloat(summary map[string]json.Number, keys ...string) float64 {
	for _, k := range keys {
		if n, ok := summary[k]; ok {
			if v, err := n.Float64(); err == nil {
				return v
			}
		}
	}
	return 0
}
