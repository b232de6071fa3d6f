// Package okx adapts the OKX v5 API to the venue interfaces: a signed
// REST trading client and websocket public/private feed clients.
// Decimal strings convert to scaled integers exactly once, here.
package okx

import (
	"time"

	"main/internal/schema"
)

const (
	defaultRestURL      = "https://www.okx.com"
	defaultPublicWsURL  = "wss://ws.okx.com:8443/ws/v5/public"
	defaultPrivateWsURL = "wss://ws.okx.com:8443/ws/v5/private"

	requestTimeout = 10 * time.Second
)

// Credentials hold the API key set for the private surfaces.
type Credentials struct {
	APIKey     string `json:"apiKey"`
	SecretKey  string `json:"secretKey"`
	Passphrase string `json:"passphrase"`
}

// Config wires one adapter instance to a venue deployment.
type Config struct {
	RestURL      string
	PublicWsURL  string
	PrivateWsURL string
	Credentials  Credentials
	// Simulated routes orders to the demo-trading environment.
	Simulated bool
}

func (c Config) withDefaults() Config {
	if c.RestURL == "" {
		c.RestURL = defaultRestURL
	}
	if c.PublicWsURL == "" {
		c.PublicWsURL = defaultPublicWsURL
	}
	if c.PrivateWsURL == "" {
		c.PrivateWsURL = defaultPrivateWsURL
	}
	return c
}

// tdMode renders the instrument's trade mode the way the trade API
// expects it.
func tdMode(inst schema.Instrument) string {
	switch inst.TradeMode {
	case schema.TradeModeIsolated:
		return "isolated"
	case schema.TradeModeCross:
		return "cross"
	default:
		return "cash"
	}
}
