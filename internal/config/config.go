// Package config loads the typed Configuration Record: gopkg.in/yaml.v3
// into a plain Go struct, with an embedded default used when no path is
// supplied.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ccroswhite/concentrate/internal/gwerr"
	"github.com/ccroswhite/concentrate/internal/hal"
	"github.com/ccroswhite/concentrate/internal/radio"
)

//go:embed default.yaml
var defaultYAML []byte

// Board mirrors hal.BoardConfig for YAML decoding.
type Board struct {
	LoRaWANPublic    bool   `yaml:"lorawan_public"`
	ClockSourceRadio int    `yaml:"clock_source_radio"`
	SPIDevicePath    string `yaml:"spi_device_path"`
}

// Radio mirrors hal.RadioConfig for YAML decoding.
type Radio struct {
	ID         int     `yaml:"id"`
	FreqHz     uint32  `yaml:"freq_hz"`
	RSSIOffset float32 `yaml:"rssi_offset"`
	Model      string  `yaml:"model"`
	TxEnable   bool    `yaml:"tx_enable"`
}

// Channel mirrors hal.ChannelConfig for YAML decoding.
type Channel struct {
	RadioID  int   `yaml:"radio_id"`
	IFOffset int32 `yaml:"if_offset"`
}

// Gain mirrors hal.GainEntry for YAML decoding.
type Gain struct {
	RFPowerDBm  int8  `yaml:"rf_power_dbm"`
	DigitalGain uint8 `yaml:"digital_gain"`
	PAGain      uint8 `yaml:"pa_gain"`
	MixGain     uint8 `yaml:"mix_gain"`
}

// Network carries the UDP/serve-role addresses and timing the daemon needs
// at startup.
type Network struct {
	ListenAddr  string `yaml:"listen_addr"`
	PublishAddr string `yaml:"publish_addr"`
	IntervalMs  int    `yaml:"interval_ms"`
	GPSDevice   string `yaml:"gps_device"`
	WebAddr     string `yaml:"web_addr"`
}

// LongFi carries the coordinator's network addresses and codec selection.
type LongFi struct {
	RadioAddr        string `yaml:"radio_addr"`
	RadioListenAddr  string `yaml:"radio_listen_addr"`
	ClientAddr       string `yaml:"client_addr"`
	ClientListenAddr string `yaml:"client_listen_addr"`
	UseExternalCodec bool   `yaml:"use_external_codec"`
}

// Config is the Configuration Record plus the ambient network/runtime
// fields the configuration file carries.
type Config struct {
	Board    Board     `yaml:"board"`
	Radios   []Radio   `yaml:"radios"`
	Channels []Channel `yaml:"channels"`
	Gains    []Gain    `yaml:"gains"`
	Network  Network   `yaml:"network"`
	LongFi   LongFi    `yaml:"longfi"`
}

// Load reads and parses path, or falls back to the embedded default
// configuration when path is empty.
func Load(path string) (*Config, error) {
	var data []byte
	if path == "" {
		data = defaultYAML
	} else {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, gwerr.New(gwerr.KindConfiguration, "config.Load", fmt.Errorf("reading %s: %w", path, err))
		}
		data = b
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, gwerr.New(gwerr.KindConfiguration, "config.Load", fmt.Errorf("parsing config: %w", err))
	}
	if cfg.Network.IntervalMs == 0 {
		cfg.Network.IntervalMs = 10
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Gains) > 16 {
		return gwerr.New(gwerr.KindConfiguration, "config.validate", fmt.Errorf("gain table must have 1..16 entries, got %d", len(c.Gains)))
	}
	for _, ch := range c.Channels {
		found := false
		for _, r := range c.Radios {
			if r.ID == ch.RadioID {
				found = true
				break
			}
		}
		if !found {
			return gwerr.New(gwerr.KindConfiguration, "config.validate", fmt.Errorf("channel references unknown radio id %d", ch.RadioID))
		}
	}
	return nil
}

// ApplyToHAL applies board, then each radio, then each channel in index
// order, then (if present) the gain table.
func (c *Config) ApplyToHAL(h *hal.Handle) error {
	if err := h.ConfigBoard(hal.BoardConfig{
		LoRaWANPublic:    c.Board.LoRaWANPublic,
		ClockSourceRadio: radio.RadioIndex(c.Board.ClockSourceRadio),
		SPIDevicePath:    c.Board.SPIDevicePath,
	}); err != nil {
		return err
	}
	for _, r := range c.Radios {
		if err := h.ConfigRxRF(hal.RadioConfig{
			ID:         radio.RadioIndex(r.ID),
			FreqHz:     r.FreqHz,
			RSSIOffset: r.RSSIOffset,
			Model:      r.Model,
			TxEnable:   r.TxEnable,
		}); err != nil {
			return err
		}
	}
	for _, ch := range c.Channels {
		if err := h.ConfigChannel(hal.ChannelConfig{
			RadioID:  radio.RadioIndex(ch.RadioID),
			IFOffset: ch.IFOffset,
		}); err != nil {
			return err
		}
	}
	if len(c.Gains) > 0 {
		entries := make([]hal.GainEntry, len(c.Gains))
		for i, g := range c.Gains {
			entries[i] = hal.GainEntry{
				RFPowerDBm:  g.RFPowerDBm,
				DigitalGain: g.DigitalGain,
				PAGain:      g.PAGain,
				MixGain:     g.MixGain,
			}
		}
		if err := h.ConfigTxGain(entries); err != nil {
			return err
		}
	}
	return nil
}
