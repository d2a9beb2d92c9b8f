package cliconfig

import (
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.VID != 0x5824 || cfg.PID != 0x27dd {
		t.Errorf("VID:PID = %04x:%04x", cfg.VID, cfg.PID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		check   func(*testing.T, Config)
	}{
		{
			name:   "empty bus dir defaults",
			modify: func(c *Config) { c.BusDir = "" },
			check: func(t *testing.T, c Config) {
				if c.BusDir != DefaultBusDir {
					t.Errorf("BusDir = %q", c.BusDir)
				}
			},
		},
		{
			name:   "format normalized",
			modify: func(c *Config) { c.Format = "RAW" },
			check: func(t *testing.T, c Config) {
				if c.Format != FormatRaw {
					t.Errorf("Format = %q", c.Format)
				}
			},
		},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true, nil},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true, nil},
		{"zero interval", func(c *Config) { c.Interval = 0 }, true, nil},
		{"zero timer period", func(c *Config) { c.TimerPeriod = 0 }, true, nil},
		{"huge timer period", func(c *Config) { c.TimerPeriod = 2 * time.Hour }, true, nil},
		{"small queue", func(c *Config) { c.QueueSize = 8 }, true, nil},
		{"vid too large", func(c *Config) { c.VID = 0x10000 }, true, nil},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true, nil},
		{"bad format", func(c *Config) { c.Format = "xml" }, true, nil},
		{"bad fsync", func(c *Config) { c.Fsync = "sometimes" }, true, nil},
		{"zero max record", func(c *Config) { c.MaxRecord = 0 }, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint16
		wantErr bool
	}{
		{"5824", 0x5824, false},
		{"0x27dd", 0x27dd, false},
		{"0X27DD", 0x27dd, false},
		{" 1 ", 0x0001, false},
		{"10000", 0, true},
		{"zz", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseID(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseID(%q) = %#04x, want %#04x", tt.in, got, tt.want)
			}
		})
	}
}
