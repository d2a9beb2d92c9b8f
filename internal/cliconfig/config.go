// Package cliconfig layers usblog command configuration: defaults, then a
// TOML file, then USBLOG_* environment variables, then command-line flags.
package cliconfig

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ardnew/usblog/device"
	"github.com/ardnew/usblog/device/class/cdc"
	"github.com/ardnew/usblog/host/archive"
	"github.com/ardnew/usblog/pkg"
)

// DefaultBusDir is the default FIFO bus directory.
const DefaultBusDir = "/tmp/usblog-bus"

// Output formats for received records.
const (
	FormatConsole = "console"
	FormatRaw     = "raw"
)

// MinQueueSize is the smallest accepted log queue.
const MinQueueSize = 64

// Config holds configuration for usblog-device and usblog-cat.
type Config struct {
	BusDir    string
	LogLevel  string
	LogFormat string

	// usblog-device
	Interval    time.Duration
	TimerPeriod time.Duration
	QueueSize   int
	CPUProfile  string
	HeapProfile string
	PprofAddr   string

	// usblog-cat
	VID       int
	PID       int
	Timeout   time.Duration
	Filter    string
	Format    string
	Color     bool
	Archive   string
	Fsync     string
	MaxRecord int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BusDir:      DefaultBusDir,
		LogLevel:    "warn",
		LogFormat:   "text",
		Interval:    250 * time.Millisecond,
		TimerPeriod: device.DefaultTimerPeriod,
		QueueSize:   1024,
		VID:         cdc.DefaultVendorID,
		PID:         cdc.DefaultProductID,
		Timeout:     5 * time.Second,
		Format:      FormatConsole,
		Fsync:       archive.FsyncModeInterval.String(),
		MaxRecord:   4096,
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.BusDir == "" {
		c.BusDir = DefaultBusDir
	}
	if _, err := pkg.ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := pkg.ParseLogFormat(c.LogFormat); err != nil {
		return err
	}

	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.TimerPeriod <= 0 || c.TimerPeriod.Microseconds() > math.MaxUint32 {
		return fmt.Errorf("timer period must be between 1us and %v", time.Duration(math.MaxUint32)*time.Microsecond)
	}
	if c.QueueSize < MinQueueSize {
		return fmt.Errorf("queue size must be at least %d", MinQueueSize)
	}

	if c.VID < 0 || c.VID > math.MaxUint16 || c.PID < 0 || c.PID > math.MaxUint16 {
		return fmt.Errorf("vid and pid must fit in 16 bits")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	c.Format = strings.ToLower(c.Format)
	switch c.Format {
	case "":
		c.Format = FormatConsole
	case FormatConsole, FormatRaw:
	default:
		return fmt.Errorf("format must be %q or %q", FormatConsole, FormatRaw)
	}
	if _, err := archive.ParseFsyncMode(c.Fsync); err != nil {
		return err
	}
	if c.MaxRecord <= 0 {
		return fmt.Errorf("max record must be positive")
	}
	return nil
}

// ApplyLogging configures the diagnostic logger from LogLevel and LogFormat.
func (c *Config) ApplyLogging() error {
	level, err := pkg.ParseLogLevel(c.LogLevel)
	if err != nil {
		return err
	}
	format, err := pkg.ParseLogFormat(c.LogFormat)
	if err != nil {
		return err
	}
	pkg.SetLogFormat(format)
	pkg.SetLogLevel(level)
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setIDFromString parses a USB vendor or product ID, hexadecimal with or
// without a 0x prefix.
func (s *configSetter) setIDFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	id, err := ParseID(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = int(id)
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}

// ParseID parses a 16-bit USB ID written in hexadecimal.
func ParseID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: usb id %q", pkg.ErrInvalidParameter, s)
	}
	return uint16(v), nil
}
