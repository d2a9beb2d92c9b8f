package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations and IDs to make
// TOML friendly.
type FileConfig struct {
	BusDir      string `toml:"bus_dir"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	Interval    string `toml:"interval"`
	TimerPeriod string `toml:"timer_period"`
	QueueSize   int    `toml:"queue_size"`
	CPUProfile  string `toml:"cpu_profile"`
	HeapProfile string `toml:"heap_profile"`
	PprofAddr   string `toml:"pprof_addr"`
	VID         string `toml:"vid"`
	PID         string `toml:"pid"`
	Timeout     string `toml:"timeout"`
	Filter      string `toml:"filter"`
	Format      string `toml:"format"`
	Color       *bool  `toml:"color"`
	Archive     string `toml:"archive"`
	Fsync       string `toml:"fsync"`
	MaxRecord   int    `toml:"max_record"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.usblog/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".usblog", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("bus", fc.BusDir, &cfg.BusDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("cpu-profile", fc.CPUProfile, &cfg.CPUProfile)
	s.setString("heap-profile", fc.HeapProfile, &cfg.HeapProfile)
	s.setString("pprof", fc.PprofAddr, &cfg.PprofAddr)
	s.setString("filter", fc.Filter, &cfg.Filter)
	s.setString("format", fc.Format, &cfg.Format)
	s.setString("archive", fc.Archive, &cfg.Archive)
	s.setString("fsync", fc.Fsync, &cfg.Fsync)

	if err := s.setDuration("interval", fc.Interval, &cfg.Interval); err != nil {
		return err
	}
	if err := s.setDuration("timer-period", fc.TimerPeriod, &cfg.TimerPeriod); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setIDFromString("vid", fc.VID, &cfg.VID); err != nil {
		return err
	}
	if err := s.setIDFromString("pid", fc.PID, &cfg.PID); err != nil {
		return err
	}

	s.setInt("queue-size", fc.QueueSize, &cfg.QueueSize)
	s.setInt("max-record", fc.MaxRecord, &cfg.MaxRecord)

	s.setBool("color", fc.Color, &cfg.Color)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
