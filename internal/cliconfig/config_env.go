package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (USBLOG_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("bus", os.Getenv("USBLOG_BUS_DIR"), &cfg.BusDir)
	s.setString("log-level", os.Getenv("USBLOG_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("USBLOG_LOG_FORMAT"), &cfg.LogFormat)
	s.setString("cpu-profile", os.Getenv("USBLOG_CPU_PROFILE"), &cfg.CPUProfile)
	s.setString("heap-profile", os.Getenv("USBLOG_HEAP_PROFILE"), &cfg.HeapProfile)
	s.setString("pprof", os.Getenv("USBLOG_PPROF_ADDR"), &cfg.PprofAddr)
	s.setString("filter", os.Getenv("USBLOG_FILTER"), &cfg.Filter)
	s.setString("format", os.Getenv("USBLOG_FORMAT"), &cfg.Format)
	s.setString("archive", os.Getenv("USBLOG_ARCHIVE"), &cfg.Archive)
	s.setString("fsync", os.Getenv("USBLOG_FSYNC"), &cfg.Fsync)

	if err := s.setDuration("interval", os.Getenv("USBLOG_INTERVAL"), &cfg.Interval); err != nil {
		return err
	}
	if err := s.setDuration("timer-period", os.Getenv("USBLOG_TIMER_PERIOD"), &cfg.TimerPeriod); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("USBLOG_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setIDFromString("vid", os.Getenv("USBLOG_VID"), &cfg.VID); err != nil {
		return err
	}
	if err := s.setIDFromString("pid", os.Getenv("USBLOG_PID"), &cfg.PID); err != nil {
		return err
	}

	if err := s.setIntFromString("queue-size", os.Getenv("USBLOG_QUEUE_SIZE"), &cfg.QueueSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-record", os.Getenv("USBLOG_MAX_RECORD"), &cfg.MaxRecord); err != nil {
		return err
	}

	s.setBoolFromString("color", os.Getenv("USBLOG_COLOR"), &cfg.Color)

	return nil
}
