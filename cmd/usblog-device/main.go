// Command usblog-device runs the device log pipeline on the FIFO bus. It
// enumerates as a CDC-ACM serial port and streams JSON log records to
// whichever host enumerates it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/ardnew/usblog/device"
	"github.com/ardnew/usblog/device/class/cdc"
	"github.com/ardnew/usblog/device/hal/fifo"
	"github.com/ardnew/usblog/device/logqueue"
	"github.com/ardnew/usblog/internal/cliconfig"
	"github.com/ardnew/usblog/pkg"
	"github.com/ardnew/usblog/pkg/prof"
)

var exampleUsage = strings.TrimSpace(`
  usblog-device --bus /tmp/usblog-bus
  usblog-device --interval 50ms --queue-size 4096 --log-level debug
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "usblog-device",
		Short:   "Stream device log records over a simulated USB CDC-ACM port",
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd.Flags(), &cfg, cfgPath); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.SilenceUsage = true

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.usblog/config.toml)")
	root.Flags().StringVar(&cfg.BusDir, "bus", cfg.BusDir, "FIFO bus directory shared with the host")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "diagnostic log level (trace, debug, info, warn, error)")
	root.Flags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "diagnostic log format (text, json)")
	root.Flags().DurationVar(&cfg.Interval, "interval", cfg.Interval, "heartbeat logging interval")
	root.Flags().DurationVar(&cfg.TimerPeriod, "timer-period", cfg.TimerPeriod, "drain timer period")
	root.Flags().IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "log queue capacity in bytes")
	root.Flags().StringVar(&cfg.CPUProfile, "cpu-profile", cfg.CPUProfile, "write a CPU profile to this file (requires -tags profile)")
	root.Flags().StringVar(&cfg.HeapProfile, "heap-profile", cfg.HeapProfile, "write a heap profile to this file at exit (requires -tags profile)")
	root.Flags().StringVar(&cfg.PprofAddr, "pprof", cfg.PprofAddr, "serve /debug/pprof/ on this address (requires -tags profile)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		pkg.LogError(pkg.ComponentDevice, "usblog-device", "err", err)
		os.Exit(1)
	}
}

// loadConfig layers the config file and USBLOG_* environment under the flags
// set on the command line.
func loadConfig(flags *pflag.FlagSet, cfg *cliconfig.Config, cfgPath string) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	flags.Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	} else if cfgPath != "" {
		return fmt.Errorf("load config: %s: %w", cfgPath, os.ErrNotExist)
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return cfg.ApplyLogging()
}

func run(ctx context.Context, cfg cliconfig.Config) error {
	profiles := prof.Options{CPU: cfg.CPUProfile, Heap: cfg.HeapProfile, Addr: cfg.PprofAddr}
	if profiles.Any() && !prof.Enabled() {
		pkg.LogWarn(pkg.ComponentDevice, "profiling not compiled in", "tags", "profile")
	}
	session, err := prof.Start(profiles)
	if err != nil {
		return fmt.Errorf("start profiling: %w", err)
	}
	defer func() {
		if err := session.Stop(); err != nil {
			pkg.LogWarn(pkg.ComponentDevice, "stop profiling", "err", err)
		}
	}()

	bus, err := fifo.Open(cfg.BusDir, cdc.DefaultIdentity())
	if err != nil {
		return fmt.Errorf("open bus: %w", err)
	}
	defer bus.Close()

	storage := make([]byte, cfg.QueueSize)
	prod, h, err := device.Setup(bus, storage, device.WithTimerPeriod(cfg.TimerPeriod))
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer h.Close()

	pkg.LogInfo(pkg.ComponentDevice, "device attached",
		"dir", bus.DeviceDir(), "queue", cfg.QueueSize, "interval", cfg.Interval)

	irqCtx, cancel := context.WithCancel(ctx)
	irqDone := make(chan error, 1)
	go func() { irqDone <- h.Run(irqCtx, bus.Interrupt()) }()

	log := zerolog.New(logqueue.NewWriter(prod)).
		Level(zerolog.TraceLevel).
		With().Timestamp().Logger()
	beats := loop(ctx, log, h.Status(), cfg.Interval)

	cancel()
	runErr := <-irqDone

	snap := h.Status().Snapshot()
	pkg.LogInfo(pkg.ComponentDevice, "device stopped",
		"beats", beats,
		"commits", snap.Commits,
		"sent", snap.BytesSent,
		"queued", snap.Queued,
		"dropped", snap.Dropped,
		"faults", snap.Faults)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
