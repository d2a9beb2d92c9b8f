// Command usblog-cat receives log records streamed by a usblog device and
// prints, filters and archives them.
//
// The fifo subcommand follows devices on a FIFO bus directory, the usb
// subcommand reads a physical device through libusb, and the replay
// subcommand reads back an archive.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/ardnew/usblog/internal/cliconfig"
	"github.com/ardnew/usblog/pkg"
)

var exampleUsage = strings.TrimSpace(`
  usblog-cat fifo --bus /tmp/usblog-bus
  usblog-cat fifo --filter 'level in ["warn", "error"]' --archive ~/.usblog/records
  usblog-cat usb --vid 5824 --pid 27dd --format raw
  usblog-cat replay --archive ~/.usblog/records --from 100 --filter 'json.counter >= 100.0'
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// idValue is a pflag.Value for 16-bit USB IDs written in hexadecimal.
type idValue int

func (v *idValue) String() string { return fmt.Sprintf("%04x", int(*v)) }
func (v *idValue) Type() string   { return "hex" }

func (v *idValue) Set(s string) error {
	id, err := cliconfig.ParseID(s)
	if err != nil {
		return err
	}
	*v = idValue(id)
	return nil
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "usblog-cat",
		Short:   "Receive, filter and archive usblog device log records",
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd.Flags(), &cfg, cfgPath)
		},
	}
	root.SilenceUsage = true

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.usblog/config.toml)")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "diagnostic log level (trace, debug, info, warn, error)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "diagnostic log format (text, json)")
	pf.StringVar(&cfg.Filter, "filter", cfg.Filter, "CEL expression selecting records (variables: seq, size, text, json, level, now_ms)")
	pf.StringVar(&cfg.Format, "format", cfg.Format, "record output format (console, raw)")
	pf.BoolVar(&cfg.Color, "color", cfg.Color, "colorize console output")
	pf.StringVar(&cfg.Archive, "archive", cfg.Archive, "pebble archive directory")
	pf.StringVar(&cfg.Fsync, "fsync", cfg.Fsync, "archive fsync mode (interval, always, never)")
	pf.IntVar(&cfg.MaxRecord, "max-record", cfg.MaxRecord, "largest record in bytes; longer records are dropped")

	root.AddCommand(
		newFifoCommand(&cfg),
		newUSBCommand(&cfg),
		newReplayCommand(&cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		pkg.LogError(pkg.ComponentCat, "usblog-cat", "err", err)
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
