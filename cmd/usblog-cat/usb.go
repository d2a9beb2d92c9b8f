package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ardnew/usblog/host/usb"
	"github.com/ardnew/usblog/internal/backoff"
	"github.com/ardnew/usblog/internal/cliconfig"
	"github.com/ardnew/usblog/pkg"
)

func newUSBCommand(cfg *cliconfig.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usb",
		Short: "Read a physical device through libusb",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			p, err := newPipeline(cfg, cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, p.close(cmd.ErrOrStderr())) }()

			return followUSB(cmd.Context(), uint16(cfg.VID), uint16(cfg.PID), p)
		},
	}
	cmd.Flags().Var((*idValue)(&cfg.VID), "vid", "vendor ID to open")
	cmd.Flags().Var((*idValue)(&cfg.PID), "pid", "product ID to open")
	return cmd
}

// followUSB reads the device until ctx is done, reopening it with backoff
// whenever it is missing or detaches.
func followUSB(ctx context.Context, vid, pid uint16, p *pipeline) error {
	b := backoff.New(backoff.DefaultInitial, backoff.DefaultMax)
	for {
		src, err := usb.Open(vid, pid)
		if err == nil {
			info := src.Info()
			pkg.LogInfo(pkg.ComponentCat, "device connected",
				"device", names().Describe(info.VendorID, info.ProductID),
				"bus", info.Bus,
				"address", info.Address,
				"serial", info.SerialNumber)
			b.Reset()
			err = p.rcv.Run(ctx, src)
			src.Close()
		}
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, pkg.ErrNoDevice) {
			return err
		}
		pkg.LogInfo(pkg.ComponentCat, "waiting for device", "backoff", b.Current())
		if err := b.Wait(ctx); err != nil {
			return nil
		}
	}
}
