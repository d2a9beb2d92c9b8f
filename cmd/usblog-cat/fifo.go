package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ardnew/usblog/host/fifo"
	"github.com/ardnew/usblog/internal/cliconfig"
	"github.com/ardnew/usblog/pkg"
)

func newFifoCommand(cfg *cliconfig.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fifo",
		Short: "Follow devices attached to a FIFO bus directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			p, err := newPipeline(cfg, cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, p.close(cmd.ErrOrStderr())) }()

			return fifo.Session(cmd.Context(), cfg.BusDir, uint16(cfg.VID), uint16(cfg.PID), cfg.Timeout,
				func(ctx context.Context, port *fifo.Port, info *fifo.Info) error {
					pkg.LogInfo(pkg.ComponentCat, "device connected",
						"dir", info.Dir,
						"device", names().Describe(info.Device.VendorID, info.Device.ProductID),
						"product", info.Product,
						"serial", info.SerialNumber)
					return p.rcv.Run(ctx, port)
				})
		},
	}
	cmd.Flags().StringVar(&cfg.BusDir, "bus", cfg.BusDir, "FIFO bus directory shared with devices")
	cmd.Flags().Var((*idValue)(&cfg.VID), "vid", "vendor ID to accept (0 accepts any)")
	cmd.Flags().Var((*idValue)(&cfg.PID), "pid", "product ID to accept (0 accepts any)")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "control transfer timeout")
	return cmd
}
