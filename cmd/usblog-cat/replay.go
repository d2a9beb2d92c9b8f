package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ardnew/usblog/host/archive"
	"github.com/ardnew/usblog/host/receiver"
	"github.com/ardnew/usblog/internal/cliconfig"
)

func newReplayCommand(cfg *cliconfig.Config) *cobra.Command {
	var from uint64
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print archived records through the filter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if cfg.Archive == "" {
				return fmt.Errorf("replay requires --archive")
			}
			a, err := openArchive(cfg)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, a.Close()) }()

			p, err := newPipeline(cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, p.close(cmd.ErrOrStderr())) }()

			return replay(cmd.Context(), a, from, p.rcv)
		},
	}
	cmd.Flags().Uint64Var(&from, "from", 0, "first sequence number to replay")
	return cmd
}

// replay delivers archived records starting at sequence from. A cancelled
// context ends the replay without error.
func replay(ctx context.Context, a *archive.Archive, from uint64, rcv *receiver.Receiver) error {
	err := a.Scan(ctx, from, func(rec archive.Record) error {
		rcv.Deliver(receiver.NewRecord(rec.Seq, rec.Time, rec.Data))
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
