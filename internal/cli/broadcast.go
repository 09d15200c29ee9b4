package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-order-bot/internal/services"
	"github.com/tbourn/go-order-bot/internal/telegram"
)

// NewBroadcastCommand creates the broadcast command.
func NewBroadcastCommand(opts *RootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:          "broadcast",
		Short:        "Send the morning reminder to every known chat now",
		Long:         "Sends the reminder once. Days outside BROADCAST_DAYS are skipped unless --force is given.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBroadcast(cmd.Context(), cmd.OutOrStdout(), opts, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "send even on a day outside BROADCAST_DAYS")
	return cmd
}

func runBroadcast(ctx context.Context, w io.Writer, opts *RootOptions, force bool) error {
	cfg := opts.Config
	if err := cfg.RequireBot(); err != nil {
		return WrapExitError(ExitCommandError, "broadcast", err)
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	api, err := newBotAPI(cfg.Telegram)
	if err != nil {
		return WrapExitError(ExitFailure, "broadcast", err)
	}
	bc := a.broadcaster(telegram.NewSender(api))

	var res services.BroadcastResult
	now := time.Now().In(cfg.Business.Location)
	if force {
		res, err = bc.Send(ctx)
	} else {
		res, err = bc.Fire(ctx, now)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "broadcast", err)
	}
	if res.Skipped {
		fmt.Fprintf(w, "skipped: %s is not a broadcast day\n", now.Weekday())
		return nil
	}
	fmt.Fprintf(w, "sent %d, failed %d\n", res.Sent, res.Failed)
	return nil
}
