package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/store"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Create the database tables and heal the order and identity tables",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

func runMigrate(ctx context.Context, w io.Writer, opts *RootOptions) error {
	a, err := openApp(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, c := range domain.Categories {
		fmt.Fprintf(w, "ok  %s\n", c.OrdersTable())
	}
	fmt.Fprintf(w, "ok  %s\n", store.IdentityTable)
	return nil
}
