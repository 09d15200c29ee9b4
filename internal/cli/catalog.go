package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-order-bot/internal/catalog"
	"github.com/tbourn/go-order-bot/internal/domain"
	"github.com/tbourn/go-order-bot/internal/store"
)

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the menu table",
	}
	cmd.AddCommand(newCatalogImportCommand(opts))
	cmd.AddCommand(newCatalogShowCommand(opts))
	return cmd
}

func newCatalogImportCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Replace the menu table with the menus in a YAML file",
		Long: `Replace the menu table with the menus in a YAML file:

  menus:
    - category: Menu 1
      items:
        - {name: Soup, price: "120.00"}`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogImport(cmd.Context(), cmd.OutOrStdout(), opts, args[0])
		},
	}
}

func runCatalogImport(ctx context.Context, w io.Writer, opts *RootOptions, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "open catalog file", err)
	}
	defer f.Close()

	a, err := openApp(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.db == nil {
		log.Warn().Msg("catalog import into the memory driver is discarded on exit")
	}

	n, err := catalog.Import(ctx, a.sheets, store.CatalogTable, f)
	if err != nil {
		return WrapExitError(ExitFailure, "import catalog", err)
	}
	fmt.Fprintf(w, "imported %d items into %q\n", n, store.CatalogTable)
	return nil
}

func newCatalogShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "show",
		Short:        "Print the menus as the bot reads them",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogShow(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

func runCatalogShow(ctx context.Context, w io.Writer, opts *RootOptions) error {
	a, err := openApp(ctx, opts.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	cat := catalog.New(a.sheets)
	if err := cat.Reload(ctx); err != nil {
		return WrapExitError(ExitFailure, "read catalog", err)
	}
	for _, c := range domain.Categories {
		fmt.Fprintf(w, "%s\n", c)
		for _, it := range cat.Items(c) {
			fmt.Fprintf(w, "  %s - %s\n", it.Name, it.Price.StringFixed(2))
		}
	}
	return nil
}
