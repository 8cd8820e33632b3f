package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/ruidosujeira/kona/pkg/api"
	"github.com/spf13/cobra"
)

var devCmd = &cobra.Command{
	Use:   "dev [entry points]",
	Short: "Watch the project and push incremental rebuilds to connected clients",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptionsFromFlags(cmd, args)
		if err != nil {
			return err
		}
		addr, _ := cmd.Flags().GetString("addr")

		bctx, err := api.Context(opts)
		if err != nil {
			return err
		}
		defer bctx.Dispose()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		pterm.Info.Printfln("Serving on %s (hmr at /__kona/hmr)", addr)
		pterm.Info.Println("Press Ctrl+C to stop")

		if err := bctx.Watch(ctx, api.WatchOptions{Addr: addr}); err != nil {
			pterm.Error.Printf("%v\n", err)
			return err
		}
		return nil
	},
}

func init() {
	addBuildFlags(devCmd)
	devCmd.Flags().String("addr", "localhost:8787", "address the dev server's HTTP+WebSocket listener binds to")
}
