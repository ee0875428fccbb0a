package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tome/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr        string
		syncOnStart bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the SRD store over HTTP",
		Long: `Serve exposes search, entry lookup, custom entry management and sync
under /api/srd until interrupted.

Example:
  tome serve
  tome serve --addr 127.0.0.1:9000 --sync`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.settings.ServerAddr
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mgr := a.newSyncManager(store)
			if syncOnStart {
				res := mgr.Sync(ctx, false)
				if !res.Success {
					a.logger.Warn("startup sync failed, serving existing data",
						zap.String("error", res.Error))
				}
			}

			gin.SetMode(gin.ReleaseMode)
			router := server.NewRouter(&server.Handler{Store: store, Syncer: mgr}, a.logger)
			if err := server.Serve(ctx, addr, router, a.logger); err != nil {
				return sysError("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config.yaml)")
	cmd.Flags().BoolVar(&syncOnStart, "sync", false, "sync stale official data before serving")
	return cmd
}
