package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/multicontroller/internal/coordinator"
	"github.com/muurk/multicontroller/internal/discovery"
	"github.com/muurk/multicontroller/internal/integration"
	"github.com/muurk/multicontroller/internal/logging"
	"github.com/muurk/multicontroller/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll the cloud and serve the hub API",
	Long: `Set up the selected entry, start polling RainMaker and serve the REST API
and WebSocket stream until interrupted.

The bridge is advertised over mDNS as _multicontroller._tcp unless
discovery.advertise is false. Bearer tokens are required when
server.token_secret is set; issue them with 'multicontroller token'.`,
	Example: `  # Serve on the default port with info logging
  multicontroller serve --log-level info

  # Custom port, faster polling, no mDNS
  multicontroller serve --port 9000 --interval 15s --advertise=false`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", "", "Listen address (default from settings)")
	f.Int("port", 0, "Listen port (default from settings)")
	f.Duration("interval", 0, "Poll interval (default from settings)")
	f.String("token-secret", "", "Require bearer tokens signed with this secret")
	f.Bool("advertise", true, "Advertise the bridge over mDNS")

	rootCmd.AddCommand(serveCmd)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Unload()

	srv := server.New(server.Config{
		Host:            settings.Server.Host,
		Port:            settings.Server.Port,
		ShutdownTimeout: settings.Server.ShutdownTimeout,
		TokenSecret:     settings.Server.TokenSecret,
		TokenTTL:        settings.Server.TokenTTL,
	}, rt.Coordinator, rt.Entities)

	if settings.Discovery.Advertise {
		adv, err := discovery.Advertise(discovery.Advertisement{
			Instance: instanceName(rt.EntryID),
			Port:     settings.Server.Port,
			EntryID:  rt.EntryID,
			Version:  integration.Version,
			Nodes:    rt.Coordinator.Snapshot().Len(),
			Auth:     settings.Server.AuthEnabled(),
		})
		if err != nil {
			logging.Warn("mDNS advertisement disabled", zap.Error(err))
		} else {
			defer adv.Shutdown()
			go trackNodes(ctx, rt.Coordinator, adv)
		}
	}

	rt.Start()
	fmt.Fprintf(cmd.OutOrStdout(), "%s serving %d entities on %s\n", integration.Title, rt.Entities.Len(), settings.Server.Addr())
	return srv.ListenAndServe(ctx)
}

// trackNodes republishes the node count after every successful refresh
func trackNodes(ctx context.Context, coord *coordinator.Coordinator, adv *discovery.Advertiser) {
	updates, cancel := coord.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Success {
				adv.SetNodes(u.Nodes)
			}
		}
	}
}

func instanceName(entryID string) string {
	if len(entryID) > 8 {
		entryID = entryID[:8]
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "Multicontroller " + entryID
	}
	return fmt.Sprintf("Multicontroller %s (%s)", entryID, host)
}
