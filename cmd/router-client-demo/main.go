// Command router-client-demo connects to a router, authenticates, and
// requests a host by id, printing each lifecycle event as it arrives.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/router-controller/pkg/channel"
	"github.com/gosuda/router-controller/pkg/router"
	"github.com/gosuda/router-controller/pkg/wire"
)

var rootCmd = &cobra.Command{
	Use:   "router-client-demo",
	Short: "Connect to a router, authenticate, and request a host by id",
	RunE:  run,
}

var (
	routerAddr  string
	routerPort  uint16
	username    string
	password    string
	hostID      uint64
	waitForHost bool
	verbose     bool
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&routerAddr, "addr", "127.0.0.1", "router address")
	flags.Uint16Var(&routerPort, "port", 7070, "router port")
	flags.StringVar(&username, "username", "", "account username")
	flags.StringVar(&password, "password", "", "account password")
	flags.Uint64Var(&hostID, "host", 0, "host id to connect to")
	flags.BoolVar(&waitForHost, "wait", true, "poll until the host comes online instead of failing immediately")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")

	_ = rootCmd.MarkFlagRequired("username")
	_ = rootCmd.MarkFlagRequired("password")
	_ = rootCmd.MarkFlagRequired("host")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("router-client-demo: exited with error")
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Info().Msg("router-client-demo: signal received, closing session")
		cancel()
	}()

	cfg := router.NewRouterConfig(routerAddr, routerPort, username, password)
	c := router.New(cfg)

	done := make(chan struct{})
	d := &demoDelegate{done: done}

	log.Info().Str("addr", routerAddr).Uint16("port", routerPort).Uint64("host", hostID).Msg("router-client-demo: connecting")
	if err := c.ConnectTo(ctx, wire.HostID(hostID), waitForHost, d); err != nil {
		return err
	}

	select {
	case <-done:
	case <-ctx.Done():
		_ = c.Close()
	}
	return nil
}

// demoDelegate logs every Controller callback and closes done once the
// session reaches a terminal outcome (host connected or an error).
type demoDelegate struct {
	done chan struct{}
}

func (d *demoDelegate) OnRouterConnected(routerVersion wire.Version) {
	log.Info().Str("router_version", routerVersion.String()).Msg("router-client-demo: authenticated")
}

func (d *demoDelegate) OnHostAwaiting() {
	log.Info().Msg("router-client-demo: host offline, waiting")
}

func (d *demoDelegate) OnHostConnected(dataChannel channel.Channel) {
	log.Info().Msg("router-client-demo: host connected, data channel ready")
	// A real tunnel would pump bytes between dataChannel and a local
	// listener here; this demo only reports readiness and tears down.
	_ = dataChannel.Close()
	close(d.done)
}

func (d *demoDelegate) OnErrorOccurred(err *router.ControllerError) {
	log.Error().Err(err).Msg("router-client-demo: session failed")
	close(d.done)
}
