package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wfunc/boomberg/broadcast"
	"github.com/wfunc/boomberg/config"
	"github.com/wfunc/boomberg/logger"
	"github.com/wfunc/boomberg/monitor"
	"github.com/wfunc/boomberg/persistence"
	"github.com/wfunc/boomberg/rpc"
	"github.com/wfunc/boomberg/server"
	"github.com/wfunc/boomberg/services"
	"github.com/wfunc/boomberg/session"
	"github.com/wfunc/boomberg/tickers"
	"github.com/wfunc/boomberg/timer"
)

const releaseVersion = "0.1.0"

// raceRetries bounds how often a create that lost its ticker to a concurrent
// create is re-allocated.
const raceRetries = 3

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "boomberg",
		Short:         "Boomberg game server",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.HiddenDefaultCmd = true

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP, RPC and metrics servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(dir, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	serve.Flags().String("config", ".", "directory containing config.yaml")
	serve.Flags().BoolP("verbose", "v", false, "enable debug logging (env: BOOMBERG_VERBOSE)")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "boomberg v%s\n", releaseVersion)
		},
	}

	root.AddCommand(serve, version)
	return root
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize logger
	logger.Init(cfg.Verbose)
	defer logger.Sync()

	// Initialize Database
	db, err := persistence.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}
	defer db.Close()
	logger.Log.Infof("Database connection successful (%s).", cfg.Database.Driver)

	mon := monitor.NewMonitor("boomberg")

	broker := broadcast.NewBroker()
	broker.OnPublish(mon.ObservePublish)

	sampler := tickers.NewSampler(nil, cfg.Tickers.SamplingAttempts, mon)
	allocator := tickers.NewAllocator(tickers.Default(), sampler, db,
		cfg.Tickers.UniquenessAttempts, cfg.Tickers.ActiveWindow)

	sessions := session.NewManager()
	provider := session.NewProvider(db, sessions)
	validator := session.NewValidator(cfg.Names.MinLength, cfg.Names.MaxLength)

	games := services.NewGameService(db, allocator, broadcast.NewGameBroadcaster(broker, db),
		validator, sessions, raceRetries)

	timers := timer.NewTimerManager(cfg.Events.TimerResolution)
	defer timers.Stop()

	gameServer := server.NewGameServer(server.Options{
		Addr:              cfg.Server.HTTPAddress,
		SecureCookies:     cfg.Server.SecureCookies,
		WriteTimeout:      cfg.Server.WriteTimeout,
		HeartbeatInterval: cfg.Events.HeartbeatInterval,
	}, games, provider, broker, timers, mon)

	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress, games)
	if err != nil {
		return fmt.Errorf("start rpc server: %w", err)
	}
	go rpcServer.Start()
	defer rpcServer.Stop()

	if cfg.Server.MetricsAddress != "" {
		mon.StartServer(cfg.Server.MetricsAddress)
	}

	errc := make(chan error, 1)
	go func() { errc <- gameServer.Start() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("http shutdown: %v", err)
	}
	if err := mon.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("metrics shutdown: %v", err)
	}
	return <-errc
}
