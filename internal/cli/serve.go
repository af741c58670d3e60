package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"pos-terminal/internal/catalog"
	"pos-terminal/internal/config"
	"pos-terminal/internal/events"
	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
	"pos-terminal/internal/network"
	"pos-terminal/internal/remote"
	"pos-terminal/internal/services/checkout"
	"pos-terminal/internal/services/order"
	"pos-terminal/internal/services/syncer"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the terminal: operator API, local queue and background sync",
		Long: `Run the terminal.

The operator API listens on http.port. Orders are written straight to the
back office while it is reachable and saved to the local queue otherwise;
the queue is drained whenever connectivity returns.

Example:
  pos serve --config ./config.yaml
  POS_NETWORK_MODE=manual pos serve -v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := opts.newLogger("pos-terminal", os.Stdout)
	requestID := "startup"

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	currency, err := models.NewCurrency(cfg.Terminal.Currency, cfg.Terminal.Locale)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid terminal currency", err)
	}
	items, err := catalog.LoadFile(cfg.Catalog.ItemsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	var staff catalog.Directory
	if cfg.Catalog.StaffPath != "" {
		list, err := catalog.LoadStaffFile(cfg.Catalog.StaffPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load staff directory", err)
		}
		staff = list
	}

	store, err := openLocal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Error("queue_close_failed", "Failed to flush local queue", requestID, err, nil)
		}
	}()

	counter, err := checkout.NewCounterFromStore(ctx, checkout.NewKVCounterStore(store.kv), nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load order counter", err)
	}

	backOffice := remote.NewLazy(dialRemote(cfg, log))
	defer backOffice.Close(context.Background())

	bus := events.NewBus(64)
	defer bus.Close()

	conn, publisher := connectBroker(ctx, cfg, log)
	if conn != nil {
		defer conn.Close()
		go events.Forward(ctx, bus, publisher, log)
	}

	source := networkSource(ctx, cfg, backOffice, log)

	writer := syncer.NewWriter(backOffice, announcer(publisher), log, cfg.Remote.WriteTimeout)
	coordinator := syncer.NewCoordinator(store.queue, writer, bus, log, cfg.Remote.RetryInterval)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		coordinator.Run(ctx, source)
	}()

	service := order.NewService(order.Deps{
		Catalog:   items,
		Staff:     staff,
		Assembler: checkout.NewAssembler(counter),
		Writer:    writer,
		Queue:     store.queue,
		Network:   source,
		Events:    bus,
		Currency:  currency,
		Logger:    log,
	})
	handler := order.NewHandler(order.HandlerDeps{
		Service:      service,
		Coordinator:  coordinator,
		Queue:        store.queue,
		Network:      source,
		Hub:          order.NewHub(bus, cfg.HTTP.AllowOrigins, log),
		Currency:     currency,
		AllowOrigins: cfg.HTTP.AllowOrigins,
		Logger:       log,
	})

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("service_started", fmt.Sprintf("Terminal %s listening on port %d", cfg.Terminal.ID, cfg.HTTP.Port), requestID, map[string]interface{}{
			"port":         cfg.HTTP.Port,
			"driver":       cfg.Remote.Driver,
			"network_mode": cfg.Network.Mode,
			"pending":      store.queue.Len(),
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
	case err := <-serverErr:
		if err != nil {
			log.Error("server_failed", "HTTP server failed", requestID, err, nil)
			runErr = WrapExitError(ExitFailure, "http server failed", err)
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown_failed", "HTTP server shutdown failed", requestID, err, nil)
	}

	// A pass in flight finishes its current entry before Run returns.
	wg.Wait()

	log.Info("service_stopped", "Terminal stopped", requestID, map[string]interface{}{
		"pending": store.queue.Len(),
	})
	return runErr
}

// networkSource probes the back office, or hands control to the operator
func networkSource(ctx context.Context, cfg *config.Config, pinger network.Pinger, log *logger.Logger) network.Source {
	if cfg.Network.Mode == "manual" {
		return network.NewManual(cfg.Network.InitialOnline)
	}
	prober := network.NewProber(pinger, cfg.Network.ProbeInterval, log)
	go prober.Run(ctx)
	return prober
}
