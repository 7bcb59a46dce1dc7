package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-courier/config"
	"github.com/marcelsud/webhook-courier/delivery"
	deliveryredis "github.com/marcelsud/webhook-courier/delivery/redis"
	"github.com/marcelsud/webhook-courier/internal/http/chi"
	"github.com/marcelsud/webhook-courier/metrics"
)

const TIMEOUT = 30 * time.Second

// archiveTTL keeps terminal delivery records around for a day
const archiveTTL = 24 * time.Hour

/* main wires the delivery engine behind an HTTP API: sends are
 * submitted over /v1/webhooks, status queries read the in-memory
 * registry, and /metrics exposes delivery counts in Prometheus format.
 * When REDIS_ADDR is set, terminal records are mirrored into Redis
 */
func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	client, err := delivery.New(cfg.DeliveryConfig())
	if err != nil {
		fmt.Println(err)
		return
	}

	if cfg.RedisAddr != "" {
		archive, err := deliveryredis.NewArchive(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
		if err != nil {
			fmt.Println(err)
			return
		}
		defer archive.Close(ctx)
		client.AddDeliveryCallback(archive.Callback(archiveTTL))
	}

	exporter, err := metrics.NewOTelExporter(metrics.NewClientCollector(client))
	if err != nil {
		fmt.Println(err)
		return
	}
	defer exporter.Shutdown(ctx)

	r := chi.APIHandlers(client)
	r.Handle("/metrics", exporter.ServeHTTP())

	srv := &http.Server{
		ReadTimeout: 30 * time.Second,
		Addr:        ":" + cfg.Port,
		Handler:     r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	fmt.Printf("Listening on port %s\n", cfg.Port)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		fmt.Println(err)
		return
	}
	err = <-errShutdown
	if err != nil {
		fmt.Println(err)
		return
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		fmt.Printf("\nShutting down server...\n")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("Forcing closing the server")
	}
}
