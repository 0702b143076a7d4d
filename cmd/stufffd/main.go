package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ikaikahussey/stufff-app/internal/ai"
	"github.com/ikaikahussey/stufff-app/internal/config"
	"github.com/ikaikahussey/stufff-app/internal/engine"
	"github.com/ikaikahussey/stufff-app/internal/httpapi"
	"github.com/ikaikahussey/stufff-app/internal/notify"
	"github.com/ikaikahussey/stufff-app/internal/realtime"
	"github.com/ikaikahussey/stufff-app/internal/sample"
	"github.com/ikaikahussey/stufff-app/internal/store"
	"github.com/ikaikahussey/stufff-app/internal/ws"
)

func main() {
	fmt.Println("Starting stufffd...")

	cfg := config.Load()
	ctx := context.Background()

	// The backend mode is decided exactly once, here. Everything
	// downstream sees only the Store and Broker interfaces.
	var (
		st     store.Store
		broker realtime.Broker
		err    error
	)
	if cfg.RemoteConfigured() {
		fmt.Println("Remote configuration present, connecting to Postgres...")
		pg, perr := store.NewPostgresStore(cfg.DatabaseURL)
		if perr != nil {
			fmt.Printf("Failed to connect to Postgres: %v\n", perr)
			os.Exit(1)
		}
		if err := pg.InitSchema(ctx); err != nil {
			fmt.Printf("Failed to initialize schema: %v\n", err)
			os.Exit(1)
		}
		st = pg

		fmt.Println("Connecting to Redis...")
		broker, err = realtime.NewRedisBroker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			fmt.Printf("Failed to connect to Redis: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Remote mode ready")
	} else {
		fmt.Printf("No remote configuration, using local store at %s\n", cfg.StateDir)
		st, err = store.NewLocalStore(cfg.StateDir, sample.Items())
		if err != nil {
			fmt.Printf("Failed to open local store: %v\n", err)
			os.Exit(1)
		}
		broker = realtime.NewMemoryBroker()
	}
	defer st.Close()
	defer broker.Close()

	// Notification side channel, best effort end to end.
	var notifier notify.Notifier = notify.Discard{}
	if cfg.NatsURL != "" {
		fmt.Println("Connecting to NATS...")
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			fmt.Printf("NATS unavailable, notifications disabled: %v\n", err)
		} else {
			defer nc.Close()
			dispatcher, err := notify.NewDispatcher(nc)
			if err != nil {
				fmt.Printf("JetStream unavailable, notifications disabled: %v\n", err)
			} else {
				notifier = dispatcher
				fmt.Println("Notification dispatcher ready")
			}
		}
	}

	eng, err := engine.New(ctx, engine.Options{
		Store:         st,
		Broker:        broker,
		Notifier:      notifier,
		Remote:        cfg.RemoteConfigured(),
		WriteTimeout:  cfg.WriteTimeout,
		SampleCatalog: sample.Items(),
	})
	if err != nil {
		fmt.Printf("Failed to start engine: %v\n", err)
		os.Exit(1)
	}

	var generator ai.DescriptionGenerator
	if cfg.GeminiAPIKey != "" {
		generator, err = ai.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			fmt.Printf("Gemini unavailable, AI drafts disabled: %v\n", err)
			generator = nil
		}
	}

	// WebSocket fan-out fed from the broker firehose.
	wsManager := ws.NewManager()
	go wsManager.Run()
	feedCtx, cancelFeed := context.WithCancel(ctx)
	defer cancelFeed()
	go wsManager.Feed(feedCtx, broker)

	uploadDir := filepath.Join(cfg.StateDir, "uploads")
	var images store.ImageStore
	if fs, err := store.NewFileImageStore(uploadDir, "/uploads"); err != nil {
		fmt.Printf("Image uploads disabled: %v\n", err)
	} else {
		images = fs
	}

	handler := httpapi.NewHandler(eng, generator, images)
	router := handler.SetupRoutes()
	ws.NewHandler(wsManager).Register(router)
	router.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadDir))))

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		fmt.Printf("stufffd listening on %s\n", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Printf("Server forced to shutdown: %v\n", err)
	}

	fmt.Println("Server stopped gracefully")
}
