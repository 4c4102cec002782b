package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Purplemerit/notion-realtime/internal/api"
	"github.com/Purplemerit/notion-realtime/internal/auth"
	"github.com/Purplemerit/notion-realtime/internal/blob"
	"github.com/Purplemerit/notion-realtime/internal/chat"
	"github.com/Purplemerit/notion-realtime/internal/config"
	"github.com/Purplemerit/notion-realtime/internal/db"
	"github.com/Purplemerit/notion-realtime/internal/repository"
	"github.com/Purplemerit/notion-realtime/internal/tasks"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	pool, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer pool.Close()

	messages := repository.NewMessagesRepo(pool)

	var blobs blob.Store
	if cfg.S3Bucket != "" {
		blobs, err = blob.NewS3Store(context.Background(), cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			log.Fatal("Failed to initialize blob storage:", err)
		}
	} else {
		blobs = blob.Disabled{}
	}

	verifier := auth.NewVerifier(cfg.AuthKey)
	hub := chat.NewHub(messages, blobs, cfg.GroupReplayLookback)

	reporter := tasks.NewBacklogReporter(messages)
	reporter.Start()

	r := mux.NewRouter()
	r.HandleFunc("/ws", api.ServeWS(hub, verifier))
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Printf("Realtime server starting on :%s...\n", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop

	fmt.Println("\nShutdown signal received. Cleaning up...")
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}

	fmt.Println("Graceful shutdown complete.")
}
