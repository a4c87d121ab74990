package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/edvart/cardhub/internal/hub"
	"github.com/edvart/cardhub/internal/router"
	"github.com/edvart/cardhub/internal/store"
	"github.com/edvart/cardhub/internal/transport"
)

func main() {
	log := logrus.New()
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})

	port := getEnv("PORT", "3000")
	dbPath := getEnv("STORE_PATH", "./data/hub.db")

	if err := os.MkdirAll("./data", 0755); err != nil {
		log.WithError(err).Fatal("failed to create data directory")
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize store")
	}
	defer st.Close()

	trans := transport.New(nil, log.WithField("component", "transport"))
	h := hub.New(st, trans, log.WithField("component", "hub"))
	rtr := router.New(h, log.WithField("component", "router"))
	trans.SetRouter(rtr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.Run(ctx)

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: trans,
	}

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Info("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("http server shutdown error")
		}
	}()

	log.WithField("port", port).Info("cardhub listening")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("http server error")
	}
	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
