package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/spf13/pflag"

	"ciphera/internal/relay/server"
)

var (
	port          int
	enableLogging bool
	corsOrigins   []string
)

const (
	defaultPort  = 8080
	minPort      = 0
	maxPort      = 65535
	readHeaderTO = 5 * time.Second
	readTO       = 10 * time.Second
	writeTO      = 10 * time.Second
	idleTO       = 60 * time.Second
	shutdownTO   = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	pflag.IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	pflag.BoolVar(&enableLogging, "log", true, "enable access logging")
	pflag.StringSliceVar(&corsOrigins, "cors-origin", []string{"*"}, "allowed CORS origins")
	pflag.Parse()

	if port <= minPort || port > maxPort {
		port = defaultPort
	}

	logger := slog.New(slog.NewTextHandler(log.Writer(), &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	var st *server.State
	if enableLogging {
		st = server.NewState(logger)
	} else {
		st = server.NewState(nil)
	}

	mux := http.NewServeMux()
	st.Routes(mux)

	var handler http.Handler = mux
	handler = st.WithLogging(handler)
	handler = server.WithRequestID(handler)
	handler = server.WithRecover(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(handler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTO,
		ReadTimeout:       readTO,
		WriteTimeout:      writeTO,
		IdleTimeout:       idleTO,
	}

	go func() {
		slog.Info("relay listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("relay failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTO)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
