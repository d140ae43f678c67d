package main

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the relay, serves until SIGINT/SIGTERM, then shuts down.
// Returning instead of exiting lets every defer (journal database, listeners) run.
func run() error {
	// 1. Configuration & Logger
	config, err := internal.Load(os.Args[1:])
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)
	if len(os.Args) == 1 {
		log.Info("No port specified, using default", "port", config.Port)
	}

	sup := workers.NewSupervisor(log, config.RestartInterval)
	options := []runtime.SessionOption{runtime.WithMaxPending(config.MaxPendingLines)}

	// 2. Moderation (optional)
	if config.CensoredDir != "" {
		moderator, err := newModerator(log, config)
		if err != nil {
			return err
		}
		options = append(options, runtime.WithFilter(moderator))
	}

	// 3. Session journal (optional, BadgerDB)
	if config.JournalFilepath != "" {
		db, err := badger.Open(badger.DefaultOptions(config.JournalFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("database opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
		events := make(chan event.SessionEvent, config.EventBufferSize)
		options = append(options, runtime.WithEvents(events))
		sup.Add(workers.NewJournalWorker(log, events, repositories.NewSessionRepository(db, log)))
	}

	// 4. Relay server
	relay := runtime.NewServer(log, domain.NewRoom(), runtime.NewRegistry(), options...)
	listener, err := net.Listen("tcp", config.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", config.Address(), err)
	}
	sup.Add(
		workers.NewAcceptWorker(relay, listener),
		workers.NewHealthMonitoringWorker(log, relay, config.MetricInterval),
	)

	// 5. gRPC health endpoint (optional)
	if config.HealthPort > 0 {
		healthListener, err := net.Listen("tcp", config.HealthAddress())
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("failed to listen on %s: %w", config.HealthAddress(), err)
		}
		healthServer := server.NewHealthServer(log, healthListener)
		relay.OnStop(healthServer.NotServing)
		sup.Add(healthServer)
	}

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workers outlive the signal: the journal must still see the sessions
	// closed by the shutdown below.
	supervised := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(supervised)
	}()

	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 7. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := relay.Shutdown(shutdownCtx); err != nil {
		log.Warn("Sessions did not drain in time", "error", err)
	}
	sup.Stop()
	<-supervised
	log.Info("Program stopped cleanly")
	return nil
}

func newModerator(log *slog.Logger, config internal.Config) (*moderation.Moderator, error) {
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	data, err := runtime.NewCensoredLoader(os.DirFS(config.CensoredDir)).LoadAll(".")
	if err != nil {
		return nil, fmt.Errorf("loading censored words from %s: %w", config.CensoredDir, err)
	}
	log.Info("Censored words loaded", "words", len(data.Words), "languages", data.Languages)
	return moderation.NewModerator(data.Words, charReplacement, log)
}
