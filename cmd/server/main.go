package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/portal-guard/audit"
	"github.com/jrsteele09/portal-guard/internal/config"
	"github.com/jrsteele09/portal-guard/localauth"
	"github.com/jrsteele09/portal-guard/remoteauth"
	"github.com/jrsteele09/portal-guard/server"
	"github.com/jrsteele09/portal-guard/statestore"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	displayAppname(c.GetAppName())

	accounts, err := localauth.LoadAccounts(c.GetAccountsFile())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.GetDataFolder(), 0o750); err != nil {
		return fmt.Errorf("create data folder: %w", err)
	}
	store, err := statestore.NewSQLiteStore(filepath.Join(c.GetDataFolder(), "state.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	auditLog, err := audit.NewSQLiteLog(filepath.Join(c.GetDataFolder(), "audit.db"))
	if err != nil {
		return err
	}
	defer auditLog.Close()
	sink := audit.NewSink(auditLog, c.GetAuditQueueSize())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	remote, err := remoteauth.NewClient(ctx, c)
	cancel()
	if err != nil {
		return err
	}
	if remote == nil {
		log.Warn().Msg("OIDC_ISSUER not set, remote identity provider disabled")
	}

	portal, err := server.New(c, server.Dependencies{
		Accounts: accounts,
		Store:    store,
		Audit:    sink,
		Remote:   remote,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: portal}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		returnError = err
	case <-waitForStopSignal():
		returnError = shutdown(httpServer)
	}

	portal.Close()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer drainCancel()
	if err := sink.Close(drainCtx); err != nil {
		log.Err(err).Msg("audit entries lost on shutdown")
	}
	return returnError
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
