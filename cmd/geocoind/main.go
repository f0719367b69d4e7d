// Command geocoind runs a geocoin session headless behind the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/geocoin/internal/api"
	"github.com/MJE43/geocoin/internal/auth"
	"github.com/MJE43/geocoin/internal/config"
	"github.com/MJE43/geocoin/internal/game"
	"github.com/MJE43/geocoin/internal/geo"
	"github.com/MJE43/geocoin/internal/store"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	printToken := flag.Bool("print-token", false, "print the API token and exit")
	flag.Parse()

	if *showVersion {
		v := api.GetVersionInfo()
		fmt.Printf("geocoind %s (%s, built %s)\n", v.Version, v.GitCommit, v.BuildTime)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *printToken {
		tok, err := auth.NewTokenStore(cfg.KeyringService, cfg.SecretsPath()).EnsureToken()
		if err != nil {
			log.Fatalf("token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("geocoind: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) (err error) {
	logger := log.New(os.Stdout, "[GEOCOIND] ", log.LstdFlags)

	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, db.Close()) }()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	session, err := game.Open(ctx, cfg.Game(), game.Deps{
		KV:       db,
		Journal:  db,
		Renderer: game.NewRecordingRenderer(),
	})
	if err != nil {
		return err
	}

	token := cfg.Token
	if token == "" && cfg.RequireToken {
		if token, err = auth.NewTokenStore(cfg.KeyringService, cfg.SecretsPath()).EnsureToken(); err != nil {
			return fmt.Errorf("api token: %w", err)
		}
	}

	server := api.NewServer(api.Options{
		Session: session,
		Feed:    geo.NewFeed(),
		Journal: db,
		DB:      db,
		Token:   token,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(cfg.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("shutting down timeout=%s", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return multierr.Combine(
			server.Shutdown(shutdownCtx),
			session.Close(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Printf("stopped")
	return nil
}
