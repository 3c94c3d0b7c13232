// Command agentsim runs the synthetic-agent activity simulator: a SQLite
// backend, the simulation registry, and the HTTP control API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kindledapp/agentsim/internal/api"
	"github.com/kindledapp/agentsim/internal/backend"
	"github.com/kindledapp/agentsim/internal/config"
	"github.com/kindledapp/agentsim/internal/realtime"
	"github.com/kindledapp/agentsim/internal/sim"
)

func main() {
	root := &cobra.Command{
		Use:          "agentsim",
		Short:        "Synthetic-agent activity simulator for the Kindled community backend",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), seedCmd(), cleanupCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)
}

func openStore(cfg *config.Config) (*backend.SQLite, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return backend.OpenSQLite(cfg.DBPath)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend store and simulation control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg)

			db, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()
			slog.Info("store opened", "path", cfg.DBPath)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			hub := realtime.NewHub()
			go hub.Run(ctx)
			db.SetNotifier(hub)

			seed := cfg.Seed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			registry := sim.NewRegistry(db, sim.NewRand(seed), seed+1)

			server := &api.Server{
				Control:  registry,
				Rooms:    db,
				WS:       hub.ServeWS,
				AdminKey: cfg.AdminKey,
			}
			if cfg.AdminKey == "" {
				slog.Warn("AGENTSIM_ADMIN_KEY not set, mutating endpoints are open")
			}

			httpServer := &http.Server{
				Addr:    ":" + cfg.Port,
				Handler: server.Router(),
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				slog.Info("received signal, shutting down", "signal", sig)
				registry.StopAll()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				_ = httpServer.Shutdown(shutdownCtx)
				cancel()
			}()

			slog.Info("control API listening", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("http server: %w", err)
			}
			slog.Info("shutdown complete")
			return nil
		},
	}
}

// seedRooms are the demo rooms created by `agentsim seed`.
var seedRooms = []struct {
	Name     string
	Capacity int
}{
	{"Morning Prayer Circle", 8},
	{"Young Adults", 12},
	{"Neighborhood Watchcare", 10},
	{"Bible Study: Gospels", 8},
	{"Parents Connect", 15},
}

var seedUsers = []string{
	"Dana Okafor", "Jesse Tran", "Maribel Santos", "Kofi Mensah",
	"Elena Vasquez", "Tom Albright", "Priya Nair", "Sam Whitaker",
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create demo rooms and non-simulated users in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg)

			db, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			now := time.Now().UTC()

			for _, r := range seedRooms {
				room := backend.Room{ID: uuid.NewString(), Name: r.Name, Capacity: r.Capacity}
				if err := db.CreateRoom(ctx, room); err != nil {
					return err
				}
				slog.Info("room created", "name", r.Name, "capacity", r.Capacity)
			}

			for i, name := range seedUsers {
				u := backend.User{
					ID:          uuid.NewString(),
					DisplayName: name,
					Email:       fmt.Sprintf("demo%d@kindled.app", i+1),
					Lat:         47.6062, // Seattle demo area
					Lng:         -122.3321,
					CareScore:   20 + i*5,
					LastActive:  now,
					CreatedAt:   now,
				}
				if err := db.CreateUser(ctx, u); err != nil {
					return err
				}
				slog.Info("user created", "name", name)
			}

			slog.Info("seed complete", "rooms", len(seedRooms), "users", len(seedUsers))
			return nil
		},
	}
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <simulation-id>",
		Short: "Delete simulated user rows left behind by a stopped simulation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogging(cfg)

			db, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			n, err := db.DeleteSimulatedUsers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			slog.Info("cleanup complete", "simulation", args[0], "deleted", n)
			return nil
		},
	}
}
