// Package main runs a local emulator of the spreadsheet script endpoint.
//
// Mutations are accepted immediately and applied after APPLY_DELAY, so
// clients see the same eventual visibility as with the real endpoint.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/shunichi-ikebuchi/debt-tracker/internal/emulator/api"
	"github.com/shunichi-ikebuchi/debt-tracker/internal/emulator/store"
)

const (
	defaultPort       = "8090"
	defaultDBPath     = "./data/sheet.db"
	defaultApplyDelay = 1500 * time.Millisecond
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// A missing .env is fine.
	_ = godotenv.Load()

	port := getEnvOrDefault("PORT", defaultPort)
	dbPath := getEnvOrDefault("DB_PATH", defaultDBPath)

	applyDelay := defaultApplyDelay
	if v := os.Getenv("APPLY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid APPLY_DELAY", "value", v, "error", err)
			os.Exit(1)
		}
		applyDelay = d
	}

	var skew float64
	if v := os.Getenv("PAID_SKEW"); v != "" {
		s, err := strconv.ParseFloat(v, 64)
		if err != nil {
			slog.Error("invalid PAID_SKEW", "value", v, "error", err)
			os.Exit(1)
		}
		skew = s
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	st, err := store.New(dbPath)
	if err != nil {
		slog.Error("failed to initialize store", "error", err, "db_path", dbPath)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()
	slog.Info("database initialized", "db_path", dbPath)

	if seedPath := os.Getenv("SEED_FILE"); seedPath != "" {
		snap, err := store.LoadSeedFile(seedPath)
		if err == nil {
			err = st.Seed(snap)
		}
		if err != nil {
			slog.Error("failed to seed store", "error", err, "seed_file", seedPath)
			os.Exit(1)
		}
		slog.Info("store seeded",
			"seed_file", seedPath,
			"pending_expenses", len(snap.PendingExpenses),
			"transactions", len(snap.Transactions),
			"accounts", len(snap.Accounts),
		)
	}

	handler := api.NewScriptHandler(st, api.Config{
		ScriptID:   os.Getenv("SCRIPT_ID"),
		Token:      os.Getenv("SHEET_TOKEN"),
		ApplyDelay: applyDelay,
		PaidSkew:   skew,
		Logger:     logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	handler.Routes(r)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%s", port)
	slog.Info("starting sheet emulator", "addr", addr, "apply_delay", applyDelay.String())

	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		slog.Info("shutting down server")
		if err := server.Close(); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	handler.Wait()
	slog.Info("server stopped")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
