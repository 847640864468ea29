package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/accounts"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/config"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/db"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/events"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/inflight"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/pathutil"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/reconcile"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/sheets"
)

// app holds the components a command needs.
type app struct {
	cfg     *config.Config
	paths   *pathutil.PathResolver
	policy  *accounts.Policy
	emitter events.Emitter
	engine  *reconcile.Engine
	book    *reconcile.Book
}

// loadApp loads configuration and the account policy. With withSheet it
// also builds the gateway, the engine, and an empty book.
func loadApp(withSheet bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	required := [][]string{{"storage", "dataRoot"}}
	if withSheet {
		required = append(required, []string{"sheet", "scriptUrl"}, []string{"sheet", "token"})
	}
	if err := cfg.Validate(required...); err != nil {
		return nil, err
	}

	paths := pathutil.New(pathutil.Config{
		DataRoot:     cfg.Storage.DataRoot,
		DatabasePath: cfg.Storage.DBPath,
		AccountsFile: cfg.Storage.AccountsFile,
	})

	slog.Debug("Loading account policy", "path", paths.AccountsFile())
	policy, err := accounts.LoadPolicy(paths.AccountsFile())
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		paths:   paths,
		policy:  policy,
		emitter: events.NewLogEmitter(slog.Default(), slog.LevelDebug),
	}

	if withSheet {
		client := sheets.NewClient(sheets.ClientConfig{
			Timeout: cfg.Sheet.Timeout,
			Logger:  slog.Default(),
		})
		a.engine = reconcile.NewEngine(reconcile.Config{
			Gateway:     client,
			Credential:  sheets.Credential{URL: cfg.Sheet.ScriptURL, Token: cfg.Sheet.Token},
			SettleDelay: cfg.Reconcile.SettleDelay,
			RetryDelay:  cfg.Reconcile.RetryDelay,
			Emitter:     a.emitter,
		})
		a.book = reconcile.NewBook(a.engine, policy, a.emitter)
	}

	return a, nil
}

// openHistory opens the payment history database.
func (a *app) openHistory() (*db.Connection, *db.PaymentHistory, error) {
	dbPath := a.paths.DatabasePath()
	slog.Debug("Opening database", "path", dbPath)
	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return conn, db.NewPaymentHistory(conn), nil
}

// guard returns the shared Redis guard when REDIS_ADDR is set and a
// process-local guard otherwise. Only the Redis guard excludes other
// debt-tracker processes. The returned close function is never nil.
func (a *app) guard(ctx context.Context) (inflight.Guard, func(), error) {
	if a.cfg.Redis.Addr == "" {
		slog.Debug("REDIS_ADDR not set, in-flight guard only covers this process")
		return inflight.NewMemoryGuard(), func() {}, nil
	}

	g := inflight.NewRedisGuard(inflight.RedisConfig{Addr: a.cfg.Redis.Addr, Logger: slog.Default()})
	if err := g.Ping(ctx); err != nil {
		g.Close()
		return nil, nil, err
	}
	return g, func() { g.Close() }, nil
}
