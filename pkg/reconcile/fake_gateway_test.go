package reconcile

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shunichi-ikebuchi/debt-tracker/pkg/model"
	"github.com/shunichi-ikebuchi/debt-tracker/pkg/sheets"
)

type queuedMutation struct {
	m         model.Mutation
	remaining int
}

// fakeGateway is an in-memory store that applies mutations after lag reads.
type fakeGateway struct {
	mu sync.Mutex

	order    []string
	expenses map[string]model.PendingExpense
	entries  []model.LedgerEntry
	accounts []model.Account

	lag       int
	queued    []queuedMutation
	adjust    func(e *model.PendingExpense)
	dropAll   bool
	skipClamp bool

	submitErr error
	fetchErr  func(n int) error
	onSubmit  func()

	mutations []model.Mutation
	fetches   int
}

func newFakeGateway(expenses ...model.PendingExpense) *fakeGateway {
	g := &fakeGateway{expenses: make(map[string]model.PendingExpense)}
	for _, e := range expenses {
		g.order = append(g.order, e.ID)
		g.expenses[e.ID] = e
	}
	return g
}

func (g *fakeGateway) FetchSnapshot(ctx context.Context, cred sheets.Credential) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.fetches++
	if g.fetchErr != nil {
		if err := g.fetchErr(g.fetches); err != nil {
			return nil, err
		}
	}

	var still []queuedMutation
	for _, q := range g.queued {
		if q.remaining == 0 {
			g.apply(q.m)
			continue
		}
		q.remaining--
		still = append(still, q)
	}
	g.queued = still

	snap := &model.Snapshot{
		PendingExpenses: []model.RawPendingExpense{},
		Transactions:    append([]model.LedgerEntry{}, g.entries...),
		Accounts:        append([]model.Account{}, g.accounts...),
	}
	for _, id := range g.order {
		snap.PendingExpenses = append(snap.PendingExpenses, g.expenses[id].Raw())
	}
	return snap, nil
}

func (g *fakeGateway) SubmitMutation(ctx context.Context, cred sheets.Credential, m model.Mutation) error {
	g.mu.Lock()
	g.mutations = append(g.mutations, m)
	err := g.submitErr
	if err == nil && !g.dropAll {
		g.queued = append(g.queued, queuedMutation{m: m, remaining: g.lag})
	}
	hook := g.onSubmit
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (g *fakeGateway) apply(m model.Mutation) {
	e := m.Expense
	switch m.Action {
	case model.ActionAddPendingExpense:
		if _, ok := g.expenses[e.ID]; !ok {
			g.order = append(g.order, e.ID)
		}
	case model.ActionPayPendingExpense:
		if _, ok := g.expenses[e.ID]; !ok {
			return
		}
	}

	if g.adjust != nil {
		g.adjust(&e)
	}
	if !g.skipClamp {
		e.TotalPaid = math.Min(e.TotalPaid, e.TotalAmount)
	}
	g.expenses[e.ID] = e

	if m.Payment != nil {
		g.entries = append(g.entries, model.LedgerEntry{
			ID:          m.RequestID,
			Date:        m.Payment.Date,
			Category:    "Deudas",
			Description: e.Description,
			Amount:      m.Payment.Amount,
			Account:     m.Payment.Account,
			Type:        model.EntryExpense,
			Timestamp:   time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).Format(time.RFC3339),
		})
	}
}

func (g *fakeGateway) remote(id string) model.PendingExpense {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expenses[id]
}

func (g *fakeGateway) counts() (mutations, fetches int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.mutations), g.fetches
}

// sleepRecorder records requested delays without waiting.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
	ctxErr []error
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	s.ctxErr = append(s.ctxErr, ctx.Err())
	return nil
}
