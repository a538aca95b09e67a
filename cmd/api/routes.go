package main

import (
	"net/http"

	"github.com/josh-kwaku/betting-ledger/internal/auth"
	"github.com/josh-kwaku/betting-ledger/internal/cache"
	"github.com/josh-kwaku/betting-ledger/internal/handler"
	"github.com/josh-kwaku/betting-ledger/internal/metrics"
	"github.com/josh-kwaku/betting-ledger/internal/middleware"
)

type routeDeps struct {
	jwtSecret   string
	idempotency *cache.IdempotencyStore
	metrics     *metrics.Metrics

	health     *handler.HealthHandler
	ledger     *handler.LedgerHandler
	reports    *handler.ReportHandler
	bets       *handler.BetHandler
	settlement *handler.SettlementHandler
}

var (
	staff    = []auth.Role{auth.RoleAdmin, auth.RoleOperator}
	admin    = []auth.Role{auth.RoleAdmin}
	player   = []auth.Role{auth.RolePlayer}
	everyone = []auth.Role{auth.RoleAdmin, auth.RoleOperator, auth.RoleAgent, auth.RolePlayer}
)

func newRouter(d routeDeps) http.Handler {
	mux := http.NewServeMux()

	protected := func(h http.HandlerFunc, roles []auth.Role) http.Handler {
		return middleware.Chain(h,
			middleware.Auth(d.jwtSecret),
			middleware.RequireRole(roles...),
			middleware.Idempotency(d.idempotency),
		)
	}

	mux.HandleFunc("GET /health", d.health.Liveness)
	mux.HandleFunc("GET /health/ready", d.health.Readiness)

	mux.Handle("POST /api/v1/ledger/deposits", protected(d.ledger.Deposit, staff))
	mux.Handle("POST /api/v1/ledger/withdrawals", protected(d.ledger.Withdrawal, staff))
	mux.Handle("POST /api/v1/ledger/bonuses", protected(d.ledger.Bonus, staff))
	mux.Handle("POST /api/v1/ledger/commissions", protected(d.ledger.Commission, staff))
	mux.Handle("POST /api/v1/ledger/agent-settlements", protected(d.ledger.AgentSettlement, staff))
	mux.Handle("POST /api/v1/ledger/revenue-shares", protected(d.ledger.RevenueShare, admin))
	mux.Handle("POST /api/v1/ledger/adjustments", protected(d.ledger.Adjustment, admin))
	mux.Handle("GET /api/v1/ledger/entries/{id}", protected(d.ledger.GetEntry, staff))
	mux.Handle("POST /api/v1/ledger/entries/{id}/reverse", protected(d.ledger.Reverse, admin))
	mux.Handle("POST /api/v1/ledger/entries/{id}/approve", protected(d.ledger.Approve, admin))

	mux.Handle("GET /api/v1/wallets/{id}/balance", protected(d.ledger.Balance, everyone))
	mux.Handle("GET /api/v1/wallets/{id}/statement", protected(d.reports.Statement, everyone))
	mux.Handle("GET /api/v1/players/{id}/win-loss", protected(d.reports.WinLoss, everyone))
	mux.Handle("GET /api/v1/reports/financial", protected(d.reports.Financial, staff))

	mux.Handle("POST /api/v1/bets/validate", protected(d.bets.Validate, everyone))
	mux.Handle("POST /api/v1/bets", protected(d.bets.Place, player))
	mux.Handle("GET /api/v1/bets/{id}", protected(d.bets.Get, everyone))
	mux.Handle("POST /api/v1/bets/{id}/settle", protected(d.bets.ManualSettle, admin))

	mux.Handle("POST /api/v1/events/{id}/result", protected(d.settlement.SetResult, staff))
	mux.Handle("POST /api/v1/events/{id}/cancel", protected(d.settlement.Cancel, staff))
	mux.Handle("POST /api/v1/events/{id}/retry-settlement", protected(d.settlement.Retry, admin))
	mux.Handle("GET /api/v1/settlements/stats", protected(d.settlement.Stats, staff))
	mux.Handle("GET /api/v1/settlements/pending", protected(d.settlement.Pending, staff))

	return middleware.Chain(mux,
		middleware.Tracing,
		middleware.Logging(d.metrics),
		middleware.Recovery,
	)
}
