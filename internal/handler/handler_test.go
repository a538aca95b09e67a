package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/betting-ledger/internal/auth"
	"github.com/josh-kwaku/betting-ledger/internal/domain"
	"github.com/josh-kwaku/betting-ledger/internal/limits"
	"github.com/josh-kwaku/betting-ledger/internal/service/ledger"
	"github.com/josh-kwaku/betting-ledger/internal/service/settlement"
)

var testTenant = uuid.MustParse("11111111-1111-1111-1111-111111111111")

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

func readEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newRequest(method, target, body string, id auth.Identity) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	return req.WithContext(auth.ContextWithIdentity(req.Context(), id))
}

func operator() auth.Identity {
	return auth.Identity{UserID: uuid.New(), TenantID: testTenant, Role: auth.RoleOperator}
}

func TestRespondDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wallet not found", fmt.Errorf("Deposit: %w", domain.ErrWalletNotFound), http.StatusNotFound, "RESOURCE_NOT_FOUND"},
		{"insufficient funds", fmt.Errorf("Withdrawal: %w", domain.ErrInsufficientFunds), http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
		{"bad amount", domain.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"currency mismatch", domain.ErrCurrencyMismatch, http.StatusUnprocessableEntity, "CURRENCY_MISMATCH"},
		{"already settled", fmt.Errorf("SetEventResult: %w", domain.ErrAlreadySettled), http.StatusConflict, "ALREADY_PROCESSED"},
		{"already reversed", domain.ErrAlreadyReversed, http.StatusConflict, "ALREADY_PROCESSED"},
		{"version conflict", domain.ErrVersionConflict, http.StatusConflict, "VERSION_CONFLICT"},
		{"invalid request", domain.ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondDomainError(rec, httptest.NewRequest(http.MethodPost, "/", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := readEnvelope(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
		})
	}
}

func TestRespondDomainError_ConflictReason(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondDomainError(rec, httptest.NewRequest(http.MethodPost, "/", nil),
		fmt.Errorf("ManualSettleBet: bet abc: %w", domain.ErrBetNotPending))

	require.Equal(t, http.StatusConflict, rec.Code)
	var details map[string]string
	require.NoError(t, json.Unmarshal(readEnvelope(t, rec).Error.Details, &details))
	assert.Equal(t, domain.ErrBetNotPending.Error(), details["reason"])
}

func TestRespondDomainError_BetRejected(t *testing.T) {
	maxStake := decimal.RequireFromString("66.666")
	verr := &limits.ValidationError{Result: limits.Result{
		Violations:      []limits.Violation{{Rule: limits.RuleMaxWinning, Message: "potential win exceeds limit"}},
		TotalOdds:       decimal.RequireFromString("75"),
		PotentialWin:    decimal.RequireFromString("7500"),
		MaxAllowedStake: &maxStake,
	}}

	rec := httptest.NewRecorder()
	RespondDomainError(rec, httptest.NewRequest(http.MethodPost, "/", nil), fmt.Errorf("PlaceBet: %w", verr))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	env := readEnvelope(t, rec)
	assert.Equal(t, "BET_REJECTED", env.Error.Code)

	var d betRejection
	require.NoError(t, json.Unmarshal(env.Error.Details, &d))
	require.Len(t, d.Violations, 1)
	assert.Equal(t, limits.RuleMaxWinning, d.Violations[0].Rule)
	assert.Equal(t, "7500.00", d.PotentialWin)
	require.NotNil(t, d.MaxAllowedStake)
	assert.Equal(t, "66.67", *d.MaxAllowedStake)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantCode   string
		wantFields []string
	}{
		{
			name:   "valid",
			body:   `{"wallet_id":"` + uuid.NewString() + `","amount":"25.50"}`,
			wantOK: true,
		},
		{
			name:     "malformed json",
			body:     `{"wallet_id":`,
			wantCode: "INVALID_REQUEST",
		},
		{
			name:     "unknown field",
			body:     `{"wallet_id":"` + uuid.NewString() + `","amount":5,"extra":1}`,
			wantCode: "INVALID_REQUEST",
		},
		{
			name:       "missing wallet and negative amount",
			body:       `{"amount":-5}`,
			wantCode:   "VALIDATION_FAILED",
			wantFields: []string{"wallet_id", "amount"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			var dst walletMoneyRequest
			ok := decode(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)), &dst)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				return
			}

			env := readEnvelope(t, rec)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			if tt.wantFields == nil {
				return
			}
			var fields []FieldError
			require.NoError(t, json.Unmarshal(env.Error.Details, &fields))
			got := make([]string, len(fields))
			for i, f := range fields {
				got[i] = f.Field
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestCanSee(t *testing.T) {
	player := auth.Identity{UserID: uuid.New(), TenantID: testTenant, Role: auth.RolePlayer}
	otherTenant := uuid.New()

	tests := []struct {
		name   string
		id     auth.Identity
		tenant uuid.UUID
		owner  uuid.UUID
		want   bool
	}{
		{"player own resource", player, testTenant, player.UserID, true},
		{"player other owner", player, testTenant, uuid.New(), false},
		{"staff same tenant", operator(), testTenant, uuid.New(), true},
		{"staff other tenant", operator(), otherTenant, uuid.New(), false},
		{"player own id other tenant", player, otherTenant, player.UserID, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canSee(tt.id, tt.tenant, tt.owner))
		})
	}
}

type fakeLedger struct {
	ledgerService
	wallets   map[uuid.UUID]*domain.Wallet
	deposited *ledger.DepositRequest
}

func (f *fakeLedger) GetWallet(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, ok := f.wallets[id]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}
	return w, nil
}

func (f *fakeLedger) Deposit(_ context.Context, req ledger.DepositRequest) (*domain.LedgerEntry, error) {
	f.deposited = &req
	return &domain.LedgerEntry{
		ID:              uuid.New(),
		TenantID:        req.TenantID,
		Amount:          req.Amount,
		Currency:        domain.CurrencyUSD,
		TransactionType: domain.TxDeposit,
		Status:          domain.EntryStatusCompleted,
		CreatedBy:       req.CreatedBy,
	}, nil
}

func (f *fakeLedger) GetAccountBalance(context.Context, uuid.UUID) (*domain.AccountBalance, error) {
	return nil, domain.ErrNotFound
}

func newWallet(tenant, owner uuid.UUID) *domain.Wallet {
	return &domain.Wallet{
		ID:               uuid.New(),
		OwnerID:          owner,
		TenantID:         tenant,
		OwnerKind:        domain.AccountKindPlayer,
		Currency:         domain.CurrencyUSD,
		AvailableBalance: decimal.RequireFromString("40"),
	}
}

func TestLedgerHandler_Deposit(t *testing.T) {
	own := newWallet(testTenant, uuid.New())
	foreign := newWallet(uuid.New(), uuid.New())
	fake := &fakeLedger{wallets: map[uuid.UUID]*domain.Wallet{own.ID: own, foreign.ID: foreign}}
	h := NewLedgerHandler(fake)
	staff := operator()

	t.Run("credits the wallet", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Deposit(rec, newRequest(http.MethodPost, "/api/v1/ledger/deposits",
			`{"wallet_id":"`+own.ID.String()+`","amount":"100.00","external_ref":"psp-1"}`, staff))

		require.Equal(t, http.StatusCreated, rec.Code)
		require.NotNil(t, fake.deposited)
		assert.Equal(t, testTenant, fake.deposited.TenantID)
		assert.Equal(t, staff.UserID, fake.deposited.CreatedBy)
		assert.Equal(t, "100.00", fake.deposited.Amount.StringFixed(2))

		var entry entryDTO
		require.NoError(t, json.Unmarshal(readEnvelope(t, rec).Data, &entry))
		assert.Equal(t, "DEPOSIT", entry.TransactionType)
	})

	t.Run("wallet of another tenant is not found", func(t *testing.T) {
		fake.deposited = nil
		rec := httptest.NewRecorder()
		h.Deposit(rec, newRequest(http.MethodPost, "/api/v1/ledger/deposits",
			`{"wallet_id":"`+foreign.ID.String()+`","amount":"10"}`, staff))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Nil(t, fake.deposited)
	})

	t.Run("no identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Deposit(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLedgerHandler_BalanceVisibility(t *testing.T) {
	owner := uuid.New()
	w := newWallet(testTenant, owner)
	h := NewLedgerHandler(&fakeLedger{wallets: map[uuid.UUID]*domain.Wallet{w.ID: w}})

	tests := []struct {
		name       string
		id         auth.Identity
		wantStatus int
	}{
		{"owner", auth.Identity{UserID: owner, TenantID: testTenant, Role: auth.RolePlayer}, http.StatusOK},
		{"other player", auth.Identity{UserID: uuid.New(), TenantID: testTenant, Role: auth.RolePlayer}, http.StatusNotFound},
		{"operator", operator(), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(http.MethodGet, "/api/v1/wallets/"+w.ID.String()+"/balance", "", tt.id)
			req.SetPathValue("id", w.ID.String())
			rec := httptest.NewRecorder()
			h.Balance(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var dto balanceDTO
			require.NoError(t, json.Unmarshal(readEnvelope(t, rec).Data, &dto))
			assert.Equal(t, "40.00", dto.AvailableBalance.StringFixed(2))
			assert.Zero(t, dto.TransactionCount)
		})
	}
}

type fakeSettlement struct {
	settlementService
	events map[uuid.UUID]*domain.Event
	score  *domain.Score
	err    error
}

func (f *fakeSettlement) GetEvent(_ context.Context, id uuid.UUID) (*domain.Event, error) {
	ev, ok := f.events[id]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	return ev, nil
}

func (f *fakeSettlement) SetEventResult(_ context.Context, eventID uuid.UUID, score domain.Score, _ uuid.UUID) (*settlement.EventSettlementSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.score = &score
	return &settlement.EventSettlementSummary{
		EventID:      eventID,
		BetsFound:    1,
		BetsSettled:  1,
		Won:          1,
		TotalStaked:  decimal.RequireFromString("20"),
		TotalPaidOut: decimal.RequireFromString("68.40"),
		GGR:          decimal.RequireFromString("-48.40"),
	}, nil
}

func TestSettlementHandler_SetResult(t *testing.T) {
	ev := &domain.Event{ID: uuid.New(), TenantID: testTenant, HomeTeam: "Arsenal", AwayTeam: "Chelsea", Status: domain.EventStatusScheduled}
	foreign := &domain.Event{ID: uuid.New(), TenantID: uuid.New()}

	tests := []struct {
		name       string
		eventID    uuid.UUID
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "settles", eventID: ev.ID, body: `{"home_score":2,"away_score":1}`, wantStatus: http.StatusOK},
		{name: "zero zero is a score", eventID: ev.ID, body: `{"home_score":0,"away_score":0}`, wantStatus: http.StatusOK},
		{name: "missing away score", eventID: ev.ID, body: `{"home_score":2}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "negative score", eventID: ev.ID, body: `{"home_score":-1,"away_score":0}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "other tenant", eventID: foreign.ID, body: `{"home_score":1,"away_score":0}`, wantStatus: http.StatusNotFound, wantCode: "RESOURCE_NOT_FOUND"},
		{name: "unknown event", eventID: uuid.New(), body: `{"home_score":1,"away_score":0}`, wantStatus: http.StatusNotFound, wantCode: "RESOURCE_NOT_FOUND"},
		{name: "already finished", eventID: ev.ID, body: `{"home_score":1,"away_score":0}`, err: domain.ErrAlreadySettled, wantStatus: http.StatusConflict, wantCode: "ALREADY_PROCESSED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSettlement{events: map[uuid.UUID]*domain.Event{ev.ID: ev, foreign.ID: foreign}, err: tt.err}
			h := NewSettlementHandler(fake)

			req := newRequest(http.MethodPost, "/api/v1/events/"+tt.eventID.String()+"/result", tt.body, operator())
			req.SetPathValue("id", tt.eventID.String())
			rec := httptest.NewRecorder()
			h.SetResult(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
			env := readEnvelope(t, rec)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, env.Error.Code)
				return
			}
			require.NotNil(t, fake.score)
			var s summaryDTO
			require.NoError(t, json.Unmarshal(env.Data, &s))
			assert.Equal(t, ev.ID, s.EventID)
			assert.Equal(t, 1, s.Won)
		})
	}
}
