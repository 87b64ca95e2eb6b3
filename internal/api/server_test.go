package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finledger/recon-backend/internal/api/dto"
	"github.com/finledger/recon-backend/internal/application/recon"
	"github.com/finledger/recon-backend/internal/domain/bank"
	"github.com/finledger/recon-backend/internal/domain/ledger"
	"github.com/finledger/recon-backend/internal/infrastructure/storage"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type testEnv struct {
	repo   *storage.MockRepository
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := recon.NewService(repo, recon.Config{Workers: 2}, logger)
	server := NewServer(DefaultConfig(), repo, service, logger)
	return &testEnv{repo: repo, router: server.Router()}
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, e.repo.CreateBankAccount(ctx, &bank.Account{
		ID:         "acct-1",
		BusinessID: "biz-1",
		Currency:   "USD",
		Active:     true,
	}))
	require.NoError(t, e.repo.CreateStatement(ctx, &bank.Statement{
		ID:            "stmt-1",
		BankAccountID: "acct-1",
		StatementDate: time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Lines: []bank.StatementLine{
			{Index: 0, Description: "wire in", Amount: dec("500.00"), TransactionDate: day},
			{Index: 1, Description: "mystery fee", Amount: dec("-9.99"), TransactionDate: day},
		},
	}))
	require.NoError(t, e.repo.SaveTransaction(ctx, &ledger.Transaction{
		ID:          "tx-1",
		BusinessID:  "biz-1",
		Date:        day,
		Description: "incoming wire",
		Lines:       []ledger.Line{{AccountID: "cash", Credit: dec("500.00")}},
	}))
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestAutoMatchEndpoint(t *testing.T) {
	t.Run("matches and returns the batch", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t)

		rec := env.do(t, http.MethodPost, "/api/reconciliations/stmt-1/matches",
			dto.AutoMatchRequest{BusinessID: "biz-1"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body dto.MatchListResponse
		decodeBody(t, rec, &body)
		require.Equal(t, 1, body.TotalCount)
		assert.Equal(t, "tx-1", body.Matches[0].TransactionID)
		assert.Equal(t, 0, body.Matches[0].LineIndex)
		assert.Equal(t, storage.MatchTypeAuto, body.Matches[0].MatchType)
		assert.True(t, env.repo.SaveMatchesCalled)
	})

	t.Run("missing business_id", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t)

		rec := env.do(t, http.MethodPost, "/api/reconciliations/stmt-1/matches",
			dto.AutoMatchRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown statement", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/api/reconciliations/nope/matches",
			dto.AutoMatchRequest{BusinessID: "biz-1"})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var apiErr dto.APIError
		decodeBody(t, rec, &apiErr)
		assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		env := newTestEnv(t)
		req := httptest.NewRequest(http.MethodPost, "/api/reconciliations/stmt-1/matches",
			bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSummaryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	rec := env.do(t, http.MethodPost, "/api/reconciliations/stmt-1/matches",
		dto.AutoMatchRequest{BusinessID: "biz-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/reconciliations/stmt-1/summary",
		dto.SummaryRequest{BusinessID: "biz-1", BankAccountID: "acct-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body dto.SummaryResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, 2, body.TotalStatementLines)
	assert.Equal(t, 1, body.MatchedLines)
	assert.Equal(t, 1, body.UnmatchedLines)
	assert.Equal(t, "490.01", body.TotalStatementAmount)
	assert.Equal(t, "500", body.MatchedAmount)
	assert.Equal(t, "-9.99", body.UnmatchedAmount)
	assert.InDelta(t, 50.0, body.MatchPercentage, 0.001)
	require.Len(t, body.Variances, 1)
	assert.Equal(t, storage.VarianceMissingTransaction, body.Variances[0].VarianceType)
	assert.Equal(t, "-9.99", body.Variances[0].Amount)

	t.Run("missing bank_account_id", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/reconciliations/stmt-1/summary",
			dto.SummaryRequest{BusinessID: "biz-1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("account owned by another business", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/reconciliations/stmt-1/summary",
			dto.SummaryRequest{BusinessID: "someone-else", BankAccountID: "acct-1"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestListMatchesAndVariancesEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	env.do(t, http.MethodPost, "/api/reconciliations/stmt-1/matches",
		dto.AutoMatchRequest{BusinessID: "biz-1"})
	env.do(t, http.MethodPost, "/api/reconciliations/stmt-1/summary",
		dto.SummaryRequest{BusinessID: "biz-1", BankAccountID: "acct-1"})

	rec := env.do(t, http.MethodGet, "/api/reconciliations/stmt-1/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var matches dto.MatchListResponse
	decodeBody(t, rec, &matches)
	assert.Equal(t, 1, matches.TotalCount)

	rec = env.do(t, http.MethodGet, "/api/reconciliations/stmt-1/variances", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var variances dto.VarianceListResponse
	decodeBody(t, rec, &variances)
	assert.Equal(t, 1, variances.TotalCount)
}

func TestManualMatchEndpoint(t *testing.T) {
	t.Run("creates with full confidence", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t)

		rec := env.do(t, http.MethodPost, "/api/matches", dto.ManualMatchRequest{
			StatementID:   "stmt-1",
			LineIndex:     1,
			TransactionID: "tx-9",
			MatchedBy:     "alex@example.com",
			Notes:         "vendor refund",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var body dto.MatchResponse
		decodeBody(t, rec, &body)
		assert.Equal(t, storage.MatchTypeManual, body.MatchType)
		assert.Equal(t, 1.0, body.Confidence)
		assert.Equal(t, "alex@example.com", body.MatchedBy)
		assert.NotEmpty(t, body.ID)
	})

	t.Run("line index out of range", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed(t)

		rec := env.do(t, http.MethodPost, "/api/matches", dto.ManualMatchRequest{
			StatementID:   "stmt-1",
			LineIndex:     99,
			TransactionID: "tx-9",
			MatchedBy:     "alex@example.com",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing required fields", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/matches", dto.ManualMatchRequest{
			StatementID: "stmt-1",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var apiErr dto.APIError
		decodeBody(t, rec, &apiErr)
		assert.Equal(t, dto.ErrCodeValidation, apiErr.Code)
	})

	t.Run("unknown statement", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodPost, "/api/matches", dto.ManualMatchRequest{
			StatementID:   "nope",
			TransactionID: "tx-9",
			MatchedBy:     "alex@example.com",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRulesEndpoints(t *testing.T) {
	days := 2
	createReq := dto.CreateRuleRequest{
		BusinessID: "biz-1",
		Name:       "payroll",
		Conditions: []dto.RuleConditionRequest{
			{Field: "description", Operator: "contains", Value: "acme"},
			{Field: "amount", Operator: "between", Value: "0.05"},
		},
		AmountTolerance:   "0.05",
		DateToleranceDays: &days,
		Priority:          5,
		Active:            true,
	}

	t.Run("create and list", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/api/rules", createReq)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created dto.RuleResponse
		decodeBody(t, rec, &created)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "biz-1", created.BusinessID)
		assert.Equal(t, "0.05", created.AmountTolerance)
		require.NotNil(t, created.DateToleranceDays)
		assert.Equal(t, 2, *created.DateToleranceDays)

		var conditions []dto.RuleConditionRequest
		require.NoError(t, json.Unmarshal(created.Conditions, &conditions))
		require.Len(t, conditions, 2)
		assert.Equal(t, "description", conditions[0].Field)
		assert.Equal(t, "between", conditions[1].Operator)

		rec = env.do(t, http.MethodGet, "/api/rules?business_id=biz-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var listed dto.RuleListResponse
		decodeBody(t, rec, &listed)
		require.Equal(t, 1, listed.TotalCount)
		assert.Equal(t, created.ID, listed.Rules[0].ID)
	})

	t.Run("rejects unknown condition field", func(t *testing.T) {
		env := newTestEnv(t)
		bad := createReq
		bad.Conditions = []dto.RuleConditionRequest{{Field: "counterparty", Operator: "equals"}}

		rec := env.do(t, http.MethodPost, "/api/rules", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects rule without conditions", func(t *testing.T) {
		env := newTestEnv(t)
		bad := createReq
		bad.Conditions = nil

		rec := env.do(t, http.MethodPost, "/api/rules", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list requires business_id", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, http.MethodGet, "/api/rules", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRuleDrivenMatchOverHTTP(t *testing.T) {
	// End to end through the API: configure a tolerance rule, run the
	// matcher, and read the resulting RULE_BASED match back.
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	// The fee line is 2 cents off this transaction, so only the rule
	// path can match it.
	require.NoError(t, env.repo.SaveTransaction(ctx, &ledger.Transaction{
		ID:          "tx-fee",
		BusinessID:  "biz-1",
		Date:        day,
		Description: "monthly service fee",
		Lines:       []ledger.Line{{AccountID: "fees", Debit: dec("10.01")}},
	}))

	days := 2
	rec := env.do(t, http.MethodPost, "/api/rules", dto.CreateRuleRequest{
		BusinessID: "biz-1",
		Name:       "bank fees",
		Conditions: []dto.RuleConditionRequest{
			{Field: "description", Operator: "contains", Value: "fee"},
			{Field: "amount", Operator: "between", Value: "0.05"},
		},
		AmountTolerance:   "0.05",
		DateToleranceDays: &days,
		Priority:          10,
		Active:            true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/reconciliations/stmt-1/matches",
		dto.AutoMatchRequest{BusinessID: "biz-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body dto.MatchListResponse
	decodeBody(t, rec, &body)
	require.Equal(t, 2, body.TotalCount)

	byLine := make(map[int]dto.MatchResponse, len(body.Matches))
	for _, m := range body.Matches {
		byLine[m.LineIndex] = m
	}
	assert.Equal(t, storage.MatchTypeAuto, byLine[0].MatchType)
	require.Contains(t, byLine, 1)
	assert.Equal(t, storage.MatchTypeRuleBased, byLine[1].MatchType)
	assert.Equal(t, "tx-fee", byLine[1].TransactionID)
	assert.Equal(t, 1.0, byLine[1].Confidence)
}
