/*
handlers_test.go - HTTP tests for the ledger API

Tests run the full router against an in-memory SQLite store with a fixed
clock, so "today" is always 2025-06-15.
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/cashledger/ledger"
	"github.com/warp/cashledger/store/sqlite"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t      *testing.T
	h      *Handler
	router http.Handler

	accountID  int64
	locationID int64
	categoryID int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, zap.NewNop(), Options{Now: func() time.Time { return fixedNow }})
	return &testServer{t: t, h: h, router: NewRouter(h, nil)}
}

// withCatalog creates one account, one location and one category through the API.
func (s *testServer) withCatalog() *testServer {
	var a AccountDTO
	s.mustDo(http.MethodPost, "/api/accounts", map[string]any{"name": "B1_BCP", "kind": "bank"}, http.StatusCreated, &a)
	var l LocationDTO
	s.mustDo(http.MethodPost, "/api/locations", map[string]any{"name": "Hotel"}, http.StatusCreated, &l)
	var c CategoryDTO
	s.mustDo(http.MethodPost, "/api/categories", map[string]any{"name": "Adelanto", "location_id": l.ID}, http.StatusCreated, &c)
	s.accountID, s.locationID, s.categoryID = a.ID, l.ID, c.ID
	return s
}

func (s *testServer) movement(date string, income, expense any) map[string]any {
	return map[string]any{
		"date":        date,
		"account_id":  s.accountID,
		"location_id": s.locationID,
		"category_id": s.categoryID,
		"description": "Pago",
		"income":      income,
		"expense":     expense,
	}
}

func (s *testServer) doAs(actor, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	return s.doAs("maria", method, path, body)
}

// mustDo asserts the status and decodes the body into out when non-nil.
func (s *testServer) mustDo(method, path string, body any, status int, out any) {
	s.t.Helper()
	rec := s.do(method, path, body)
	require.Equal(s.t, status, rec.Code, "body: %s", rec.Body.String())
	if out != nil {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func fieldCodes(fields []ledger.FieldError) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Code
	}
	return out
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func TestCreateMovement_AppearsInHistoryWithRunningBalance(t *testing.T) {
	// GIVEN: an account with three movements over two days
	s := newTestServer(t).withCatalog()
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-01", "1,000.00", ""), http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-02", "", 250), http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-02", "", "100.50"), http.StatusCreated, nil)

	// WHEN: the history is requested
	var rows []HistoryRowDTO
	s.mustDo(http.MethodGet, fmt.Sprintf("/api/accounts/%d/history", s.accountID), nil, http.StatusOK, &rows)

	// THEN: rows are newest first with the balance after each one
	require.Len(t, rows, 3)
	assert.Equal(t, "649.50", rows[0].RunningBalance)
	assert.Equal(t, "750.00", rows[1].RunningBalance)
	assert.Equal(t, "1000.00", rows[2].RunningBalance)
	assert.Equal(t, "B1_BCP", rows[0].AccountName)
	assert.Equal(t, "Hotel", rows[0].LocationName)
	assert.Equal(t, "maria", rows[0].CreatedBy)

	// AND: the balance endpoint agrees and is formatted for PEN
	var bal BalanceDTO
	s.mustDo(http.MethodGet, fmt.Sprintf("/api/accounts/%d/balance", s.accountID), nil, http.StatusOK, &bal)
	assert.Equal(t, "649.50", bal.Balance)
	assert.Equal(t, "PEN", bal.Currency)
	assert.NotEmpty(t, bal.Display)
}

func TestCreateMovement_ReportsEveryFieldError(t *testing.T) {
	// GIVEN: a draft with both amounts and a future date
	s := newTestServer(t).withCatalog()

	// WHEN: it is posted
	rec := s.do(http.MethodPost, "/api/movements", s.movement("2025-07-01", "10", "5"))

	// THEN: 422 lists both problems and nothing is stored
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.ElementsMatch(t, []string{ledger.CodeFutureDate, ledger.CodeSimultaneousAmount}, fieldCodes(resp.Fields))

	var list []MovementDTO
	s.mustDo(http.MethodGet, "/api/movements", nil, http.StatusOK, &list)
	assert.Empty(t, list)
}

func TestCreateMovement_UnknownReference(t *testing.T) {
	s := newTestServer(t).withCatalog()
	body := s.movement("2025-06-01", "10", "")
	body["category_id"] = 999

	rec := s.do(http.MethodPost, "/api/movements", body)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, fieldCodes(decodeError(t, rec).Fields), ledger.CodeUnknownReference)
}

func TestMutations_RequireActor(t *testing.T) {
	// GIVEN: a request without X-Actor-ID
	s := newTestServer(t).withCatalog()

	// WHEN: a movement is posted
	rec := s.doAs("", http.MethodPost, "/api/movements", s.movement("2025-06-01", "10", ""))

	// THEN: it is refused before reaching the ledger
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// AND: reads still work without an actor
	rec = s.doAs("", http.MethodGet, "/api/accounts", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateMovement_PatchAndAuditTrail(t *testing.T) {
	// GIVEN: a stored movement
	s := newTestServer(t).withCatalog()
	var created CreatedDTO
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-01", "10", ""), http.StatusCreated, &created)
	path := fmt.Sprintf("/api/movements/%d", created.ID)

	// WHEN: its description and amount are edited
	var updated MovementDTO
	s.mustDo(http.MethodPut, path, map[string]any{"description": "Pago hotel", "income": "12.345"}, http.StatusOK, &updated)

	// THEN: only those fields change and the amount is rounded
	assert.Equal(t, "Pago hotel", updated.Description)
	assert.Equal(t, "12.35", updated.Income)
	assert.Equal(t, "2025-06-01", updated.Date)
	assert.NotNil(t, updated.UpdatedAt)

	// AND: the audit trail has the insert and the update
	var trail []AuditEntryDTO
	s.mustDo(http.MethodGet, path+"/audit", nil, http.StatusOK, &trail)
	require.Len(t, trail, 2)
	assert.Equal(t, "INSERT", trail[0].Action)
	assert.Equal(t, "UPDATE", trail[1].Action)
	assert.Equal(t, "maria", trail[1].Actor)
}

func TestUpdateMovement_EmptyPatch(t *testing.T) {
	s := newTestServer(t).withCatalog()
	var created CreatedDTO
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-01", "10", ""), http.StatusCreated, &created)

	rec := s.do(http.MethodPut, fmt.Sprintf("/api/movements/%d", created.ID), map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteMovement(t *testing.T) {
	// GIVEN: a stored movement
	s := newTestServer(t).withCatalog()
	var created CreatedDTO
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-01", "10", ""), http.StatusCreated, &created)
	path := fmt.Sprintf("/api/movements/%d", created.ID)

	// WHEN: it is deleted
	s.mustDo(http.MethodDelete, path, nil, http.StatusNoContent, nil)

	// THEN: it is gone, a second delete is 404, the audit trail remains
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path, nil).Code)

	var trail []AuditEntryDTO
	s.mustDo(http.MethodGet, path+"/audit", nil, http.StatusOK, &trail)
	require.Len(t, trail, 2)
	assert.Equal(t, "DELETE", trail[1].Action)
	assert.Empty(t, trail[1].After)
}

func TestListMovements_Filters(t *testing.T) {
	s := newTestServer(t).withCatalog()
	first := s.movement("2025-06-01", "10", "")
	first["description"] = "Alquiler junio"
	s.mustDo(http.MethodPost, "/api/movements", first, http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-10", "20", ""), http.StatusCreated, nil)

	var byText []MovementDTO
	s.mustDo(http.MethodGet, "/api/movements?q=ALQUILER", nil, http.StatusOK, &byText)
	require.Len(t, byText, 1)
	assert.Equal(t, "Alquiler junio", byText[0].Description)

	var byDate []MovementDTO
	s.mustDo(http.MethodGet, "/api/movements?from=2025-06-05", nil, http.StatusOK, &byDate)
	require.Len(t, byDate, 1)
	assert.Equal(t, "2025-06-10", byDate[0].Date)

	var count CountDTO
	s.mustDo(http.MethodGet, "/api/movements/count?date=2025-06-10", nil, http.StatusOK, &count)
	assert.Equal(t, 1, count.Count)
}

func TestGetMovement_NotFoundAndBadID(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/movements/42", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/movements/abc", nil).Code)
}

// =============================================================================
// BATCH
// =============================================================================

func TestCommitBatch_PartialSuccess(t *testing.T) {
	// GIVEN: a good row, a bad row and an untouched row
	s := newTestServer(t).withCatalog()
	bad := s.movement("2025-06-02", "", "")
	rows := []map[string]any{
		s.movement("2025-06-01", "100", ""),
		bad,
		{"date": "2025-06-15"},
	}

	// WHEN: the batch is committed
	var res BatchResultDTO
	s.mustDo(http.MethodPost, "/api/movements/batch", map[string]any{"rows": rows}, http.StatusOK, &res)

	// THEN: row 1 is committed, row 2 reported, row 3 skipped
	assert.Len(t, res.Committed, 1)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 2, res.Failed[0].Row)
	assert.Contains(t, fieldCodes(res.Failed[0].Fields), ledger.CodeMissingAmount)
	assert.Equal(t, 1, res.Skipped)
}

func TestCommitBatch_RequestRuleFailsOnlyItsRow(t *testing.T) {
	// GIVEN: five rows where the third breaks a request rule and the fourth
	// breaks a ledger rule
	s := newTestServer(t).withCatalog()
	rows := make([]map[string]any, 5)
	for i := range rows {
		rows[i] = s.movement(fmt.Sprintf("2025-06-0%d", i+1), "10", "")
	}
	rows[2]["description"] = strings.Repeat("x", 501)
	rows[3]["income"] = ""

	// WHEN: the batch is committed
	var res BatchResultDTO
	s.mustDo(http.MethodPost, "/api/movements/batch", map[string]any{"rows": rows}, http.StatusOK, &res)

	// THEN: the other three rows are committed
	assert.Len(t, res.Committed, 3)
	var listed []MovementDTO
	s.mustDo(http.MethodGet, "/api/movements", nil, http.StatusOK, &listed)
	assert.Len(t, listed, 3)

	// AND: failures carry their request row numbers, in order
	require.Len(t, res.Failed, 2)
	assert.Equal(t, 3, res.Failed[0].Row)
	require.Len(t, res.Failed[0].Fields, 1)
	assert.Equal(t, "description", res.Failed[0].Fields[0].Field)
	assert.Equal(t, 4, res.Failed[1].Row)
	assert.Contains(t, fieldCodes(res.Failed[1].Fields), ledger.CodeMissingAmount)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestCreateAccount_Conflicts(t *testing.T) {
	s := newTestServer(t).withCatalog()

	// duplicate name, case-insensitive
	rec := s.do(http.MethodPost, "/api/accounts", map[string]any{"name": "b1_bcp", "kind": "cash"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// unknown currency is rejected by request validation
	rec = s.do(http.MethodPost, "/api/accounts", map[string]any{"name": "Caja", "kind": "cash", "currency": "XXZ"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := decodeError(t, rec).Fields
	require.Len(t, fields, 1)
	assert.Equal(t, "currency", fields[0].Field)

	// unknown JSON field
	rec = s.do(http.MethodPost, "/api/accounts", map[string]any{"name": "Caja", "kind": "cash", "color": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeactivateLocation_RequiresCascade(t *testing.T) {
	// GIVEN: a location with an active category
	s := newTestServer(t).withCatalog()
	path := fmt.Sprintf("/api/locations/%d/deactivate", s.locationID)

	// WHEN / THEN: plain deactivation is refused, cascading works
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, path, nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, path+"?cascade=true", nil).Code)

	var cats []CategoryDTO
	s.mustDo(http.MethodGet, fmt.Sprintf("/api/categories?location_id=%d", s.locationID), nil, http.StatusOK, &cats)
	assert.Empty(t, cats)

	// AND: new movements cannot use it any more
	rec := s.do(http.MethodPost, "/api/movements", s.movement("2025-06-01", "10", ""))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, fieldCodes(decodeError(t, rec).Fields), ledger.CodeInactiveReference)
}

func TestSeed_OnlyOnEmptyCatalog(t *testing.T) {
	s := newTestServer(t)

	var first SeedDTO
	s.mustDo(http.MethodPost, "/api/seed", nil, http.StatusOK, &first)
	assert.False(t, first.Skipped)
	assert.Positive(t, first.Accounts)

	var second SeedDTO
	s.mustDo(http.MethodPost, "/api/seed", nil, http.StatusOK, &second)
	assert.True(t, second.Skipped)
}

// =============================================================================
// SUMMARIES & ANALYTICS
// =============================================================================

func TestSummaries(t *testing.T) {
	s := newTestServer(t).withCatalog()
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-05-31", "50", ""), http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-01", "100", ""), http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-03", "", "30"), http.StatusCreated, nil)

	var monthly SummaryDTO
	s.mustDo(http.MethodGet, fmt.Sprintf("/api/accounts/%d/summary/monthly?year=2025&month=6", s.accountID), nil, http.StatusOK, &monthly)
	assert.Equal(t, "100.00", monthly.TotalIncome)
	assert.Equal(t, "30.00", monthly.TotalExpense)
	assert.Equal(t, "70.00", monthly.Balance)
	assert.Equal(t, 2, monthly.Count)

	var byLoc []LocationTotalDTO
	s.mustDo(http.MethodGet, fmt.Sprintf("/api/accounts/%d/summary/locations", s.accountID), nil, http.StatusOK, &byLoc)
	require.Len(t, byLoc, 1)
	assert.Equal(t, "120.00", byLoc[0].Balance)

	// inverted window
	rec := s.do(http.MethodGet, fmt.Sprintf("/api/accounts/%d/summary?from=2025-06-10&to=2025-06-01", s.accountID), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// malformed date
	rec = s.do(http.MethodGet, fmt.Sprintf("/api/accounts/%d/summary?from=yesterday", s.accountID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// invalid month
	rec = s.do(http.MethodGet, fmt.Sprintf("/api/accounts/%d/summary/monthly?year=2025&month=13", s.accountID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReconcile(t *testing.T) {
	s := newTestServer(t).withCatalog()
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-01", "100", ""), http.StatusCreated, nil)
	path := fmt.Sprintf("/api/accounts/%d/reconcile", s.accountID)

	var ok ReconciliationDTO
	s.mustDo(http.MethodPost, path, map[string]any{"expected_balance": "100.005"}, http.StatusOK, &ok)
	assert.True(t, ok.Matches)
	assert.Equal(t, "-0.005", ok.Difference)

	var off ReconciliationDTO
	s.mustDo(http.MethodPost, path, map[string]any{"expected_balance": 90}, http.StatusOK, &off)
	assert.False(t, off.Matches)
	assert.Equal(t, "10", off.Difference)

	rec := s.do(http.MethodPost, "/api/accounts/999/reconcile", map[string]any{"expected_balance": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectionAndAnomalies(t *testing.T) {
	s := newTestServer(t).withCatalog()
	for day := 1; day <= 6; day++ {
		s.mustDo(http.MethodPost, "/api/movements", s.movement(fmt.Sprintf("2025-06-%02d", day), "10", ""), http.StatusCreated, nil)
	}
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-07", "1000", ""), http.StatusCreated, nil)

	var p ProjectionDTO
	s.mustDo(http.MethodGet, fmt.Sprintf("/api/accounts/%d/projection?horizon=30", s.accountID), nil, http.StatusOK, &p)
	assert.Equal(t, "1060.00", p.CurrentBalance)
	assert.Equal(t, "positive", p.Trend)
	assert.Equal(t, "2120.00", p.ProjectedBalance)

	var flagged []MovementDTO
	s.mustDo(http.MethodGet, fmt.Sprintf("/api/accounts/%d/anomalies", s.accountID), nil, http.StatusOK, &flagged)
	require.Len(t, flagged, 1)
	assert.Equal(t, "1000.00", flagged[0].Income)
	assert.Equal(t, "Hotel", flagged[0].LocationName)
}

// =============================================================================
// FAVORITES & MISC
// =============================================================================

func TestFavorites(t *testing.T) {
	s := newTestServer(t).withCatalog()
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-01", "10", ""), http.StatusCreated, nil)
	s.mustDo(http.MethodPost, "/api/movements", s.movement("2025-06-02", "10", ""), http.StatusCreated, nil)

	var favs FavoritesDTO
	s.mustDo(http.MethodGet, "/api/favorites", nil, http.StatusOK, &favs)
	assert.Equal(t, []string{"Pago"}, favs.Descriptions)

	var rebuilt RebuildDTO
	s.mustDo(http.MethodPost, "/api/favorites/rebuild", nil, http.StatusOK, &rebuilt)
	assert.Equal(t, 1, rebuilt.Count)
}

func TestHealthAndRequestID(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestAmountText_AcceptsStringsAndNumbers(t *testing.T) {
	var req MovementRequest
	require.NoError(t, json.Unmarshal([]byte(`{"income": 1234.5, "expense": "1,000"}`), &req))
	assert.Equal(t, AmountText("1234.5"), req.Income)
	assert.Equal(t, AmountText("1,000"), req.Expense)

	require.NoError(t, json.Unmarshal([]byte(`{"income": null}`), &req))
	assert.Equal(t, AmountText(""), req.Income)
}
