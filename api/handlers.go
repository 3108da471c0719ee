/*
handlers.go - HTTP API handlers for the cash ledger

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger services.

ENDPOINTS:
  Catalog:
    GET    /api/accounts                     List accounts (?include_inactive=true)
    POST   /api/accounts                     Create account
    GET    /api/accounts/{id}                Get account
    PUT    /api/accounts/{id}                Rename / change kind
    POST   /api/accounts/{id}/deactivate     Soft-delete
    POST   /api/accounts/{id}/reactivate     Undo soft-delete
    (same shape for /api/locations and /api/categories; location
     deactivation takes ?cascade=true)

  Movements:
    GET    /api/movements                    Search (?account_id&location_id&from&to&q&limit)
    POST   /api/movements                    Create one movement
    POST   /api/movements/batch              Commit a grid of rows
    GET    /api/movements/count?date=        Movements booked on a day
    GET    /api/movements/{id}               Get one movement
    PUT    /api/movements/{id}               Edit a movement
    DELETE /api/movements/{id}               Delete a movement
    GET    /api/movements/{id}/audit         Audit trail

  Balances & analytics:
    GET    /api/accounts/balances            Current balance of every active account
    GET    /api/accounts/{id}/balance        Current balance
    GET    /api/accounts/{id}/history        Running balance (?from&to)
    GET    /api/accounts/{id}/summary        Period totals (?from&to)
    GET    /api/accounts/{id}/summary/monthly    (?year&month)
    GET    /api/accounts/{id}/summary/locations  (?from&to)
    GET    /api/accounts/{id}/projection     (?horizon)
    GET    /api/accounts/{id}/anomalies      (?window&threshold)
    POST   /api/accounts/{id}/reconcile      Compare with a statement balance

ERROR HANDLING:
  Errors are returned as JSON {error, details, fields}:
  - 400: Malformed body or query, empty edit, inverted period, missing actor
  - 404: Movement or catalog row not found
  - 409: Catalog constraint (duplicate name, inactive parent, ...)
  - 422: Field validation; "fields" lists every problem
  - 503: The store failed

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/cashledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options tunes handler defaults. Zero values fall back to the ledger defaults.
type Options struct {
	DefaultCurrency   string
	FavoritesLimit    int
	ProjectionHorizon int
	AnomalyWindowDays int
	AnomalyThreshold  decimal.Decimal
	Now               func() time.Time
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     ledger.Store
	Catalog   *ledger.Catalog
	Service   *ledger.Service
	Balances  *ledger.BalanceEngine
	Analytics *ledger.Analytics
	Batch     *ledger.BatchCoordinator
	Logger    *zap.Logger

	opts     Options
	validate *validator.Validate
}

// NewHandler wires every ledger service to the given store.
func NewHandler(store ledger.Store, logger *zap.Logger, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.FavoritesLimit <= 0 {
		opts.FavoritesLimit = ledger.DefaultFavoritesLimit
	}
	if opts.ProjectionHorizon <= 0 {
		opts.ProjectionHorizon = ledger.DefaultProjectionHorizon
	}
	if opts.AnomalyWindowDays <= 0 {
		opts.AnomalyWindowDays = ledger.DefaultAnomalyWindowDays
	}
	if !opts.AnomalyThreshold.IsPositive() {
		opts.AnomalyThreshold = ledger.DefaultAnomalyThreshold
	}

	svc := ledger.NewService(store, logger.Named("ledger"), opts.Now)
	balances := ledger.NewBalanceEngine(store)
	return &Handler{
		Store:     store,
		Catalog:   ledger.NewCatalog(store, opts.DefaultCurrency),
		Service:   svc,
		Balances:  balances,
		Analytics: ledger.NewAnalytics(balances, opts.Now),
		Batch:     ledger.NewBatchCoordinator(svc),
		Logger:    logger,
		opts:      opts,
		validate:  newValidator(),
	}
}

// Health pings the store when it supports it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns accounts ordered by name.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Catalog.Accounts(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list accounts", err)
		return
	}
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount creates a new account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.Catalog.CreateAccount(r.Context(), req.Name, ledger.AccountKind(req.Kind), req.Currency)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(a))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.Catalog.GetAccount(r.Context(), ledger.AccountID(id))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(a))
}

// UpdateAccount renames an account or changes its kind.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	upd := ledger.AccountUpdate{Name: req.Name}
	if req.Kind != nil {
		k := ledger.AccountKind(*req.Kind)
		upd.Kind = &k
	}
	a, err := h.Catalog.UpdateAccount(r.Context(), ledger.AccountID(id), upd)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to update account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(a))
}

func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "account", func(ctx context.Context, id int64) error {
		return h.Catalog.DeactivateAccount(ctx, ledger.AccountID(id))
	})
}

func (h *Handler) ReactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "account", func(ctx context.Context, id int64) error {
		return h.Catalog.ReactivateAccount(ctx, ledger.AccountID(id))
	})
}

// =============================================================================
// LOCATION HANDLERS
// =============================================================================

func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Catalog.Locations(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list locations", err)
		return
	}
	dtos := make([]LocationDTO, len(locations))
	for i, l := range locations {
		dtos[i] = toLocationDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if !h.decode(w, r, &req) {
		return
	}
	l, err := h.Catalog.CreateLocation(r.Context(), req.Name)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create location", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLocationDTO(l))
}

func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := h.Catalog.GetLocation(r.Context(), ledger.LocationID(id))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get location", err)
		return
	}
	writeJSON(w, http.StatusOK, toLocationDTO(l))
}

// DeactivateLocation refuses while the location has active categories,
// unless ?cascade=true.
func (h *Handler) DeactivateLocation(w http.ResponseWriter, r *http.Request) {
	cascade := queryBool(r, "cascade")
	h.setStatus(w, r, "location", func(ctx context.Context, id int64) error {
		return h.Catalog.DeactivateLocation(ctx, ledger.LocationID(id), cascade)
	})
}

func (h *Handler) ReactivateLocation(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "location", func(ctx context.Context, id int64) error {
		return h.Catalog.ReactivateLocation(ctx, ledger.LocationID(id))
	})
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories lists categories, optionally of one location (?location_id=).
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	locationID, ok := queryID(w, r, "location_id")
	if !ok {
		return
	}
	cats, err := h.Catalog.Categories(r.Context(), ledger.LocationID(locationID), queryBool(r, "include_inactive"))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list categories", err)
		return
	}
	dtos := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.Catalog.CreateCategory(r.Context(), req.Name, ledger.LocationID(req.LocationID), ledger.CategoryKind(req.Kind))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(c))
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.Catalog.GetCategory(r.Context(), ledger.CategoryID(id))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get category", err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(c))
}

func (h *Handler) DeactivateCategory(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "category", func(ctx context.Context, id int64) error {
		return h.Catalog.DeactivateCategory(ctx, ledger.CategoryID(id))
	})
}

func (h *Handler) ReactivateCategory(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, "category", func(ctx context.Context, id int64) error {
		return h.Catalog.ReactivateCategory(ctx, ledger.CategoryID(id))
	})
}

// Seed loads the default catalog into an empty store.
func (h *Handler) Seed(w http.ResponseWriter, r *http.Request) {
	res, err := ledger.SeedDefaults(r.Context(), h.Catalog)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to seed catalog", err)
		return
	}
	h.Logger.Info("catalog seeded",
		zap.String("actor", actorFrom(r.Context())),
		zap.Bool("skipped", res.Skipped))
	writeJSON(w, http.StatusOK, SeedDTO{
		Accounts:   res.Accounts,
		Locations:  res.Locations,
		Categories: res.Categories,
		Skipped:    res.Skipped,
	})
}

// =============================================================================
// MOVEMENT HANDLERS
// =============================================================================

// ListMovements searches movements, newest first.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	accountID, ok := queryID(w, r, "account_id")
	if !ok {
		return
	}
	locationID, ok := queryID(w, r, "location_id")
	if !ok {
		return
	}
	period, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}

	views, err := h.Service.ListMovements(r.Context(), ledger.MovementFilter{
		AccountID:  ledger.AccountID(accountID),
		LocationID: ledger.LocationID(locationID),
		Period:     period,
		Text:       r.URL.Query().Get("q"),
		Limit:      limit,
	})
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list movements", err)
		return
	}
	dtos := make([]MovementDTO, len(views))
	for i, v := range views {
		dtos[i] = toMovementDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateMovement records one movement.
func (h *Handler) CreateMovement(w http.ResponseWriter, r *http.Request) {
	var req MovementRequest
	if !h.decode(w, r, &req) {
		return
	}
	id, err := h.Service.Create(r.Context(), req.toDraft(), actorFrom(r.Context()))
	if err != nil {
		h.writeLedgerError(w, r, "Movement rejected", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatedDTO{ID: int64(id)})
}

// CommitBatch commits grid rows one by one. Rejected rows come back in
// "failed" with a 200; only a store failure turns the response into an error.
func (h *Handler) CommitBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	// Rows that fail request validation never reach the coordinator.
	// rowOf maps a draft index back to its 1-based request row.
	var (
		drafts   []ledger.Draft
		rowOf    []int
		rejected []ledger.RowFailure
	)
	for i, row := range req.Rows {
		if err := h.validate.Struct(row); err != nil {
			rejected = append(rejected, ledger.RowFailure{Row: i + 1, Fields: requestFieldErrors(err)})
			continue
		}
		drafts = append(drafts, row.toDraft())
		rowOf = append(rowOf, i+1)
	}

	res, err := h.Batch.Commit(r.Context(), drafts, actorFrom(r.Context()))
	if err != nil {
		h.writeLedgerError(w, r, "Batch aborted", err)
		return
	}
	for i := range res.Failed {
		res.Failed[i].Row = rowOf[res.Failed[i].Row-1]
	}
	res.Failed = append(res.Failed, rejected...)
	slices.SortFunc(res.Failed, func(a, b ledger.RowFailure) int { return cmp.Compare(a.Row, b.Row) })

	dto := BatchResultDTO{
		Committed: make([]int64, len(res.Committed)),
		Failed:    make([]RowFailureDTO, len(res.Failed)),
		Skipped:   res.Skipped,
	}
	for i, id := range res.Committed {
		dto.Committed[i] = int64(id)
	}
	for i, f := range res.Failed {
		dto.Failed[i] = RowFailureDTO{Row: f.Row, Fields: f.Fields}
	}
	writeJSON(w, http.StatusOK, dto)
}

// CountMovements counts movements dated on ?date= (today by default).
func (h *Handler) CountMovements(w http.ResponseWriter, r *http.Request) {
	day := ledger.DateOf(h.opts.Now())
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := ledger.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		day = d
	}
	n, err := h.Service.CountMovementsOn(r.Context(), day)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to count movements", err)
		return
	}
	writeJSON(w, http.StatusOK, CountDTO{Date: day.String(), Count: n})
}

func (h *Handler) GetMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.Service.Get(r.Context(), ledger.MovementID(id))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get movement", err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTO(v))
}

// UpdateMovement applies a partial edit and returns the updated movement.
func (h *Handler) UpdateMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req PatchMovementRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	if _, err := h.Service.Update(ctx, ledger.MovementID(id), req.toPatch(), actorFrom(ctx)); err != nil {
		h.writeLedgerError(w, r, "Movement update rejected", err)
		return
	}
	v, err := h.Service.Get(ctx, ledger.MovementID(id))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to reload movement", err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTO(v))
}

func (h *Handler) DeleteMovement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), ledger.MovementID(id), actorFrom(r.Context())); err != nil {
		h.writeLedgerError(w, r, "Failed to delete movement", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAuditTrail returns a movement's audit entries, oldest first. It works
// for deleted movements too.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.Service.AuditTrail(r.Context(), ledger.MovementID(id))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to read audit trail", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// FAVORITES
// =============================================================================

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	if limit <= 0 {
		limit = h.opts.FavoritesLimit
	}
	favs, err := h.Service.ListFavorites(r.Context(), limit)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to list favorites", err)
		return
	}
	writeJSON(w, http.StatusOK, FavoritesDTO{Descriptions: favs})
}

func (h *Handler) RebuildFavorites(w http.ResponseWriter, r *http.Request) {
	n, err := h.Service.RebuildFavorites(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, "Failed to rebuild favorites", err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildDTO{Count: n})
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// ListBalances returns the current balance of every active account.
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Balances.AllAccountBalances(r.Context())
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute balances", err)
		return
	}
	dtos := make([]BalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toBalanceDTO(b.Account, b.Balance)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	a, err := h.Catalog.GetAccount(ctx, ledger.AccountID(id))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to get account", err)
		return
	}
	bal, err := h.Balances.CurrentBalance(ctx, a.ID)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(a, bal))
}

// GetHistory returns the running balance over ?from&to, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	period, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	rows, err := h.Balances.History(r.Context(), ledger.AccountID(id), period)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute history", err)
		return
	}
	dtos := make([]HistoryRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = HistoryRowDTO{
			MovementDTO:    toMovementDTO(row.MovementView),
			RunningBalance: ledger.FormatAmount(row.RunningBalance),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	period, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	s, err := h.Balances.PeriodSummary(r.Context(), ledger.AccountID(id), period)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(ledger.AccountID(id), s))
}

// GetMonthlySummary totals one calendar month (?year&month, current month by default).
func (h *Handler) GetMonthlySummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	today := h.opts.Now()
	year, ok := queryInt(w, r, "year")
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month")
	if !ok {
		return
	}
	if year == 0 {
		year = today.Year()
	}
	if month == 0 {
		month = int(today.Month())
	}
	s, err := h.Balances.MonthlySummary(r.Context(), ledger.AccountID(id), year, time.Month(month))
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(ledger.AccountID(id), s))
}

func (h *Handler) GetLocationSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	period, ok := queryPeriod(w, r)
	if !ok {
		return
	}
	totals, err := h.Balances.LocationSummary(r.Context(), ledger.AccountID(id), period)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute summary", err)
		return
	}
	dtos := make([]LocationTotalDTO, len(totals))
	for i, t := range totals {
		dtos[i] = LocationTotalDTO{
			LocationID:   int64(t.LocationID),
			LocationName: t.LocationName,
			TotalIncome:  ledger.FormatAmount(t.TotalIncome),
			TotalExpense: ledger.FormatAmount(t.TotalExpense),
			Balance:      ledger.FormatAmount(t.Balance),
			Count:        t.Count,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

func (h *Handler) GetProjection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	horizon, ok := queryInt(w, r, "horizon")
	if !ok {
		return
	}
	if horizon <= 0 {
		horizon = h.opts.ProjectionHorizon
	}
	p, err := h.Analytics.Projection(r.Context(), ledger.AccountID(id), horizon)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to compute projection", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectionDTO{
		AccountID:        int64(p.AccountID),
		CurrentBalance:   ledger.FormatAmount(p.CurrentBalance),
		DailyAverage:     ledger.FormatAmount(p.DailyAverage),
		HorizonDays:      p.HorizonDays,
		ProjectedBalance: ledger.FormatAmount(p.ProjectedBalance),
		Trend:            string(p.Trend),
		WindowCount:      p.WindowCount,
	})
}

func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	window, ok := queryInt(w, r, "window")
	if !ok {
		return
	}
	if window <= 0 {
		window = h.opts.AnomalyWindowDays
	}
	threshold := h.opts.AnomalyThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		t, err := decimal.NewFromString(raw)
		if err != nil || !t.IsPositive() {
			writeError(w, http.StatusBadRequest, "threshold must be a positive number", err)
			return
		}
		threshold = t
	}

	ctx := r.Context()
	flagged, err := h.Analytics.DetectAnomalies(ctx, ledger.AccountID(id), window, threshold)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to detect anomalies", err)
		return
	}
	views, err := h.Service.Views(ctx, flagged)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to load names", err)
		return
	}
	dtos := make([]MovementDTO, len(views))
	for i, v := range views {
		dtos[i] = toMovementDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Reconcile compares the system balance with a statement balance.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ReconcileRequest
	if !h.decode(w, r, &req) {
		return
	}
	expected, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(string(req.ExpectedBalance)), ",", ""))
	if err != nil {
		writeFieldErrors(w, []ledger.FieldError{{
			Field: "expected_balance", Code: ledger.CodeInvalidNumber, Message: "must be a number",
		}})
		return
	}
	rec, err := h.Analytics.Reconcile(r.Context(), ledger.AccountID(id), expected)
	if err != nil {
		h.writeLedgerError(w, r, "Failed to reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconciliationDTO{
		AccountID:       int64(rec.AccountID),
		SystemBalance:   ledger.FormatAmount(rec.SystemBalance),
		ExpectedBalance: rec.ExpectedBalance.String(),
		Difference:      rec.Difference.String(),
		Matches:         rec.Matches,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads and validates a JSON body, writing the error response itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeFieldErrors(w, requestFieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, kind string, fn func(context.Context, int64) error) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := fn(r.Context(), id); err != nil {
		h.writeLedgerError(w, r, "Failed to change "+kind+" status", err)
		return
	}
	h.Logger.Info("catalog status changed",
		zap.String("kind", kind),
		zap.Int64("id", id),
		zap.String("path", r.URL.Path),
		zap.String("actor", actorFrom(r.Context())))
	w.WriteHeader(http.StatusNoContent)
}

// writeLedgerError maps the ledger error taxonomy onto HTTP statuses.
func (h *Handler) writeLedgerError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFieldErrors(w, verr.Fields)
	case errors.Is(err, ledger.ErrInvalidPeriod), errors.Is(err, ledger.ErrNothingToUpdate):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrIntegrity):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsStorageError(err):
		h.Logger.Error(message, zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, message, nil)
	default:
		h.Logger.Error(message, zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}

func writeFieldErrors(w http.ResponseWriter, fields []ledger.FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "Validation failed", Fields: fields})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid id", err)
		return 0, false
	}
	return id, true
}

// queryID reads an optional positive id; absent means 0.
func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return n, true
}

func queryBool(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// queryPeriod reads ?from&to. Either bound may be omitted.
func queryPeriod(w http.ResponseWriter, r *http.Request) (ledger.Period, bool) {
	var p ledger.Period
	var fields []ledger.FieldError
	for _, b := range []struct {
		name string
		dst  *ledger.Date
	}{{"from", &p.From}, {"to", &p.To}} {
		raw := r.URL.Query().Get(b.name)
		if raw == "" {
			continue
		}
		d, err := ledger.ParseDate(raw)
		if err != nil {
			fields = append(fields, ledger.FieldError{Field: b.name, Code: ledger.CodeInvalidDate, Message: err.Error()})
			continue
		}
		*b.dst = d
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return ledger.Period{}, false
	}
	return p, true
}
