/*
analytics.go - Projection, anomaly detection, reconciliation

PURPOSE:
  Read-only heuristics over an account's history. None of them modify a
  movement or an amount.

PROJECTION:
  Linear extrapolation, not a forecast:
    daily_average = balance of the last 30 days / 30
    projected     = current_balance + daily_average * horizon
  With no movement in the window the average is zero and the trend "stable".

ANOMALIES:
  Over the trailing window (default 90 days) each movement's size is
  Income + Expense. With at least 5 movements, those larger than
  mean + threshold * population standard deviation are returned.

RECONCILIATION:
  difference = system_balance - expected; matches when |difference| < 0.01.
  The tolerance absorbs rounding on bank statements, nothing more.
*/
package ledger

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ProjectionWindowDays is the look-back used to compute the daily average.
	ProjectionWindowDays = 30
	// DefaultProjectionHorizon is how far ahead Projection extrapolates by default.
	DefaultProjectionHorizon = 30
	// DefaultAnomalyWindowDays is the look-back for DetectAnomalies.
	DefaultAnomalyWindowDays = 90
	// MinAnomalySample is the smallest window DetectAnomalies will judge.
	MinAnomalySample = 5
)

var (
	// DefaultAnomalyThreshold is the number of standard deviations above the mean.
	DefaultAnomalyThreshold = decimal.NewFromInt(2)
	// ReconcileTolerance is one minor currency unit.
	ReconcileTolerance = decimal.New(1, -MinorUnits)
)

type Trend string

const (
	TrendPositive Trend = "positive"
	TrendNegative Trend = "negative"
	TrendStable   Trend = "stable"
)

// Analytics runs heuristics on top of a BalanceEngine.
type Analytics struct {
	Balances *BalanceEngine
	Now      func() time.Time
}

func NewAnalytics(balances *BalanceEngine, now func() time.Time) *Analytics {
	if now == nil {
		now = time.Now
	}
	return &Analytics{Balances: balances, Now: now}
}

func (a *Analytics) today() Date { return DateOf(a.Now()) }

// =============================================================================
// PROJECTION
// =============================================================================

type Projection struct {
	AccountID        AccountID
	CurrentBalance   decimal.Decimal
	DailyAverage     decimal.Decimal
	HorizonDays      int
	ProjectedBalance decimal.Decimal
	Trend            Trend
	WindowCount      int
}

// Projection extrapolates the account balance horizonDays ahead. A
// non-positive horizon means DefaultProjectionHorizon.
func (a *Analytics) Projection(ctx context.Context, account AccountID, horizonDays int) (Projection, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultProjectionHorizon
	}
	current, err := a.Balances.CurrentBalance(ctx, account)
	if err != nil {
		return Projection{}, err
	}
	window, err := a.Balances.PeriodSummary(ctx, account, TrailingDays(a.today(), ProjectionWindowDays))
	if err != nil {
		return Projection{}, err
	}

	p := Projection{
		AccountID:        account,
		CurrentBalance:   current,
		DailyAverage:     decimal.Zero,
		HorizonDays:      horizonDays,
		ProjectedBalance: current,
		Trend:            TrendStable,
		WindowCount:      window.Count,
	}
	if window.Count == 0 {
		return p, nil
	}

	p.DailyAverage = window.Balance.Div(decimal.NewFromInt(ProjectionWindowDays))
	p.ProjectedBalance = RoundMoney(current.Add(p.DailyAverage.Mul(decimal.NewFromInt(int64(horizonDays)))))
	switch p.DailyAverage.Sign() {
	case 1:
		p.Trend = TrendPositive
	case -1:
		p.Trend = TrendNegative
	}
	return p, nil
}

// =============================================================================
// ANOMALIES
// =============================================================================

// DetectAnomalies returns movements of the trailing window whose size is
// unusually large. Non-positive arguments fall back to the defaults.
func (a *Analytics) DetectAnomalies(ctx context.Context, account AccountID, windowDays int, threshold decimal.Decimal) ([]Movement, error) {
	if windowDays <= 0 {
		windowDays = DefaultAnomalyWindowDays
	}
	if !threshold.IsPositive() {
		threshold = DefaultAnomalyThreshold
	}

	ms, err := a.Balances.accountMovements(ctx, account, TrailingDays(a.today(), windowDays))
	if err != nil {
		return nil, err
	}
	if len(ms) < MinAnomalySample {
		return []Movement{}, nil
	}

	n := decimal.NewFromInt(int64(len(ms)))
	sum := decimal.Zero
	for _, m := range ms {
		sum = sum.Add(m.Magnitude())
	}
	mean := sum.Div(n)

	variance := decimal.Zero
	for _, m := range ms {
		d := m.Magnitude().Sub(mean)
		variance = variance.Add(d.Mul(d))
	}
	variance = variance.Div(n)

	limit := mean.Add(threshold.Mul(sqrtDecimal(variance)))
	flagged := []Movement{}
	for _, m := range ms {
		if m.Magnitude().GreaterThan(limit) {
			flagged = append(flagged, m)
		}
	}
	return flagged, nil
}

// sqrtDecimal refines a float64 estimate with Newton steps.
func sqrtDecimal(x decimal.Decimal) decimal.Decimal {
	if !x.IsPositive() {
		return decimal.Zero
	}
	f, _ := x.Float64()
	g := decimal.NewFromFloat(math.Sqrt(f))
	if !g.IsPositive() {
		g = x
	}
	two := decimal.NewFromInt(2)
	for i := 0; i < 4; i++ {
		g = g.Add(x.DivRound(g, 16)).DivRound(two, 16)
	}
	return g
}

// =============================================================================
// RECONCILIATION
// =============================================================================

type Reconciliation struct {
	AccountID       AccountID
	SystemBalance   decimal.Decimal
	ExpectedBalance decimal.Decimal
	Difference      decimal.Decimal
	Matches         bool
}

// Reconcile compares the computed balance with an externally reported one.
// The expected value is compared as given, without rounding.
func (a *Analytics) Reconcile(ctx context.Context, account AccountID, expected decimal.Decimal) (Reconciliation, error) {
	system, err := a.Balances.CurrentBalance(ctx, account)
	if err != nil {
		return Reconciliation{}, err
	}
	diff := system.Sub(expected)
	return Reconciliation{
		AccountID:       account,
		SystemBalance:   system,
		ExpectedBalance: expected,
		Difference:      diff,
		Matches:         diff.Abs().LessThan(ReconcileTolerance),
	}, nil
}
