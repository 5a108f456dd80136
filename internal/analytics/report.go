// Package analytics derives read-only spending views from a ledger snapshot.
//
// Every view is a pure function of the record slice and the period bounds:
// the same snapshot and period always produce the same, order-stable output.
// Records outside the period are ignored, so callers may hand over a snapshot
// wider than the period (e.g. one covering the previous period as well).
package analytics

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sort"

	"tally/internal/core"
)

// Period is an inclusive range of calendar days.
type Period struct {
	Start core.Date
	End   core.Date
}

// NewPeriod validates the bounds. End before start or zero bounds fail with
// core.ErrInvalidArgument.
func NewPeriod(start, end core.Date) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, fmt.Errorf("%w: period bounds must be set", core.ErrInvalidArgument)
	}
	if end.Before(start.Time) {
		return Period{}, fmt.Errorf("%w: period end %s before start %s", core.ErrInvalidArgument, end, start)
	}
	return Period{Start: start, End: end}, nil
}

// MonthPeriod returns the period covering one calendar month.
func MonthPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d out of range", core.ErrInvalidArgument, month)
	}
	start := core.NewDate(year, month, 1)
	end := core.Date{Time: start.AddDate(0, 1, -1)}
	return Period{Start: start, End: end}, nil
}

// Days returns the number of calendar days covered.
func (p Period) Days() int {
	return int(p.End.Sub(p.Start.Time).Hours()/24) + 1
}

// Previous returns the immediately preceding period of equal length.
func (p Period) Previous() Period {
	days := p.Days()
	return Period{
		Start: core.Date{Time: p.Start.AddDate(0, 0, -days)},
		End:   core.Date{Time: p.Start.AddDate(0, 0, -1)},
	}
}

// Contains reports whether d falls within the period.
func (p Period) Contains(d core.Date) bool {
	return !d.Before(p.Start.Time) && !d.After(p.End.Time)
}

// DailyPoint is one day of the spending series.
type DailyPoint struct {
	Day             core.Date
	Cents           int64
	CumulativeCents int64
}

// DailySeries yields one point per calendar day of the period in order,
// including zero-spend days. The cumulative total is monotonically
// non-decreasing. The sequence is finite and restartable: ranging over it
// again replays the same points.
func DailySeries(records []core.ExpenseRecord, p Period) iter.Seq[DailyPoint] {
	perDay := make(map[string]int64)
	for _, r := range records {
		if p.Contains(r.Date) {
			perDay[r.Date.String()] += r.Amount.Cents
		}
	}
	return func(yield func(DailyPoint) bool) {
		var cumulative int64
		for d := p.Start; !d.After(p.End.Time); d = d.Next() {
			cents := perDay[d.String()]
			cumulative += cents
			if !yield(DailyPoint{Day: d, Cents: cents, CumulativeCents: cumulative}) {
				return
			}
		}
	}
}

// GroupTotal is one row of a category or merchant aggregation.
type GroupTotal struct {
	Name     string
	Cents    int64
	SharePct float64 // share of the period total, 0 when the total is 0
}

// CategoryBreakdown sums amounts per category, sorted descending by amount
// with ties broken by name ascending. Shares are percentages of the period
// total and sum to 100 (within float rounding) on a non-empty period.
func CategoryBreakdown(records []core.ExpenseRecord, p Period) []GroupTotal {
	return groupTotals(records, p, func(r core.ExpenseRecord) string { return r.Category }, 0)
}

// DefaultTopMerchants bounds merchant rankings when the caller passes no limit.
const DefaultTopMerchants = 10

// MerchantRanking sums amounts per merchant and returns the top n (default
// DefaultTopMerchants when n <= 0), same ordering rule as CategoryBreakdown.
func MerchantRanking(records []core.ExpenseRecord, p Period, n int) []GroupTotal {
	if n <= 0 {
		n = DefaultTopMerchants
	}
	return groupTotals(records, p, func(r core.ExpenseRecord) string { return r.Merchant }, n)
}

func groupTotals(records []core.ExpenseRecord, p Period, key func(core.ExpenseRecord) string, limit int) []GroupTotal {
	sums := make(map[string]int64)
	var total int64
	for _, r := range records {
		if p.Contains(r.Date) {
			sums[key(r)] += r.Amount.Cents
			total += r.Amount.Cents
		}
	}
	out := make([]GroupTotal, 0, len(sums))
	for name, cents := range sums {
		share := 0.0
		if total > 0 {
			share = float64(cents) / float64(total) * 100
		}
		out = append(out, GroupTotal{Name: name, Cents: cents, SharePct: share})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cents != out[j].Cents {
			return out[i].Cents > out[j].Cents
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Delta is a period-over-period percentage change. Valid is false when the
// previous value is 0, in which case the change is undefined rather than
// infinite; it marshals to JSON null so clients must handle it explicitly.
type Delta struct {
	Valid bool
	Pct   float64
}

// MarshalJSON emits the percentage or null when undefined.
func (d Delta) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	if math.IsInf(d.Pct, 0) || math.IsNaN(d.Pct) {
		return nil, errors.New("non-finite delta")
	}
	return fmt.Appendf(nil, "%.2f", d.Pct), nil
}

func deltaOf(current, previous float64) Delta {
	if previous == 0 {
		return Delta{}
	}
	return Delta{Valid: true, Pct: (current - previous) / previous * 100}
}

// Summary aggregates one period with deltas versus the preceding period of
// equal length.
type Summary struct {
	TotalCents      int64
	Count           int
	AverageCents    int64
	Categories      int
	TotalDelta      Delta
	CountDelta      Delta
	AverageDelta    Delta
	CategoriesDelta Delta
}

// Summarize computes the summary statistics for p, comparing against
// p.Previous() over the same snapshot. AverageCents is 0 when the period has
// no records.
func Summarize(records []core.ExpenseRecord, p Period) Summary {
	curTotal, curCount, curCats := periodTotals(records, p)
	prevTotal, prevCount, prevCats := periodTotals(records, p.Previous())

	curAvg := average(curTotal, curCount)
	prevAvg := average(prevTotal, prevCount)

	return Summary{
		TotalCents:      curTotal,
		Count:           curCount,
		AverageCents:    curAvg,
		Categories:      curCats,
		TotalDelta:      deltaOf(float64(curTotal), float64(prevTotal)),
		CountDelta:      deltaOf(float64(curCount), float64(prevCount)),
		AverageDelta:    deltaOf(float64(curAvg), float64(prevAvg)),
		CategoriesDelta: deltaOf(float64(curCats), float64(prevCats)),
	}
}

func periodTotals(records []core.ExpenseRecord, p Period) (total int64, count, categories int) {
	seen := make(map[string]bool)
	for _, r := range records {
		if !p.Contains(r.Date) {
			continue
		}
		total += r.Amount.Cents
		count++
		seen[r.Category] = true
	}
	return total, count, len(seen)
}

func average(total int64, count int) int64 {
	if count == 0 {
		return 0
	}
	// Half-up rounding keeps the average stable for display.
	return (total + int64(count)/2) / int64(count)
}

// Report bundles the four analytics views for one period.
type Report struct {
	Period       Period
	Daily        []DailyPoint
	Categories   []GroupTotal
	TopMerchants []GroupTotal
	Summary      Summary
}

// BuildReport materializes all views from one snapshot. The snapshot should
// cover p.Previous() through p so the summary deltas see both periods.
func BuildReport(records []core.ExpenseRecord, p Period, topMerchants int) Report {
	daily := make([]DailyPoint, 0, p.Days())
	for pt := range DailySeries(records, p) {
		daily = append(daily, pt)
	}
	return Report{
		Period:       p,
		Daily:        daily,
		Categories:   CategoryBreakdown(records, p),
		TopMerchants: MerchantRanking(records, p, topMerchants),
		Summary:      Summarize(records, p),
	}
}
