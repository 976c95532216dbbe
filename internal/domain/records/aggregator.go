package records

import (
	"context"
	"math"
	"sort"
	"time"
)

// DefaultStatsWindow is the trailing window, in days, used when none is given.
const DefaultStatsWindow = 30

// Filter narrows a record list. Zero values mean "no constraint". Bounds are
// inclusive.
type Filter struct {
	Type  string
	Start *time.Time
	End   *time.Time
}

func (f Filter) hasDateBound() bool { return f.Start != nil || f.End != nil }

// Match reports whether r passes the filter. A record without a date never
// passes a date bound.
func (f Filter) Match(r HealthRecord) bool {
	if t := NormalizeType(f.Type); t != "" && r.Type != t {
		return false
	}
	if !f.hasDateBound() {
		return true
	}
	if !r.HasDate() {
		return false
	}
	if f.Start != nil && r.Date.Before(*f.Start) {
		return false
	}
	if f.End != nil && r.Date.After(*f.End) {
		return false
	}
	return true
}

// Stats summarizes the numeric values of one record type. Pointer fields are
// nil when no value could be read.
type Stats struct {
	Type    string   `json:"type"`
	Count   int      `json:"count"`
	Average *float64 `json:"average"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
	Latest  *float64 `json:"latest"`
}

// NoData reports whether no numeric value was found.
func (s Stats) NoData() bool { return s.Count == 0 }

// Aggregator filters, sorts and summarizes records fetched from a Repository.
type Aggregator struct {
	repo Repository
	now  func() time.Time
}

func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo, now: time.Now}
}

// Repository returns the underlying record source.
func (a *Aggregator) Repository() Repository { return a.repo }

// ListRecords fetches the owner's records and returns those matching f,
// newest first. The fetched slice is never modified.
func (a *Aggregator) ListRecords(ctx context.Context, ownerID string, f Filter) ([]HealthRecord, error) {
	fetched, err := a.repo.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return Apply(fetched, f), nil
}

// StatsForType summarizes one type over the trailing windowDays.
func (a *Aggregator) StatsForType(ctx context.Context, ownerID, recordType string, windowDays int) (Stats, error) {
	if windowDays <= 0 {
		windowDays = DefaultStatsWindow
	}
	end := a.now()
	start := end.AddDate(0, 0, -windowDays)
	recs, err := a.ListRecords(ctx, ownerID, Filter{Type: recordType, Start: &start, End: &end})
	if err != nil {
		return Stats{}, err
	}
	return ComputeStats(NormalizeType(recordType), recs), nil
}

// LatestByType returns the newest record of the given type.
func (a *Aggregator) LatestByType(ctx context.Context, ownerID, recordType string) (*HealthRecord, bool, error) {
	recs, err := a.ListRecords(ctx, ownerID, Filter{Type: recordType})
	if err != nil {
		return nil, false, err
	}
	if len(recs) == 0 {
		return nil, false, nil
	}
	latest := recs[0]
	return &latest, true, nil
}

// Apply copies records, keeps those matching f and sorts them by date
// descending. Ties keep their input order; undated records go last.
func Apply(records []HealthRecord, f Filter) []HealthRecord {
	out := make([]HealthRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst sorts in place by date descending, stable.
func SortNewestFirst(recs []HealthRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.HasDate() {
			return false
		}
		if !b.HasDate() {
			return true
		}
		return a.Date.After(*b.Date)
	})
}

// ComputeStats summarizes records that are already filtered and sorted newest
// first. Latest is the first numeric value.
func ComputeStats(recordType string, recs []HealthRecord) Stats {
	s := Stats{Type: recordType}
	var sum, lo, hi, latest float64
	for _, r := range recs {
		v, ok := r.NumericValue()
		if !ok {
			continue
		}
		if s.Count == 0 {
			lo, hi, latest = v, v, v
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		sum += v
		s.Count++
	}
	if s.Count == 0 {
		return s
	}
	avg := sum / float64(s.Count)
	s.Average, s.Min, s.Max, s.Latest = &avg, &lo, &hi, &latest
	return s
}

// Metrics are the dashboard averages, rounded to whole units.
type Metrics struct {
	AvgHeartRate *float64 `json:"avgHeartRate"`
	AvgSystolic  *float64 `json:"avgSystolic"`
	AvgDiastolic *float64 `json:"avgDiastolic"`
}

// HasBloodPressure reports whether both pressure averages are present.
func (m Metrics) HasBloodPressure() bool {
	return m.AvgSystolic != nil && m.AvgDiastolic != nil && *m.AvgSystolic != 0 && *m.AvgDiastolic != 0
}

// ComputeMetrics averages heart rate and blood pressure across records.
func ComputeMetrics(recs []HealthRecord) Metrics {
	var m Metrics
	var hrSum, sysSum, diaSum float64
	var hrN, bpN int
	for _, r := range recs {
		if hr, ok := r.HeartRateValue(); ok {
			hrSum += hr
			hrN++
		}
		if sys, dia, ok := r.BloodPressure(); ok {
			sysSum += sys
			diaSum += dia
			bpN++
		}
	}
	if hrN > 0 {
		v := roundHalfUp(hrSum / float64(hrN))
		m.AvgHeartRate = &v
	}
	if bpN > 0 {
		sys := roundHalfUp(sysSum / float64(bpN))
		dia := roundHalfUp(diaSum / float64(bpN))
		m.AvgSystolic, m.AvgDiastolic = &sys, &dia
	}
	return m
}

// Point is one charted value.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series returns dated numeric values of recordType, oldest first.
func Series(recs []HealthRecord, recordType string) []Point {
	t := NormalizeType(recordType)
	var pts []Point
	for _, r := range recs {
		if r.Type != t || !r.HasDate() {
			continue
		}
		if v, ok := r.NumericValue(); ok {
			pts = append(pts, Point{Date: *r.Date, Value: v})
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })
	return pts
}

// TypeCounts counts records per type.
func TypeCounts(recs []HealthRecord) map[string]int {
	counts := make(map[string]int)
	for _, r := range recs {
		counts[r.Type]++
	}
	return counts
}

// roundHalfUp matches the rounding used by the dashboard (x.5 rounds up).
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
