// Package insights computes the dashboard health score and greeting. The two
// dashboard variants differ only in their policy tables.
package insights

import (
	"fmt"
	"strings"

	"github.com/healthtrack/healthtrack/internal/domain/records"
)

// Band awards Points when a value falls within [Min, Max].
type Band struct {
	Min, Max float64
	Points   int
}

// PressureBand awards Points when systolic < SysBelow and diastolic < DiaBelow.
type PressureBand struct {
	SysBelow, DiaBelow float64
	Points             int
}

// Policy is a health score rule table.
type Policy struct {
	Name string
	Base int

	// HeartRate bands are tried in order. HeartRateOther applies when none match.
	HeartRate      []Band
	HeartRateOther int

	Pressure      []PressureBand
	PressureOther int

	// VolumePerRecord points per record, capped at VolumeCap.
	VolumePerRecord int
	VolumeCap       int
	// BonusAt adds BonusPoints once the record count reaches it. Zero disables.
	BonusAt     int
	BonusPoints int

	// RequireData reports the score as unavailable when there are no records
	// and no vitals.
	RequireData bool
}

// APIPolicy scores vitals averaged from backend records.
var APIPolicy = Policy{
	Name: "api",
	Base: 50,
	HeartRate: []Band{
		{Min: 60, Max: 100, Points: 20},
		{Min: 50, Max: 110, Points: 10},
	},
	HeartRateOther: -10,
	Pressure: []PressureBand{
		{SysBelow: 120, DiaBelow: 80, Points: 20},
		{SysBelow: 140, DiaBelow: 90, Points: 10},
	},
	PressureOther:   -10,
	VolumePerRecord: 2,
	VolumeCap:       20,
	RequireData:     true,
}

// LocalPolicy rewards record volume only.
var LocalPolicy = Policy{
	Name:            "local",
	Base:            70,
	VolumePerRecord: 2,
	VolumeCap:       20,
	BonusAt:         10,
	BonusPoints:     10,
}

// PolicyByName returns the policy for "api" or "local".
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", APIPolicy.Name:
		return APIPolicy, nil
	case LocalPolicy.Name:
		return LocalPolicy, nil
	}
	return Policy{}, fmt.Errorf("unknown score policy %q", name)
}

// Score is a health score in [0, 100]. Available is false when the policy
// had nothing to score.
type Score struct {
	Value     int  `json:"value"`
	Available bool `json:"available"`
}

func (s Score) String() string {
	if !s.Available {
		return "N/A"
	}
	return fmt.Sprintf("%d", s.Value)
}

// HealthScore applies p to recs.
func HealthScore(p Policy, recs []records.HealthRecord) Score {
	return p.Evaluate(records.ComputeMetrics(recs), len(recs))
}

// Evaluate scores precomputed metrics and a record count.
func (p Policy) Evaluate(m records.Metrics, count int) Score {
	if p.RequireData && m.AvgHeartRate == nil && !m.HasBloodPressure() && count == 0 {
		return Score{}
	}

	score := p.Base

	if len(p.HeartRate) > 0 && m.AvgHeartRate != nil && *m.AvgHeartRate != 0 {
		score += bandPoints(p.HeartRate, p.HeartRateOther, *m.AvgHeartRate)
	}
	if len(p.Pressure) > 0 && m.HasBloodPressure() {
		score += pressurePoints(p.Pressure, p.PressureOther, *m.AvgSystolic, *m.AvgDiastolic)
	}

	if count > 0 {
		score += min(count*p.VolumePerRecord, p.VolumeCap)
	}
	if p.BonusAt > 0 && count >= p.BonusAt {
		score += p.BonusPoints
	}

	return Score{Value: clamp(score, 0, 100), Available: true}
}

func bandPoints(bands []Band, other int, v float64) int {
	for _, b := range bands {
		if v >= b.Min && v <= b.Max {
			return b.Points
		}
	}
	return other
}

func pressurePoints(bands []PressureBand, other int, sys, dia float64) int {
	for _, b := range bands {
		if sys < b.SysBelow && dia < b.DiaBelow {
			return b.Points
		}
	}
	return other
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
