package insights

import (
	"testing"
	"time"

	"github.com/healthtrack/healthtrack/internal/domain/records"
)

func f(v float64) *float64 { return &v }

func TestHealthScore_APIPolicy(t *testing.T) {
	tests := []struct {
		name      string
		recs      []records.HealthRecord
		want      int
		available bool
	}{
		{"no data", nil, 0, false},
		{"normal vitals", []records.HealthRecord{
			{HeartRate: f(72), SystolicBp: f(115), DiastolicBp: f(75)},
		}, 50 + 20 + 20 + 2, true},
		{"borderline vitals", []records.HealthRecord{
			{HeartRate: f(105), SystolicBp: f(130), DiastolicBp: f(85)},
		}, 50 + 10 + 10 + 2, true},
		{"poor vitals", []records.HealthRecord{
			{HeartRate: f(130), SystolicBp: f(160), DiastolicBp: f(100)},
		}, 50 - 10 - 10 + 2, true},
		{"records without vitals", []records.HealthRecord{{Type: "weight", Value: "70"}}, 52, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HealthScore(APIPolicy, tt.recs)
			if got.Available != tt.available || got.Value != tt.want {
				t.Errorf("expected %d (available=%v), got %+v", tt.want, tt.available, got)
			}
		})
	}
}

func TestHealthScore_LocalPolicy(t *testing.T) {
	recsOf := func(n int) []records.HealthRecord { return make([]records.HealthRecord, n) }
	tests := []struct {
		n    int
		want int
	}{
		{0, 70}, {1, 72}, {5, 80}, {9, 88}, {10, 100}, {25, 100},
	}
	for _, tt := range tests {
		got := HealthScore(LocalPolicy, recsOf(tt.n))
		if !got.Available || got.Value != tt.want {
			t.Errorf("n=%d: expected %d, got %+v", tt.n, tt.want, got)
		}
	}
}

func TestHealthScore_MonotonicInCount(t *testing.T) {
	for _, p := range []Policy{APIPolicy, LocalPolicy} {
		prev := -1
		var recs []records.HealthRecord
		for n := 0; n <= 30; n++ {
			s := HealthScore(p, recs)
			if s.Available {
				if s.Value < prev {
					t.Errorf("%s: score dropped from %d to %d at n=%d", p.Name, prev, s.Value, n)
				}
				if s.Value < 0 || s.Value > 100 {
					t.Errorf("%s: score %d out of range", p.Name, s.Value)
				}
				prev = s.Value
			}
			recs = append(recs, records.HealthRecord{Type: "weight", Value: "70"})
		}
	}
}

func TestScoreString(t *testing.T) {
	if (Score{}).String() != "N/A" {
		t.Error("expected N/A for unavailable score")
	}
	if (Score{Value: 84, Available: true}).String() != "84" {
		t.Error("expected numeric string")
	}
}

func TestPolicyByName(t *testing.T) {
	if p, err := PolicyByName("LOCAL"); err != nil || p.Name != "local" {
		t.Errorf("expected local policy, got %v %v", p.Name, err)
	}
	if p, err := PolicyByName(""); err != nil || p.Name != "api" {
		t.Errorf("expected api default, got %v %v", p.Name, err)
	}
	if _, err := PolicyByName("other"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestGreeting(t *testing.T) {
	day := func(h int) time.Time { return time.Date(2024, 1, 1, h, 0, 0, 0, time.Local) }
	tests := []struct {
		policy GreetingPolicy
		hour   int
		want   string
	}{
		{APIGreeting, 3, "Good Night"},
		{APIGreeting, 5, "Good Morning"},
		{APIGreeting, 12, "Good Afternoon"},
		{APIGreeting, 17, "Good Evening"},
		{APIGreeting, 21, "Good Night"},
		{LocalGreeting, 3, "Good Morning"},
		{LocalGreeting, 12, "Good Afternoon"},
		{LocalGreeting, 23, "Good Evening"},
	}
	for _, tt := range tests {
		if got := Greeting(tt.policy, day(tt.hour)); got != tt.want {
			t.Errorf("hour %d: expected %q, got %q", tt.hour, tt.want, got)
		}
	}
}

func TestInitials(t *testing.T) {
	if got := Initials("jane  van doe"); got != "JVD" {
		t.Errorf("expected JVD, got %q", got)
	}
	if got := Initials(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
