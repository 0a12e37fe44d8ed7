package length_test

import (
	"errors"
	"testing"

	"telesumm/internal/length"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  length.Tier
	}{
		{"small", length.Small},
		{"Medium", length.Medium},
		{"  LARGE ", length.Large},
	}

	for _, test := range tests {
		got, err := length.Parse(test.input)
		if err != nil {
			t.Fatalf("parse %q: %v", test.input, err)
		}
		if got != test.want {
			t.Errorf("parse %q = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	if _, err := length.Parse("huge"); !errors.Is(err, length.ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
}

func TestResolveKnownTiers(t *testing.T) {
	p := length.NewPolicy(0)

	tests := []struct {
		tier     length.Tier
		min, max int
	}{
		{length.Small, 20, 60},
		{length.Medium, 40, 120},
		{length.Large, 80, 200},
	}

	for _, test := range tests {
		res := p.Resolve(test.tier)
		if res.FellBack {
			t.Errorf("%s: unexpected fallback", test.tier)
		}
		if res.Pass.Min != test.min || res.Pass.Max != test.max {
			t.Errorf("%s: pass bounds = %+v", test.tier, res.Pass)
		}
		if res.Aggregation.Min != test.min || res.Aggregation.Max != test.max+length.AggregationDelta {
			t.Errorf("%s: aggregation bounds = %+v", test.tier, res.Aggregation)
		}
	}
}

func TestResolveUnknownFallsBackToMedium(t *testing.T) {
	res := length.NewPolicy(0).Resolve(length.Tier("gigantic"))

	if !res.FellBack {
		t.Fatalf("expected fallback flag")
	}
	if res.Tier != length.Medium {
		t.Fatalf("expected medium, got %q", res.Tier)
	}
	if res.Requested != "gigantic" {
		t.Fatalf("expected requested tier to be kept, got %q", res.Requested)
	}
	if res.Pass.Min != 40 || res.Pass.Max != 120 {
		t.Fatalf("unexpected bounds: %+v", res.Pass)
	}
}

func TestResolveClampsToCapacity(t *testing.T) {
	res := length.NewPolicy(150).Resolve(length.Large)

	if res.Pass.Max != 150 || res.Pass.Min != 80 {
		t.Fatalf("unexpected pass bounds: %+v", res.Pass)
	}
	if res.Aggregation.Max != 150 {
		t.Fatalf("unexpected aggregation bounds: %+v", res.Aggregation)
	}

	tiny := length.NewPolicy(50).Resolve(length.Large)
	if tiny.Pass.Min >= tiny.Pass.Max {
		t.Fatalf("expected min < max after clamping, got %+v", tiny.Pass)
	}
}

func TestTierTitle(t *testing.T) {
	if got := length.Medium.Title(); got != "Medium" {
		t.Fatalf("unexpected title: %q", got)
	}
}
