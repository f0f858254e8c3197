package plan

import (
	"testing"
	"time"
)

func TestCanCreateIsMonotonic(t *testing.T) {
	guard := NewGuard(DefaultLimits())

	for _, tier := range []Tier{Free, Pro} {
		limit, bounded := guard.Limit(tier)
		if !bounded {
			t.Fatalf("expected %s to be bounded", tier)
		}

		for count := 0; count <= limit+5; count++ {
			got := guard.CanCreate(tier, count)
			if count < limit && !got {
				t.Fatalf("%s: expected creation allowed at count %d", tier, count)
			}
			if count >= limit && got {
				t.Fatalf("%s: expected creation denied at count %d", tier, count)
			}
		}
	}

	for _, count := range []int{0, 10, 100, 1_000_000} {
		if !guard.CanCreate(Agency, count) {
			t.Fatalf("agency must always be allowed, count %d", count)
		}
	}
}

func TestFreeTierEleventhApplication(t *testing.T) {
	guard := NewGuard(DefaultLimits())

	if !guard.CanCreate(Free, 9) {
		t.Fatalf("expected the 10th application to be allowed")
	}
	if guard.CanCreate(Free, 10) {
		t.Fatalf("expected the 11th application to be denied")
	}
}

func TestCustomLimits(t *testing.T) {
	guard := NewGuard(Limits{Free: 1, Pro: Unbounded, Agency: 3})

	if guard.CanCreate(Free, 1) {
		t.Fatalf("expected free limit of 1")
	}
	if !guard.CanCreate(Pro, 500) {
		t.Fatalf("expected unbounded pro")
	}
	if guard.CanCreate(Agency, 3) {
		t.Fatalf("expected agency limit of 3")
	}
}

func TestParseTier(t *testing.T) {
	if tier, err := ParseTier(" PRO "); err != nil || tier != Pro {
		t.Fatalf("unexpected result: %v %v", tier, err)
	}
	if _, err := ParseTier("enterprise"); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestPeriodStart(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	at := time.Date(2026, time.March, 1, 0, 30, 0, 0, loc)

	got := PeriodStart(at)
	expected := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(expected) {
		t.Fatalf("expected %s, got %s", expected, got)
	}
}
