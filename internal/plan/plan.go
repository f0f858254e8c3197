package plan

import (
	"fmt"
	"strings"
	"time"
)

type Tier string

const (
	Free   Tier = "free"
	Pro    Tier = "pro"
	Agency Tier = "agency"
)

// Unbounded marks a tier without an application limit.
const Unbounded = -1

func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case Free:
		return Free, nil
	case Pro:
		return Pro, nil
	case Agency:
		return Agency, nil
	default:
		return "", fmt.Errorf("unknown subscription tier %q (expected free, pro or agency)", s)
	}
}

// Limits holds the number of applications each tier may create per period.
// A negative value means unbounded.
type Limits struct {
	Free   int `mapstructure:"free"`
	Pro    int `mapstructure:"pro"`
	Agency int `mapstructure:"agency"`
}

func DefaultLimits() Limits {
	return Limits{Free: 10, Pro: 100, Agency: Unbounded}
}

// Guard decides whether a user may create one more application.
type Guard struct {
	limits Limits
}

func NewGuard(limits Limits) Guard {
	return Guard{limits: limits}
}

// Limit returns the tier limit and whether it is bounded. Unknown tiers get
// the free limit.
func (g Guard) Limit(tier Tier) (int, bool) {
	var limit int
	switch tier {
	case Pro:
		limit = g.limits.Pro
	case Agency:
		limit = g.limits.Agency
	default:
		limit = g.limits.Free
	}
	return limit, limit >= 0
}

// CanCreate reports whether a user on tier with count applications in the
// current period may create another one.
func (g Guard) CanCreate(tier Tier, count int) bool {
	limit, bounded := g.Limit(tier)
	if !bounded {
		return true
	}
	return count < limit
}

// PeriodStart returns the beginning of the UTC calendar month containing t.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
