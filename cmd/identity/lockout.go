package identity

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LockoutTier locks an account for Duration once FailedLogins reaches Threshold.
type LockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// LockoutPolicy is a set of progressive tiers. The highest tier reached wins.
// An empty policy never locks.
type LockoutPolicy struct {
	Tiers []LockoutTier
}

// DefaultLockoutPolicy returns 5 failures / 5m, 10 / 30m, 20 / 2h.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Tiers: []LockoutTier{
		{Threshold: 20, Duration: 2 * time.Hour},
		{Threshold: 10, Duration: 30 * time.Minute},
		{Threshold: 5, Duration: 5 * time.Minute},
	}}
}

// LockoutFor returns the lockout duration after the given number of consecutive
// failures, or 0 when no tier applies.
func (p LockoutPolicy) LockoutFor(failures int) time.Duration {
	var (
		best    time.Duration
		bestThr int
	)
	for _, t := range p.Tiers {
		if t.Threshold <= 0 || t.Duration <= 0 {
			continue
		}
		if failures >= t.Threshold && t.Threshold > bestThr {
			best, bestThr = t.Duration, t.Threshold
		}
	}
	return best
}

// LockoutPolicyFromEnv overrides the default tiers from
// FANSITE_AUTH_LOCKOUT_{SHORT,LONG,SEVERE}_{THRESHOLD,DURATION}.
// A threshold of 0 disables that tier.
func LockoutPolicyFromEnv() (LockoutPolicy, error) {
	def := DefaultLockoutPolicy()
	byName := map[string]LockoutTier{
		"SEVERE": def.Tiers[0],
		"LONG":   def.Tiers[1],
		"SHORT":  def.Tiers[2],
	}

	out := LockoutPolicy{}
	for _, name := range []string{"SHORT", "LONG", "SEVERE"} {
		t := byName[name]

		thrKey := "FANSITE_AUTH_LOCKOUT_" + name + "_THRESHOLD"
		if v, ok := os.LookupEnv(thrKey); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 0 {
				return LockoutPolicy{}, fmt.Errorf("%s: invalid threshold", thrKey)
			}
			t.Threshold = n
		}

		durKey := "FANSITE_AUTH_LOCKOUT_" + name + "_DURATION"
		if v, ok := os.LookupEnv(durKey); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil || d <= 0 {
				return LockoutPolicy{}, fmt.Errorf("%s: invalid duration", durKey)
			}
			t.Duration = d
		}

		if t.Threshold > 0 {
			out.Tiers = append(out.Tiers, t)
		}
	}

	sort.Slice(out.Tiers, func(i, j int) bool { return out.Tiers[i].Threshold > out.Tiers[j].Threshold })
	return out, nil
}
