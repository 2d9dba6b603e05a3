package batch

import (
	"time"

	"tsundoku/internal/config"
)

// adaptiveDelay computes the pause between uncached groups: the per-request
// spacing the per-minute budget allows, scaled by group size, stretched when
// the remote's remaining-budget hint runs low, and clamped to the configured
// bounds. The watermarks and multipliers are tuning values, not load-bearing
// logic.
func adaptiveDelay(cfg *config.Config, groupSize, budgetHint int) time.Duration {
	budget := cfg.AniList.RequestsPerMinute
	if budget <= 0 {
		budget = 90
	}
	if groupSize < 1 {
		groupSize = 1
	}

	delay := time.Duration(float64(time.Minute) * float64(groupSize) / float64(budget))
	if budgetHint >= 0 {
		switch {
		case budgetHint < cfg.Matching.LowBudgetWatermark:
			delay *= 2
		case budgetHint < cfg.Matching.MidBudgetWatermark:
			delay = delay * 3 / 2
		}
	}

	if minDelay := cfg.MinGroupDelay(); delay < minDelay {
		delay = minDelay
	}
	if maxDelay := cfg.MaxGroupDelay(); maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
