package app

import (
	"sort"

	"momentum-quiz-service/internal/domain"
)

// Score converts a final Answer Set into a numeric score and qualification tier.
// It has no side effects, treats missing fields as zero and does not depend on answer order.
func Score(cfg domain.ScoringConfig, answers domain.Answers) domain.ScoreResult {
	total := 0

	for field, weights := range cfg.Choices {
		if v := answers.Value(field); v != "" {
			total += weights[v]
		}
	}

	for field, limit := range cfg.Caps {
		total += min(distinctCount(answers[field]), limit)
	}

	return domain.ScoreResult{Score: total, Tier: TierFor(cfg.Tiers, total)}
}

// TierFor returns the highest tier whose threshold the score meets, or "" when none does.
func TierFor(tiers []domain.Tier, score int) string {
	ordered := append([]domain.Tier(nil), tiers...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Threshold > ordered[j].Threshold })
	for _, t := range ordered {
		if score >= t.Threshold {
			return t.Name
		}
	}
	return ""
}

// MaxScore is the upper bound Score can return for cfg.
func MaxScore(cfg domain.ScoringConfig) int {
	total := 0
	for _, weights := range cfg.Choices {
		best := 0
		for _, w := range weights {
			best = max(best, w)
		}
		total += best
	}
	for _, limit := range cfg.Caps {
		total += limit
	}
	return total
}

func distinctCount(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}
