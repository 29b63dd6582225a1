package app

import (
	"strconv"
	"strings"

	"momentum-quiz-service/internal/domain"
)

// CreditConfig holds the conversion from training volume to academic credit.
type CreditConfig struct {
	HoursPerCredit float64
	WeeksPerYear   float64
	BasePrice      float64
	PerCreditLow   float64
	PerCreditHigh  float64
}

// DefaultCreditConfig mirrors the figures the site was launched with.
func DefaultCreditConfig() CreditConfig {
	return CreditConfig{
		HoursPerCredit: 116,
		WeeksPerYear:   40,
		BasePrice:      299,
		PerCreditLow:   450,
		PerCreditHigh:  750,
	}
}

// CreditEstimate is a rough credit range shown after an eligibility submission.
type CreditEstimate struct {
	Minutes   float64 `json:"minutes"`
	Hours     float64 `json:"hours"`
	Credits   float64 `json:"credits"`
	PriceLow  float64 `json:"price_low"`
	PriceHigh float64 `json:"price_high"`
	// NoteID is a message ID resolved by the copy catalog into Note.
	NoteID string `json:"note_id"`
	Note   string `json:"note,omitempty"`
}

// EstimateCredits derives training hours and credits from the session answers.
// Unknown or missing answers contribute zero volume.
func EstimateCredits(cfg CreditConfig, answers domain.Answers) CreditEstimate {
	sessions := sessionsPerWeek(answers.Value("training_sessions_per_week"))
	length := minutesPerSession(answers.Value("session_length"))

	weeks := cfg.WeeksPerYear
	if raw := strings.TrimSpace(answers.Value("weeks_per_year")); raw != "" {
		if n, err := strconv.ParseFloat(raw, 64); err == nil && n >= 0 {
			weeks = n
		}
	}

	est := CreditEstimate{Minutes: sessions * length * weeks}
	est.Hours = est.Minutes / 60
	if cfg.HoursPerCredit > 0 {
		est.Credits = est.Hours / cfg.HoursPerCredit
	}
	if est.Credits > 0 {
		est.PriceLow = cfg.BasePrice + est.Credits*cfg.PerCreditLow
		est.PriceHigh = cfg.BasePrice + est.Credits*cfg.PerCreditHigh
	}
	est.NoteID = creditNote(est.Credits)
	return est
}

func creditNote(credits float64) string {
	switch {
	case credits >= 2:
		return "CreditNoteStrong"
	case credits >= 1:
		return "CreditNoteGood"
	case credits >= 0.5:
		return "CreditNotePartial"
	default:
		return "CreditNoteLow"
	}
}

func sessionsPerWeek(v string) float64 {
	switch normalizeDash(v) {
	case "":
		return 0
	case "1-2":
		return 2
	case "3-4":
		return 4
	case "5+":
		return 5
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 {
		return n
	}
	return 0
}

func minutesPerSession(label string) float64 {
	label = normalizeDash(label)
	switch {
	case label == "":
		return 0
	case strings.Contains(label, "Under 60"):
		return 50
	case strings.Contains(label, "60-90"):
		return 75
	case strings.Contains(label, "90+"):
		return 95
	default:
		return 60
	}
}

// normalizeDash folds the en dash the site copy sometimes uses into a hyphen.
func normalizeDash(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "–", "-")
}
