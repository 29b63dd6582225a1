package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"momentum-quiz-service/internal/domain"
)

func TestProgressPercent(t *testing.T) {
	cases := []struct{ current, total, want int }{
		{0, 1, 100},
		{0, 3, 0},
		{1, 3, 50},
		{2, 3, 100},
		{1, 4, 33},
		{2, 4, 67},
	}
	for _, tc := range cases {
		if got := progressPercent(tc.current, tc.total); got != tc.want {
			t.Fatalf("progressPercent(%d, %d) = %d, want %d", tc.current, tc.total, got, tc.want)
		}
	}
}

func twoStepQuiz() domain.Definition {
	return domain.Definition{
		ID:    "two",
		Table: "two_step",
		Steps: []domain.Step{
			{Fields: []domain.Field{{Name: "name", Kind: domain.FieldText, Required: true}}},
			{Fields: []domain.Field{{Name: "notes", Kind: domain.FieldText}}},
		},
		Scoring: domain.ScoringConfig{Tiers: []domain.Tier{{Name: "any"}}},
	}
}

func TestGoToStepClamps(t *testing.T) {
	s := newSession("s1", twoStepQuiz(), sessionDeps{})
	s.goToStep(99)
	if s.current != 1 {
		t.Fatalf("expected clamp to last step, got %d", s.current)
	}
	s.goToStep(-4)
	if s.current != 0 {
		t.Fatalf("expected clamp to first step, got %d", s.current)
	}
}

func TestSubmitReturnsToFirstInvalidStep(t *testing.T) {
	s := newSession("s1", twoStepQuiz(), sessionDeps{store: nopStore{}})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.current = 1

	_, err := s.Submit(context.Background())
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.StepIndex != 0 {
		t.Fatalf("expected validation error on step 0, got %v", err)
	}
	v := s.View()
	if v.StepIndex != 0 || v.State != domain.StateActive || len(v.InvalidFields) != 1 {
		t.Fatalf("unexpected view %+v", v)
	}
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := newSession("s1", twoStepQuiz(), sessionDeps{})
	_ = s.Start()
	ch, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < 50; i++ {
		if err := s.SetAnswer("name", []string{"x"}); err != nil {
			t.Fatalf("set answer: %v", err)
		}
	}
	if len(ch) == 0 {
		t.Fatalf("expected buffered snapshots")
	}
}

func TestValidateCurrentStepReplacesMarkers(t *testing.T) {
	s := newSession("s1", twoStepQuiz(), sessionDeps{})
	_ = s.Start()

	v := s.ValidateCurrentStep()
	if v.Valid || v.FirstInvalidField() != "name" {
		t.Fatalf("expected name to be invalid, got %+v", v)
	}
	s.answers["name"] = []string{"Dana"}
	v = s.ValidateCurrentStep()
	if !v.Valid || len(s.View().InvalidFields) != 0 {
		t.Fatalf("fixed field still flagged: %+v", v)
	}
}

func TestSubscribeNeverEndsOnStaleSnapshot(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := newSession("s1", twoStepQuiz(), sessionDeps{})
		_ = s.Start()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 20; i++ {
				_ = s.SetAnswer("name", []string{fmt.Sprintf("v%d", i)})
			}
		}()
		ch, cancel := s.Subscribe()
		<-done

		var last View
		for len(ch) > 0 {
			last = <-ch
		}
		cancel()
		if got := last.Answers.Value("name"); got != "v19" {
			t.Fatalf("round %d: subscriber ended on %q, want v19", round, got)
		}
	}
}

type nopStore struct{}

func (nopStore) Insert(context.Context, string, *domain.Payload) error { return nil }
