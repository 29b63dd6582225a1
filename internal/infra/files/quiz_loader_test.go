package files

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"momentum-quiz-service/internal/domain"
)

const partnerYAML = `
id: club
title: Club
table: partner_applications
steps:
  - title: Program
    fields:
      - name: games_per_week
        kind: single_choice
        required: true
        options: ["0-1", "2-3", "4+"]
      - name: session_includes
        kind: multi_choice
        options: [Warm-up, Skills, Scrimmage, Film]
scoring:
  choices:
    games_per_week: {"0-1": 1, "2-3": 2, "4+": 3}
  caps:
    session_includes: 3
  tiers:
    - {threshold: 0, name: early}
    - {threshold: 14, name: high}
    - {threshold: 8, name: moderate}
`

func TestLoadQuiz(t *testing.T) {
	loader := NewQuizLoaderFS(fstest.MapFS{
		"club.yaml": {Data: []byte(partnerYAML)},
	})

	quiz, err := loader.LoadQuiz(context.Background(), "club")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if quiz.Table != "partner_applications" || len(quiz.Steps) != 1 {
		t.Fatalf("unexpected quiz: %+v", quiz)
	}
	if quiz.Scoring.Tiers[0].Name != "high" {
		t.Errorf("expected tiers high-to-low, got %+v", quiz.Scoring.Tiers)
	}
	if quiz.Scoring.Caps["session_includes"] != 3 {
		t.Errorf("expected cap 3, got %+v", quiz.Scoring.Caps)
	}
	if quiz.Scoring.Choices["games_per_week"]["4+"] != 3 {
		t.Errorf("unexpected weights: %+v", quiz.Scoring.Choices)
	}
}

func TestLoadQuizErrors(t *testing.T) {
	loader := NewQuizLoaderFS(fstest.MapFS{
		"club.yaml":  {Data: []byte(partnerYAML)},
		"other.yaml": {Data: []byte(partnerYAML)},
		"bad.yml":    {Data: []byte("id: bad\ntable: t\nsteps: []\n")},
	})

	tests := []struct {
		name string
		id   string
		want error
	}{
		{name: "missing", id: "nope", want: domain.ErrQuizNotFound},
		{name: "path escape", id: "../club", want: domain.ErrQuizNotFound},
		{name: "id mismatch", id: "other", want: domain.ErrInvalidDefinition},
		{name: "no steps", id: "bad", want: domain.ErrInvalidDefinition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.LoadQuiz(context.Background(), tt.id)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadAllShippedDefinitions(t *testing.T) {
	quizzes, err := NewQuizLoader("../../../quizzes").LoadAll()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(quizzes) != 2 {
		t.Fatalf("expected 2 shipped quizzes, got %d", len(quizzes))
	}
	if quizzes[0].ID != "parent-eligibility" || quizzes[1].ID != "partner-club" {
		t.Fatalf("unexpected ids: %s, %s", quizzes[0].ID, quizzes[1].ID)
	}
}
