package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"momentum-quiz-service/internal/app"
	"momentum-quiz-service/internal/domain"
	"momentum-quiz-service/internal/infra/files"
)

func newScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score <quiz-id> <answers.yaml>",
		Short: "Score an answers file against a quiz definition",
		Long: "Reads a YAML or JSON map of field to value (or list of values) and prints the score, " +
			"qualification tier and, for quizzes that show it, the credit estimate.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			quiz, err := files.NewQuizLoader(cfg.Quiz.DefinitionsDir).LoadQuiz(context.Background(), args[0])
			if err != nil {
				return err
			}
			answers, err := readAnswers(args[1])
			if err != nil {
				return err
			}

			result := app.Score(quiz.Scoring, answers)
			out := map[string]any{
				"quiz":      quiz.ID,
				"score":     result.Score,
				"max_score": app.MaxScore(quiz.Scoring),
				"tier":      result.Tier,
			}
			if quiz.CreditEstimate {
				out["credit"] = app.EstimateCredits(creditConfig(cfg), answers)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

// readAnswers accepts scalars or lists per field. YAML is a superset of JSON so one decoder covers both.
func readAnswers(path string) (domain.Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse answers: %w", err)
	}
	answers := make(domain.Answers, len(raw))
	for field, v := range raw {
		switch val := v.(type) {
		case nil:
		case []any:
			for _, item := range val {
				answers[field] = append(answers[field], fmt.Sprint(item))
			}
		default:
			answers[field] = []string{fmt.Sprint(val)}
		}
	}
	return answers, nil
}
