// Package files loads quiz definitions from YAML files on disk.
package files

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"momentum-quiz-service/internal/domain"
)

// QuizLoader reads `<dir>/<quizID>.yaml` (or .yml) on every call; wrap it in a cached repository.
type QuizLoader struct {
	fsys fs.FS
}

func NewQuizLoader(dir string) *QuizLoader {
	return &QuizLoader{fsys: os.DirFS(dir)}
}

// NewQuizLoaderFS reads definitions from any fs.FS.
func NewQuizLoaderFS(fsys fs.FS) *QuizLoader {
	return &QuizLoader{fsys: fsys}
}

func (l *QuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Definition, error) {
	if quizID == "" || strings.ContainsAny(quizID, `/\`) || strings.HasPrefix(quizID, ".") {
		return domain.Definition{}, domain.ErrQuizNotFound
	}
	for _, ext := range []string{".yaml", ".yml"} {
		data, err := fs.ReadFile(l.fsys, quizID+ext)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return domain.Definition{}, fmt.Errorf("read quiz %s: %w", quizID, err)
		}
		quiz, err := Parse(data)
		if err != nil {
			return domain.Definition{}, fmt.Errorf("quiz %s: %w", quizID, err)
		}
		if quiz.ID != quizID {
			return domain.Definition{}, fmt.Errorf("%w: file %s%s declares id %q", domain.ErrInvalidDefinition, quizID, ext, quiz.ID)
		}
		return quiz, nil
	}
	return domain.Definition{}, domain.ErrQuizNotFound
}

// LoadAll parses every definition in the directory, ordered by id.
func (l *QuizLoader) LoadAll() ([]domain.Definition, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read definitions dir: %w", err)
	}
	var out []domain.Definition
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(l.fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		quiz, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, quiz)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Parse decodes and validates a YAML definition.
func Parse(data []byte) (domain.Definition, error) {
	var quiz domain.Definition
	if err := yaml.Unmarshal(data, &quiz); err != nil {
		return domain.Definition{}, fmt.Errorf("%w: %v", domain.ErrInvalidDefinition, err)
	}
	if err := quiz.Validate(); err != nil {
		return domain.Definition{}, err
	}
	return quiz.Normalize(), nil
}
