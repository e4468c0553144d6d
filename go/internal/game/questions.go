package game

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OptionsPerQuestion is fixed for every quiz question
const OptionsPerQuestion = 4

//go:embed questions.yaml
var defaultQuestionsYAML []byte

// Question is one multiple-choice quiz entry
type Question struct {
	Prompt  string   `yaml:"prompt" json:"prompt"`
	Options []string `yaml:"options" json:"options"`
	Answer  int      `yaml:"answer" json:"-"`
}

type questionFile struct {
	Questions []Question `yaml:"questions"`
}

// DefaultQuestions returns the built-in question bank
func DefaultQuestions() []Question {
	qs, err := parseQuestions(defaultQuestionsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded question bank is invalid: %v", err))
	}
	return qs
}

// LoadQuestions reads a YAML question bank
func LoadQuestions(r io.Reader) ([]Question, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	return parseQuestions(data)
}

// LoadQuestionsFile reads a YAML question bank from path
func LoadQuestionsFile(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open question bank: %w", err)
	}
	defer f.Close()
	return LoadQuestions(f)
}

func parseQuestions(data []byte) ([]Question, error) {
	var qf questionFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	if err := validateQuestions(qf.Questions); err != nil {
		return nil, err
	}
	return qf.Questions, nil
}

func validateQuestions(qs []Question) error {
	if len(qs) == 0 {
		return fmt.Errorf("question bank is empty")
	}
	for i, q := range qs {
		if q.Prompt == "" {
			return fmt.Errorf("question %d: prompt is required", i+1)
		}
		if len(q.Options) != OptionsPerQuestion {
			return fmt.Errorf("question %d: expected %d options, got %d", i+1, OptionsPerQuestion, len(q.Options))
		}
		if q.Answer < 0 || q.Answer >= OptionsPerQuestion {
			return fmt.Errorf("question %d: answer index %d out of range", i+1, q.Answer)
		}
	}
	return nil
}
