package ai

import (
	"context"
	"errors"
)

// GradingInput contains everything the oracle needs to score one question.
type GradingInput struct {
	QuestionID     string
	QuestionText   string
	ExpectedAnswer string
	Criteria       string
	StudentAnswer  string
	MaxPoints      int
}

// GradingResult is the structured verdict returned by the oracle for a question.
type GradingResult struct {
	Score           int    `json:"score"`
	Feedback        string `json:"feedback"`
	Reasoning       string `json:"reasoning,omitempty"`
	SatisfiesRubric bool   `json:"satisfies_rubric,omitempty"`
}

// ErrOracle wraps any oracle failure: timeouts, malformed responses, quota.
// Callers retry a bounded number of times before failing the grading attempt.
var ErrOracle = errors.New("grading oracle failure")

// Grader scores a single student answer against the rubric and answer key.
type Grader interface {
	Grade(ctx context.Context, input GradingInput) (GradingResult, error)
}
