package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// RubricEntry defines the scoring criteria for a single question.
type RubricEntry struct {
	MaxPoints int    `json:"max_points"`
	Criteria  string `json:"criteria"`
}

// Rubric maps question identifiers (e.g. "q1") to their scoring criteria.
type Rubric map[string]RubricEntry

// AnswerKey maps question identifiers to the expected answer text.
type AnswerKey map[string]string

// Assignment represents an instructor-owned assignment with a per-question
// rubric and answer key. Rubric and answer key share a single closed key set.
type Assignment struct {
	ID           uint                          `gorm:"primaryKey" json:"id"`
	Name         string                        `gorm:"size:255;not null" json:"name"`
	Description  string                        `gorm:"type:text" json:"description"`
	InstructorID uint                          `gorm:"not null" json:"instructor_id"`
	Rubric       datatypes.JSONType[Rubric]    `gorm:"not null" json:"rubric"`
	AnswerKey    datatypes.JSONType[AnswerKey] `gorm:"not null" json:"answer_key"`
	MaxPoints    int                           `gorm:"not null" json:"max_points"`
	CreatedAt    time.Time                     `json:"created_at"`
	UpdatedAt    time.Time                     `json:"updated_at"`
	Instructor   User                          `gorm:"foreignKey:InstructorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Submissions  []Submission                  `json:"-"`
}

// ErrInvalidRubric wraps every rubric validation failure.
var ErrInvalidRubric = errors.New("invalid rubric")

// ErrEmptyRubric indicates an assignment was created without any questions.
var ErrEmptyRubric = fmt.Errorf("%w: must contain at least one question", ErrInvalidRubric)

// ValidateRubric checks that the rubric and answer key form a consistent,
// closed key set with non-negative point values.
func ValidateRubric(rubric Rubric, answerKey AnswerKey) error {
	if len(rubric) == 0 {
		return ErrEmptyRubric
	}

	for questionID, entry := range rubric {
		if entry.MaxPoints < 0 {
			return fmt.Errorf("%w: question %s: max points must not be negative", ErrInvalidRubric, questionID)
		}
		if _, ok := answerKey[questionID]; !ok {
			return fmt.Errorf("%w: question %s: missing answer key entry", ErrInvalidRubric, questionID)
		}
	}

	for questionID := range answerKey {
		if _, ok := rubric[questionID]; !ok {
			return fmt.Errorf("%w: question %s: answer key entry has no rubric entry", ErrInvalidRubric, questionID)
		}
	}

	return nil
}

// TotalPoints returns the sum of the rubric entries' maximum points.
func (r Rubric) TotalPoints() int {
	total := 0
	for _, entry := range r {
		total += entry.MaxPoints
	}
	return total
}

// QuestionIDs returns the rubric's key set.
func (r Rubric) QuestionIDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	return ids
}
