package dto

import (
	"time"

	"github.com/gradepilot/gradepilot-api/internal/models"
)

// RubricEntryPayload is the wire form of a single rubric entry.
type RubricEntryPayload struct {
	MaxPoints int    `json:"max_points" validate:"gte=0"`
	Criteria  string `json:"criteria"`
}

// AssignmentCreateRequest describes the payload for creating a new assignment.
// Rubric and answer key must cover the same question ids; max_points is
// derived from the rubric, never taken from the caller.
type AssignmentCreateRequest struct {
	Name        string                        `json:"name" validate:"required,min=3"`
	Description string                        `json:"description"`
	Rubric      map[string]RubricEntryPayload `json:"rubric" validate:"required,min=1,dive"`
	AnswerKey   map[string]string             `json:"answer_key" validate:"required,min=1"`
}

// AssignmentUpdateRequest describes the payload for updating an assignment.
type AssignmentUpdateRequest struct {
	Name        *string                       `json:"name" validate:"omitempty,min=3"`
	Description *string                       `json:"description"`
	Rubric      map[string]RubricEntryPayload `json:"rubric" validate:"omitempty,min=1,dive"`
	AnswerKey   map[string]string             `json:"answer_key" validate:"omitempty,min=1"`
}

// AssignmentResponse is the serialized representation returned to API clients.
// AnswerKey is omitted for students.
type AssignmentResponse struct {
	ID           uint             `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	InstructorID uint             `json:"instructor_id"`
	Rubric       models.Rubric    `json:"rubric"`
	AnswerKey    models.AnswerKey `json:"answer_key,omitempty"`
	MaxPoints    int              `json:"max_points"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ToRubric converts the wire payload into the model mapping.
func ToRubric(payload map[string]RubricEntryPayload) models.Rubric {
	rubric := make(models.Rubric, len(payload))
	for questionID, entry := range payload {
		rubric[questionID] = models.RubricEntry{
			MaxPoints: entry.MaxPoints,
			Criteria:  entry.Criteria,
		}
	}

	return rubric
}

// NewAssignmentResponse converts a model into a DTO. Set includeAnswerKey to
// false for student-facing responses.
func NewAssignmentResponse(model models.Assignment, includeAnswerKey bool) AssignmentResponse {
	response := AssignmentResponse{
		ID:           model.ID,
		Name:         model.Name,
		Description:  model.Description,
		InstructorID: model.InstructorID,
		Rubric:       model.Rubric.Data(),
		MaxPoints:    model.MaxPoints,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}

	if includeAnswerKey {
		response.AnswerKey = model.AnswerKey.Data()
	}

	return response
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment, includeAnswerKey bool) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment, includeAnswerKey))
	}

	return responses
}
