package dto

import (
	"time"

	"github.com/gradepilot/gradepilot-api/internal/models"
)

// SubmissionCreateRequest describes the multipart payload for submission upload.
type SubmissionCreateRequest struct {
	AssignmentID uint `form:"assignment_id" validate:"required,gt=0"`
}

// SubmissionFilter describes query string filters for listing submissions.
type SubmissionFilter struct {
	AssignmentID *uint   `query:"assignment_id"`
	StudentID    *uint   `query:"student_id"`
	Status       *string `query:"status" validate:"omitempty,oneof=uploaded processing graded reviewed error"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID               uint              `json:"id"`
	AssignmentID     uint              `json:"assignment_id"`
	StudentID        uint              `json:"student_id"`
	OriginalFilename string            `json:"original_filename"`
	FileURL          string            `json:"file_url"`
	Status           string            `json:"status"`
	TotalScore       *int              `json:"total_score"`
	ParsedAnswers    map[string]string `json:"parsed_answers,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	Assignment       AssignmentLite    `json:"assignment"`
	Student          UserLite          `json:"student"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	MaxPoints int    `json:"max_points"`
}

// UserLite summarizes a user without exposing full profile data.
type UserLite struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:               model.ID,
		AssignmentID:     model.AssignmentID,
		StudentID:        model.StudentID,
		OriginalFilename: model.OriginalFilename,
		FileURL:          model.FileURL,
		Status:           string(model.Status),
		TotalScore:       model.TotalScore,
		ParsedAnswers:    model.ParsedAnswers.Data(),
		ErrorMessage:     model.ErrorMessage,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}

	if model.Assignment.ID != 0 {
		response.Assignment = AssignmentLite{
			ID:        model.Assignment.ID,
			Name:      model.Assignment.Name,
			MaxPoints: model.Assignment.MaxPoints,
		}
	}

	if model.Student.ID != 0 {
		response.Student = UserLite{
			ID:    model.Student.ID,
			Name:  model.Student.Name,
			Email: model.Student.Email,
		}
	}

	return response
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(models []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(models))
	for _, submission := range models {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
