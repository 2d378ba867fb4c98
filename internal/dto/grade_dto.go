package dto

import (
	"time"

	"github.com/gradepilot/gradepilot-api/internal/models"
)

// GradeReviewRequest is the payload for a human review edit of a grade.
type GradeReviewRequest struct {
	FinalScore    int    `json:"final_score" validate:"gte=0"`
	FinalFeedback string `json:"final_feedback"`
}

// GradeResponse serializes a per-question grade.
type GradeResponse struct {
	ID                uint      `json:"id"`
	SubmissionID      uint      `json:"submission_id"`
	QuestionNo        string    `json:"question_no"`
	AIScore           int       `json:"ai_score"`
	AIFeedback        string    `json:"ai_feedback"`
	AISatisfiesRubric bool      `json:"ai_satisfies_rubric"`
	FinalScore        int       `json:"final_score"`
	FinalFeedback     string    `json:"final_feedback"`
	HumanReviewed     bool      `json:"human_reviewed"`
	ReviewedBy        *uint     `json:"reviewed_by,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// GradeReviewEventResponse serializes an audit log entry for a grade edit.
type GradeReviewEventResponse struct {
	ID           uint      `json:"id"`
	GradeID      uint      `json:"grade_id"`
	PrevScore    int       `json:"prev_score"`
	NewScore     int       `json:"new_score"`
	PrevFeedback string    `json:"prev_feedback"`
	NewFeedback  string    `json:"new_feedback"`
	ReviewerID   uint      `json:"reviewer_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// GradeExportRow is one student's row in an assignment grade export.
type GradeExportRow struct {
	StudentName    string         `json:"student_name"`
	StudentEmail   string         `json:"student_email"`
	TotalScore     *int           `json:"total_score"`
	Status         string         `json:"status"`
	QuestionScores map[string]int `json:"question_scores"`
}

// NewGradeResponse converts a Grade model into a DTO.
func NewGradeResponse(model models.Grade) GradeResponse {
	return GradeResponse{
		ID:                model.ID,
		SubmissionID:      model.SubmissionID,
		QuestionNo:        model.QuestionNo,
		AIScore:           model.AIScore,
		AIFeedback:        model.AIFeedback,
		AISatisfiesRubric: model.AISatisfiesRubric,
		FinalScore:        model.FinalScore,
		FinalFeedback:     model.FinalFeedback,
		HumanReviewed:     model.HumanReviewed,
		ReviewedBy:        model.ReviewedBy,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

// NewGradeResponseSlice converts grade models into DTOs.
func NewGradeResponseSlice(grades []models.Grade) []GradeResponse {
	responses := make([]GradeResponse, 0, len(grades))
	for _, grade := range grades {
		responses = append(responses, NewGradeResponse(grade))
	}

	return responses
}

// NewGradeReviewEventResponseSlice converts audit events into DTOs.
func NewGradeReviewEventResponseSlice(events []models.GradeReviewEvent) []GradeReviewEventResponse {
	responses := make([]GradeReviewEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, GradeReviewEventResponse{
			ID:           event.ID,
			GradeID:      event.GradeID,
			PrevScore:    event.PrevScore,
			NewScore:     event.NewScore,
			PrevFeedback: event.PrevFeedback,
			NewFeedback:  event.NewFeedback,
			ReviewerID:   event.ReviewerID,
			CreatedAt:    event.CreatedAt,
		})
	}

	return responses
}
