package models

import "time"

// Grade holds the oracle's draft score and the authoritative final score for a
// single question of a submission. FinalScore/FinalFeedback start as copies of
// the AI values and may only change through a human review edit.
type Grade struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	SubmissionID      uint       `gorm:"not null;uniqueIndex:idx_grades_submission_question" json:"submission_id"`
	QuestionNo        string     `gorm:"size:32;not null;uniqueIndex:idx_grades_submission_question" json:"question_no"`
	AIScore           int        `gorm:"not null" json:"ai_score"`
	AIFeedback        string     `gorm:"type:text" json:"ai_feedback"`
	AISatisfiesRubric bool       `json:"ai_satisfies_rubric"`
	FinalScore        int        `gorm:"not null" json:"final_score"`
	FinalFeedback     string     `gorm:"type:text" json:"final_feedback"`
	HumanReviewed     bool       `gorm:"not null;default:false" json:"human_reviewed"`
	ReviewedBy        *uint      `json:"reviewed_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Submission        Submission `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}

// GradeReviewEvent is an append-only record of a human review edit to a grade.
type GradeReviewEvent struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GradeID      uint      `gorm:"not null;index" json:"grade_id"`
	PrevScore    int       `gorm:"not null" json:"prev_score"`
	NewScore     int       `gorm:"not null" json:"new_score"`
	PrevFeedback string    `gorm:"type:text" json:"prev_feedback"`
	NewFeedback  string    `gorm:"type:text" json:"new_feedback"`
	ReviewerID   uint      `gorm:"not null" json:"reviewer_id"`
	CreatedAt    time.Time `json:"created_at"`
}
