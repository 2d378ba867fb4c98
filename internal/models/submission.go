package models

import (
	"time"

	"gorm.io/datatypes"
)

// ParsedAnswers maps question identifiers to the student's extracted answer text.
type ParsedAnswers map[string]string

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	// SubmissionStatusUploaded indicates the file has been received but grading has not started.
	SubmissionStatusUploaded SubmissionStatus = "uploaded"
	// SubmissionStatusProcessing indicates a grading worker has picked up the submission.
	SubmissionStatusProcessing SubmissionStatus = "processing"
	// SubmissionStatusGraded indicates every rubric question has a committed grade.
	SubmissionStatusGraded SubmissionStatus = "graded"
	// SubmissionStatusReviewed indicates a human has signed off on the grades. Terminal.
	SubmissionStatusReviewed SubmissionStatus = "reviewed"
	// SubmissionStatusError indicates the grading attempt failed. Recoverable only via regrade.
	SubmissionStatusError SubmissionStatus = "error"
)

// CanTransition reports whether moving from s to next is a legal lifecycle change.
// The regrade path (error -> processing) is the only way out of error.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	switch s {
	case SubmissionStatusUploaded:
		return next == SubmissionStatusProcessing || next == SubmissionStatusError
	case SubmissionStatusProcessing:
		return next == SubmissionStatusGraded || next == SubmissionStatusError
	case SubmissionStatusGraded:
		return next == SubmissionStatusReviewed
	case SubmissionStatusError:
		return next == SubmissionStatusProcessing
	default:
		return false
	}
}

// CanRegrade reports whether a regrade may re-enter the workflow from s.
// Besides error, this covers uploaded and processing so a submission
// abandoned by a crashed worker can be retried; once grades are committed
// the review path is the correction mechanism instead.
func (s SubmissionStatus) CanRegrade() bool {
	switch s {
	case SubmissionStatusUploaded, SubmissionStatusProcessing, SubmissionStatusError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status admits no further workflow-driven change.
func (s SubmissionStatus) IsTerminal() bool {
	return s == SubmissionStatusReviewed
}

// Submission represents a LaTeX document submitted by a student for an assignment.
// At most one submission exists per (assignment, student) pair.
type Submission struct {
	ID               uint                              `gorm:"primaryKey" json:"id"`
	AssignmentID     uint                              `gorm:"not null;uniqueIndex:idx_submissions_assignment_student" json:"assignment_id"`
	StudentID        uint                              `gorm:"not null;uniqueIndex:idx_submissions_assignment_student" json:"student_id"`
	OriginalFilename string                            `gorm:"size:255;not null" json:"original_filename"`
	FileURL          string                            `gorm:"size:512" json:"file_url"`
	RawContent       string                            `gorm:"type:text" json:"-"`
	ParsedAnswers    datatypes.JSONType[ParsedAnswers] `json:"parsed_answers"`
	Status           SubmissionStatus                  `gorm:"size:32;not null" json:"status"`
	TotalScore       *int                              `json:"total_score"`
	ErrorMessage     string                            `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time                         `json:"created_at"`
	UpdatedAt        time.Time                         `json:"updated_at"`
	Assignment       Assignment                        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Student          User                              `gorm:"foreignKey:StudentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Grades           []Grade                           `json:"-"`
}

// IsGraded reports whether the submission carries a committed total score.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded || s.Status == SubmissionStatusReviewed
}
