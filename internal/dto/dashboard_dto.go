package dto

import "time"

// StudentDashboardResponse aggregates assignment progress for a student.
type StudentDashboardResponse struct {
	Summary ProgressSummary      `json:"summary"`
	Pending []AssignmentProgress `json:"pending_assignments"`
	Recent  []SubmissionActivity `json:"recent_submissions"`
}

// ProgressSummary captures aggregated statistics for the student dashboard.
type ProgressSummary struct {
	TotalAssignments int     `json:"total_assignments"`
	Submitted        int     `json:"submitted"`
	Graded           int     `json:"graded"`
	Pending          int     `json:"pending"`
	AverageScore     float64 `json:"average_score"`
	CompletionRate   float64 `json:"completion_rate"`
}

// AssignmentProgress describes the state of a single assignment relative to a student.
type AssignmentProgress struct {
	AssignmentID uint   `json:"assignment_id"`
	Name         string `json:"name"`
	MaxPoints    int    `json:"max_points"`
	Status       string `json:"status"`
	SubmissionID *uint  `json:"submission_id"`
	TotalScore   *int   `json:"total_score"`
}

// SubmissionActivity details recent submission events.
type SubmissionActivity struct {
	SubmissionID   uint      `json:"submission_id"`
	AssignmentID   uint      `json:"assignment_id"`
	AssignmentName string    `json:"assignment_name"`
	Status         string    `json:"status"`
	TotalScore     *int      `json:"total_score"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// InstructorDashboardResponse aggregates grading state across an instructor's assignments.
type InstructorDashboardResponse struct {
	Assignments []AssignmentGradingStats `json:"assignments"`
}

// AssignmentGradingStats summarizes submission statuses and scores for one assignment.
type AssignmentGradingStats struct {
	AssignmentID   uint    `json:"assignment_id"`
	Name           string  `json:"name"`
	MaxPoints      int     `json:"max_points"`
	Submissions    int     `json:"submissions"`
	AwaitingGrade  int     `json:"awaiting_grade"`
	Graded         int     `json:"graded"`
	Reviewed       int     `json:"reviewed"`
	Errored        int     `json:"errored"`
	AverageScore   float64 `json:"average_score"`
	HumanOverrides int     `json:"human_overrides"`
}
