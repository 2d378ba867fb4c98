package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradepilot/gradepilot-api/internal/dto"
	"github.com/gradepilot/gradepilot-api/internal/models"
	"github.com/gradepilot/gradepilot-api/internal/repository"
)

// ErrGradeNotFound indicates the requested grade does not exist.
var ErrGradeNotFound = errors.New("grade not found")

// ErrGradeForbidden indicates the actor may not view or edit the grade.
var ErrGradeForbidden = errors.New("forbidden")

// ErrScoreOutOfRange indicates a review score outside [0, question max].
var ErrScoreOutOfRange = errors.New("score out of range for question")

// ErrGradesNotReady indicates the submission has no committed grades yet.
var ErrGradesNotReady = errors.New("submission has no grades yet")

// ReviewService covers the human side of grading: reading committed grades,
// overriding scores and feedback, and exporting an assignment's results.
type ReviewService interface {
	ListGrades(ctx context.Context, viewer models.User, submissionID uint) ([]dto.GradeResponse, error)
	UpdateGrade(ctx context.Context, reviewer models.User, gradeID uint, payload dto.GradeReviewRequest) (dto.GradeResponse, error)
	ListReviewEvents(ctx context.Context, viewer models.User, gradeID uint) ([]dto.GradeReviewEventResponse, error)
	ExportAssignmentGrades(ctx context.Context, viewer models.User, assignmentID uint) ([]dto.GradeExportRow, error)
}

type reviewService struct {
	grades      repository.GradeRepository
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewReviewService constructs the review service.
func NewReviewService(gradeRepo repository.GradeRepository, subRepo repository.SubmissionRepository, assignmentRepo repository.AssignmentRepository, logger zerolog.Logger) ReviewService {
	return &reviewService{
		grades:      gradeRepo,
		submissions: subRepo,
		assignments: assignmentRepo,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "review_service").Logger(),
	}
}

// ListGrades returns the per-question grades of a submission. Students only
// see grades of their own submissions, and only once grading has finished so
// provisional oracle output never leaks.
func (s *reviewService) ListGrades(ctx context.Context, viewer models.User, submissionID uint) ([]dto.GradeResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return nil, err
	}

	if !viewer.CanGrade() {
		if submission.StudentID != viewer.ID {
			return nil, ErrSubmissionForbidden
		}
		if !submission.IsGraded() {
			return nil, ErrGradesNotReady
		}
	}

	grades, err := s.grades.ListBySubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	return dto.NewGradeResponseSlice(grades), nil
}

// UpdateGrade applies a human override to one grade. The new final score must
// fit the question's rubric maximum; the edit, its audit event and the
// submission's recomputed total are persisted atomically.
func (s *reviewService) UpdateGrade(ctx context.Context, reviewer models.User, gradeID uint, payload dto.GradeReviewRequest) (dto.GradeResponse, error) {
	if !reviewer.CanGrade() {
		return dto.GradeResponse{}, ErrGradeForbidden
	}

	grade, err := s.grades.GetByID(ctx, gradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResponse{}, fmt.Errorf("%w: id %d", ErrGradeNotFound, gradeID)
		}
		return dto.GradeResponse{}, err
	}

	rubric := grade.Submission.Assignment.Rubric.Data()
	entry, ok := rubric[grade.QuestionNo]
	if !ok {
		return dto.GradeResponse{}, fmt.Errorf("question %s missing from rubric", grade.QuestionNo)
	}
	if payload.FinalScore < 0 || payload.FinalScore > entry.MaxPoints {
		return dto.GradeResponse{}, fmt.Errorf("%w: %d not in [0, %d]", ErrScoreOutOfRange, payload.FinalScore, entry.MaxPoints)
	}

	event := models.GradeReviewEvent{
		GradeID:      grade.ID,
		PrevScore:    grade.FinalScore,
		NewScore:     payload.FinalScore,
		PrevFeedback: grade.FinalFeedback,
		NewFeedback:  s.sanitizer.Sanitize(payload.FinalFeedback),
		ReviewerID:   reviewer.ID,
	}

	grade.FinalScore = payload.FinalScore
	grade.FinalFeedback = event.NewFeedback
	grade.HumanReviewed = true
	reviewerID := reviewer.ID
	grade.ReviewedBy = &reviewerID

	if err := s.grades.ApplyReview(ctx, &grade, &event); err != nil {
		return dto.GradeResponse{}, err
	}

	s.logger.Info().
		Uint("grade_id", grade.ID).
		Uint("submission_id", grade.SubmissionID).
		Str("question", grade.QuestionNo).
		Int("prev_score", event.PrevScore).
		Int("new_score", event.NewScore).
		Uint("reviewer_id", reviewer.ID).
		Msg("grade reviewed")

	return dto.NewGradeResponse(grade), nil
}

// ListReviewEvents returns the audit trail of a grade, oldest first.
func (s *reviewService) ListReviewEvents(ctx context.Context, viewer models.User, gradeID uint) ([]dto.GradeReviewEventResponse, error) {
	if !viewer.CanGrade() {
		return nil, ErrGradeForbidden
	}

	if _, err := s.grades.GetByID(ctx, gradeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrGradeNotFound, gradeID)
		}
		return nil, err
	}

	events, err := s.grades.ListReviewEvents(ctx, gradeID)
	if err != nil {
		return nil, err
	}

	return dto.NewGradeReviewEventResponseSlice(events), nil
}

// ExportAssignmentGrades flattens an assignment's submissions into one row per
// student with the final per-question scores. Only the assignment's owner or
// another grader may export.
func (s *reviewService) ExportAssignmentGrades(ctx context.Context, viewer models.User, assignmentID uint) ([]dto.GradeExportRow, error) {
	if !viewer.CanGrade() {
		return nil, ErrGradeForbidden
	}

	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrAssignmentNotFound, assignmentID)
		}
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{AssignmentID: &assignmentID})
	if err != nil {
		return nil, err
	}

	rows := make([]dto.GradeExportRow, 0, len(submissions))
	for _, submission := range submissions {
		row := dto.GradeExportRow{
			StudentName:    submission.Student.Name,
			StudentEmail:   submission.Student.Email,
			TotalScore:     submission.TotalScore,
			Status:         string(submission.Status),
			QuestionScores: map[string]int{},
		}

		if submission.IsGraded() {
			grades, err := s.grades.ListBySubmission(ctx, submission.ID)
			if err != nil {
				return nil, err
			}
			for _, grade := range grades {
				row.QuestionScores[grade.QuestionNo] = grade.FinalScore
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}
