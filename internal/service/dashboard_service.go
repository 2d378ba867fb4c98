package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gradepilot/gradepilot-api/internal/dto"
	"github.com/gradepilot/gradepilot-api/internal/models"
	"github.com/gradepilot/gradepilot-api/internal/repository"
)

// DashboardService produces aggregated progress views, cached in redis.
type DashboardService interface {
	StudentDashboard(ctx context.Context, studentID uint) (dto.StudentDashboardResponse, error)
	InstructorDashboard(ctx context.Context, instructorID uint) (dto.InstructorDashboardResponse, error)
}

type dashboardService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewDashboardService builds the dashboard aggregator. cache may be nil, in
// which case every call recomputes.
func NewDashboardService(assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, grades repository.GradeRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) DashboardService {
	return &dashboardService{
		assignments: assignments,
		submissions: submissions,
		grades:      grades,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "dashboard_service").Logger(),
	}
}

func (s *dashboardService) StudentDashboard(ctx context.Context, studentID uint) (dto.StudentDashboardResponse, error) {
	cacheKey := fmt.Sprintf("dashboard:student:%d", studentID)

	var cachedResponse dto.StudentDashboardResponse
	if s.readCache(ctx, cacheKey, &cachedResponse) {
		return cachedResponse, nil
	}

	assignments, err := s.assignments.List(ctx)
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentDashboardResponse{}, err
	}

	response := buildStudentDashboard(assignments, submissions)
	s.writeCache(ctx, cacheKey, response)

	return response, nil
}

func (s *dashboardService) InstructorDashboard(ctx context.Context, instructorID uint) (dto.InstructorDashboardResponse, error) {
	cacheKey := fmt.Sprintf("dashboard:instructor:%d", instructorID)

	var cachedResponse dto.InstructorDashboardResponse
	if s.readCache(ctx, cacheKey, &cachedResponse) {
		return cachedResponse, nil
	}

	assignments, err := s.assignments.ListByInstructor(ctx, instructorID)
	if err != nil {
		return dto.InstructorDashboardResponse{}, err
	}

	stats := make([]dto.AssignmentGradingStats, 0, len(assignments))
	for _, assignment := range assignments {
		assignmentID := assignment.ID
		submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{AssignmentID: &assignmentID})
		if err != nil {
			return dto.InstructorDashboardResponse{}, err
		}

		overrides, err := s.grades.CountHumanReviewedByAssignment(ctx, assignmentID)
		if err != nil {
			return dto.InstructorDashboardResponse{}, err
		}

		stats = append(stats, buildGradingStats(assignment, submissions, int(overrides)))
	}

	response := dto.InstructorDashboardResponse{Assignments: stats}
	s.writeCache(ctx, cacheKey, response)

	return response, nil
}

func (s *dashboardService) readCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}

	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to read dashboard cache")
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), out); err != nil {
		return false
	}

	s.logger.Debug().Str("key", key).Msg("dashboard cache hit")
	return true
}

func (s *dashboardService) writeCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to store dashboard cache")
	}
}

func buildStudentDashboard(assignments []models.Assignment, submissions []models.Submission) dto.StudentDashboardResponse {
	submissionByAssignment := map[uint]models.Submission{}
	for _, submission := range submissions {
		submissionByAssignment[submission.AssignmentID] = submission
	}

	summary := dto.ProgressSummary{}
	progress := make([]dto.AssignmentProgress, 0, len(assignments))
	var scoreTotal int
	var scoredCount int

	for _, assignment := range assignments {
		summary.TotalAssignments++

		item := dto.AssignmentProgress{
			AssignmentID: assignment.ID,
			Name:         assignment.Name,
			MaxPoints:    assignment.MaxPoints,
			Status:       "not_submitted",
		}

		if submission, submitted := submissionByAssignment[assignment.ID]; submitted {
			summary.Submitted++
			submissionID := submission.ID
			item.SubmissionID = &submissionID
			item.Status = string(submission.Status)
			if submission.IsGraded() {
				summary.Graded++
				item.TotalScore = submission.TotalScore
				if submission.TotalScore != nil {
					scoreTotal += *submission.TotalScore
					scoredCount++
				}
			} else {
				summary.Pending++
			}
		} else {
			summary.Pending++
		}

		progress = append(progress, item)
	}

	if scoredCount > 0 {
		summary.AverageScore = float64(scoreTotal) / float64(scoredCount)
	}
	if summary.TotalAssignments > 0 {
		summary.CompletionRate = float64(summary.Graded) / float64(summary.TotalAssignments) * 100
	}

	pending := make([]dto.AssignmentProgress, 0)
	for _, item := range progress {
		if item.Status != string(models.SubmissionStatusGraded) && item.Status != string(models.SubmissionStatusReviewed) {
			pending = append(pending, item)
		}
	}

	// submissions arrive newest first from the repository
	recent := make([]dto.SubmissionActivity, 0, 5)
	for _, submission := range submissions {
		if len(recent) == 5 {
			break
		}
		recent = append(recent, dto.SubmissionActivity{
			SubmissionID:   submission.ID,
			AssignmentID:   submission.AssignmentID,
			AssignmentName: submission.Assignment.Name,
			Status:         string(submission.Status),
			TotalScore:     submission.TotalScore,
			CreatedAt:      submission.CreatedAt,
			UpdatedAt:      submission.UpdatedAt,
		})
	}

	return dto.StudentDashboardResponse{
		Summary: summary,
		Pending: pending,
		Recent:  recent,
	}
}

func buildGradingStats(assignment models.Assignment, submissions []models.Submission, overrides int) dto.AssignmentGradingStats {
	stats := dto.AssignmentGradingStats{
		AssignmentID:   assignment.ID,
		Name:           assignment.Name,
		MaxPoints:      assignment.MaxPoints,
		Submissions:    len(submissions),
		HumanOverrides: overrides,
	}

	var scoreTotal int
	var scoredCount int

	for _, submission := range submissions {
		switch submission.Status {
		case models.SubmissionStatusUploaded, models.SubmissionStatusProcessing:
			stats.AwaitingGrade++
		case models.SubmissionStatusGraded:
			stats.Graded++
		case models.SubmissionStatusReviewed:
			stats.Reviewed++
		case models.SubmissionStatusError:
			stats.Errored++
		}

		if submission.IsGraded() && submission.TotalScore != nil {
			scoreTotal += *submission.TotalScore
			scoredCount++
		}
	}

	if scoredCount > 0 {
		stats.AverageScore = float64(scoreTotal) / float64(scoredCount)
	}

	return stats
}
