package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/gradepilot/gradepilot-api/internal/models"
)

func dashboardFixture(t *testing.T) (*fakeAssignmentRepo, *fakeSubmissionRepo, *fakeGradeRepo) {
	t.Helper()

	assignments := newFakeAssignmentRepo()
	rubric := datatypes.NewJSONType(models.Rubric{"q1": {MaxPoints: 10, Criteria: "complete"}})
	assignments.put(models.Assignment{ID: 1, Name: "HW1", InstructorID: 7, Rubric: rubric, MaxPoints: 10})
	assignments.put(models.Assignment{ID: 2, Name: "HW2", InstructorID: 7, Rubric: rubric, MaxPoints: 10})
	assignments.put(models.Assignment{ID: 3, Name: "HW3", InstructorID: 7, Rubric: rubric, MaxPoints: 10})

	eight, six := 8, 6
	submissions := newFakeSubmissionRepo()
	submissions.put(models.Submission{ID: 1, AssignmentID: 1, StudentID: 2, Status: models.SubmissionStatusGraded, TotalScore: &eight})
	submissions.put(models.Submission{ID: 2, AssignmentID: 2, StudentID: 2, Status: models.SubmissionStatusProcessing})
	submissions.put(models.Submission{ID: 3, AssignmentID: 1, StudentID: 3, Status: models.SubmissionStatusReviewed, TotalScore: &six})
	submissions.put(models.Submission{ID: 4, AssignmentID: 2, StudentID: 3, Status: models.SubmissionStatusError, ErrorMessage: "grading oracle failure"})

	grades := newFakeGradeRepo()
	grades.put(models.Grade{ID: 1, SubmissionID: 3, QuestionNo: "q1", FinalScore: 6, HumanReviewed: true})

	return assignments, submissions, grades
}

func TestDashboardServiceStudentSummary(t *testing.T) {
	assignments, submissions, grades := dashboardFixture(t)
	svc := NewDashboardService(assignments, submissions, grades, nil, time.Minute, testLogger())

	dashboard, err := svc.StudentDashboard(context.Background(), 2)
	require.NoError(t, err)

	summary := dashboard.Summary
	require.Equal(t, 3, summary.TotalAssignments)
	require.Equal(t, 2, summary.Submitted)
	require.Equal(t, 1, summary.Graded)
	require.Equal(t, 2, summary.Pending) // one in flight, one not submitted
	require.InDelta(t, 8.0, summary.AverageScore, 0.001)
	require.InDelta(t, 100.0/3.0, summary.CompletionRate, 0.001)

	// pending excludes the graded assignment
	require.Len(t, dashboard.Pending, 2)
	for _, item := range dashboard.Pending {
		require.NotEqual(t, string(models.SubmissionStatusGraded), item.Status)
	}

	require.Len(t, dashboard.Recent, 2)
}

func TestDashboardServiceStudentWithNoSubmissions(t *testing.T) {
	assignments, submissions, grades := dashboardFixture(t)
	svc := NewDashboardService(assignments, submissions, grades, nil, time.Minute, testLogger())

	dashboard, err := svc.StudentDashboard(context.Background(), 99)
	require.NoError(t, err)
	require.Equal(t, 3, dashboard.Summary.TotalAssignments)
	require.Zero(t, dashboard.Summary.Submitted)
	require.Equal(t, 3, dashboard.Summary.Pending)
	require.Zero(t, dashboard.Summary.AverageScore)
	require.Zero(t, dashboard.Summary.CompletionRate)
	require.Empty(t, dashboard.Recent)
	require.Len(t, dashboard.Pending, 3)
	for _, item := range dashboard.Pending {
		require.Equal(t, "not_submitted", item.Status)
	}
}

func TestDashboardServiceInstructorStats(t *testing.T) {
	assignments, submissions, grades := dashboardFixture(t)
	svc := NewDashboardService(assignments, submissions, grades, nil, time.Minute, testLogger())

	dashboard, err := svc.InstructorDashboard(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, dashboard.Assignments, 3)

	byID := make(map[uint]int, len(dashboard.Assignments))
	for i, stats := range dashboard.Assignments {
		byID[stats.AssignmentID] = i
	}

	hw1 := dashboard.Assignments[byID[1]]
	require.Equal(t, 2, hw1.Submissions)
	require.Equal(t, 1, hw1.Graded)
	require.Equal(t, 1, hw1.Reviewed)
	require.Zero(t, hw1.AwaitingGrade)
	require.InDelta(t, 7.0, hw1.AverageScore, 0.001)

	hw2 := dashboard.Assignments[byID[2]]
	require.Equal(t, 2, hw2.Submissions)
	require.Equal(t, 1, hw2.AwaitingGrade)
	require.Equal(t, 1, hw2.Errored)
	require.Zero(t, hw2.Graded)

	hw3 := dashboard.Assignments[byID[3]]
	require.Zero(t, hw3.Submissions)
}

func TestDashboardServiceCachesResponses(t *testing.T) {
	assignments, submissions, grades := dashboardFixture(t)

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	svc := NewDashboardService(assignments, submissions, grades, cache, time.Minute, testLogger())

	first, err := svc.StudentDashboard(context.Background(), 2)
	require.NoError(t, err)
	require.True(t, mr.Exists("dashboard:student:2"))

	// A data change is not visible until the cache entry expires.
	twelve := 12
	submissions.put(models.Submission{ID: 5, AssignmentID: 3, StudentID: 2, Status: models.SubmissionStatusGraded, TotalScore: &twelve})

	cached, err := svc.StudentDashboard(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, first.Summary, cached.Summary)

	mr.FastForward(2 * time.Minute)

	fresh, err := svc.StudentDashboard(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, 3, fresh.Summary.Submitted)
	require.Equal(t, 2, fresh.Summary.Graded)
}
