package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gradepilot/gradepilot-api/internal/dto"
	"github.com/gradepilot/gradepilot-api/internal/models"
)

// fakeGradeRepo is an in-memory GradeRepository.
type fakeGradeRepo struct {
	mu     sync.Mutex
	grades map[uint]models.Grade
	events map[uint][]models.GradeReviewEvent
	nextID uint
}

func newFakeGradeRepo() *fakeGradeRepo {
	return &fakeGradeRepo{
		grades: make(map[uint]models.Grade),
		events: make(map[uint][]models.GradeReviewEvent),
		nextID: 1,
	}
}

func (f *fakeGradeRepo) put(grade models.Grade) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if grade.ID == 0 {
		grade.ID = f.nextID
		f.nextID++
	} else if grade.ID >= f.nextID {
		f.nextID = grade.ID + 1
	}
	f.grades[grade.ID] = grade
}

func (f *fakeGradeRepo) GetByID(_ context.Context, id uint) (models.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	grade, ok := f.grades[id]
	if !ok {
		return models.Grade{}, gorm.ErrRecordNotFound
	}
	return grade, nil
}

func (f *fakeGradeRepo) ListBySubmission(_ context.Context, submissionID uint) ([]models.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var grades []models.Grade
	for _, grade := range f.grades {
		if grade.SubmissionID == submissionID {
			grades = append(grades, grade)
		}
	}
	return grades, nil
}

func (f *fakeGradeRepo) ApplyReview(_ context.Context, grade *models.Grade, event *models.GradeReviewEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.grades[grade.ID] = *grade
	event.ID = uint(len(f.events[grade.ID]) + 1)
	f.events[grade.ID] = append(f.events[grade.ID], *event)
	return nil
}

func (f *fakeGradeRepo) ListReviewEvents(_ context.Context, gradeID uint) ([]models.GradeReviewEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[gradeID], nil
}

func (f *fakeGradeRepo) CountHumanReviewedByAssignment(_ context.Context, _ uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for _, grade := range f.grades {
		if grade.HumanReviewed {
			count++
		}
	}
	return count, nil
}

func reviewFixture(t *testing.T) (*fakeGradeRepo, *fakeSubmissionRepo, *fakeAssignmentRepo) {
	t.Helper()

	assignments := newFakeAssignmentRepo()
	assignment := models.Assignment{
		ID:           1,
		Name:         "Linear Algebra HW1",
		InstructorID: 7,
		Rubric: datatypes.NewJSONType(models.Rubric{
			"q1": {MaxPoints: 10, Criteria: "row reduction shown"},
			"q2": {MaxPoints: 5, Criteria: "eigenvalues correct"},
		}),
		MaxPoints: 15,
	}
	assignments.put(assignment)

	total := 12
	submissions := newFakeSubmissionRepo()
	submissions.put(models.Submission{
		ID:           1,
		AssignmentID: 1,
		StudentID:    2,
		Status:       models.SubmissionStatusGraded,
		TotalScore:   &total,
		Student:      models.User{ID: 2, Name: "Dana Park", Email: "dana@example.edu"},
	})

	grades := newFakeGradeRepo()
	grades.put(models.Grade{
		ID:            1,
		SubmissionID:  1,
		QuestionNo:    "q1",
		AIScore:       8,
		AIFeedback:    "sign error in row 3",
		FinalScore:    8,
		FinalFeedback: "sign error in row 3",
		Submission: models.Submission{
			ID:           1,
			AssignmentID: 1,
			StudentID:    2,
			Assignment:   assignment,
		},
	})

	return grades, submissions, assignments
}

func graderUser() models.User {
	return models.User{ID: 7, Role: models.RoleInstructor}
}

func TestReviewServiceUpdateGradeRecordsAudit(t *testing.T) {
	grades, submissions, assignments := reviewFixture(t)
	svc := NewReviewService(grades, submissions, assignments, testLogger())

	updated, err := svc.UpdateGrade(context.Background(), graderUser(), 1, dto.GradeReviewRequest{
		FinalScore:    10,
		FinalFeedback: "row reduction is actually fine",
	})
	require.NoError(t, err)
	require.Equal(t, 10, updated.FinalScore)
	require.Equal(t, "row reduction is actually fine", updated.FinalFeedback)
	require.True(t, updated.HumanReviewed)
	require.NotNil(t, updated.ReviewedBy)
	require.Equal(t, uint(7), *updated.ReviewedBy)

	// The draft from the oracle stays untouched.
	require.Equal(t, 8, updated.AIScore)
	require.Equal(t, "sign error in row 3", updated.AIFeedback)

	events, err := svc.ListReviewEvents(context.Background(), graderUser(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, 8, events[0].PrevScore)
	require.Equal(t, 10, events[0].NewScore)
	require.Equal(t, "sign error in row 3", events[0].PrevFeedback)
	require.Equal(t, "row reduction is actually fine", events[0].NewFeedback)
	require.Equal(t, uint(7), events[0].ReviewerID)
}

func TestReviewServiceUpdateGradeSanitizesFeedback(t *testing.T) {
	grades, submissions, assignments := reviewFixture(t)
	svc := NewReviewService(grades, submissions, assignments, testLogger())

	updated, err := svc.UpdateGrade(context.Background(), graderUser(), 1, dto.GradeReviewRequest{
		FinalScore:    9,
		FinalFeedback: `<script>alert(1)</script>good work`,
	})
	require.NoError(t, err)
	require.Equal(t, "good work", updated.FinalFeedback)
}

func TestReviewServiceUpdateGradeScoreBounds(t *testing.T) {
	grades, submissions, assignments := reviewFixture(t)
	svc := NewReviewService(grades, submissions, assignments, testLogger())

	_, err := svc.UpdateGrade(context.Background(), graderUser(), 1, dto.GradeReviewRequest{FinalScore: 11})
	require.ErrorIs(t, err, ErrScoreOutOfRange)

	_, err = svc.UpdateGrade(context.Background(), graderUser(), 1, dto.GradeReviewRequest{FinalScore: -1})
	require.ErrorIs(t, err, ErrScoreOutOfRange)

	// The boundary value itself is allowed.
	_, err = svc.UpdateGrade(context.Background(), graderUser(), 1, dto.GradeReviewRequest{FinalScore: 10})
	require.NoError(t, err)
}

func TestReviewServiceUpdateGradeForbiddenForStudents(t *testing.T) {
	grades, submissions, assignments := reviewFixture(t)
	svc := NewReviewService(grades, submissions, assignments, testLogger())

	student := models.User{ID: 2, Role: models.RoleStudent}
	_, err := svc.UpdateGrade(context.Background(), student, 1, dto.GradeReviewRequest{FinalScore: 10})
	require.ErrorIs(t, err, ErrGradeForbidden)

	_, err = svc.ListReviewEvents(context.Background(), student, 1)
	require.ErrorIs(t, err, ErrGradeForbidden)
}

func TestReviewServiceUpdateGradeNotFound(t *testing.T) {
	grades, submissions, assignments := reviewFixture(t)
	svc := NewReviewService(grades, submissions, assignments, testLogger())

	_, err := svc.UpdateGrade(context.Background(), graderUser(), 99, dto.GradeReviewRequest{FinalScore: 1})
	require.ErrorIs(t, err, ErrGradeNotFound)
}

func TestReviewServiceListGradesStudentAccess(t *testing.T) {
	grades, submissions, assignments := reviewFixture(t)
	svc := NewReviewService(grades, submissions, assignments, testLogger())

	owner := models.User{ID: 2, Role: models.RoleStudent}
	listed, err := svc.ListGrades(context.Background(), owner, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, "q1", listed[0].QuestionNo)

	stranger := models.User{ID: 3, Role: models.RoleStudent}
	_, err = svc.ListGrades(context.Background(), stranger, 1)
	require.ErrorIs(t, err, ErrSubmissionForbidden)
}

func TestReviewServiceListGradesHiddenUntilGraded(t *testing.T) {
	grades, submissions, assignments := reviewFixture(t)
	submissions.put(models.Submission{
		ID:           2,
		AssignmentID: 1,
		StudentID:    2,
		Status:       models.SubmissionStatusProcessing,
	})
	svc := NewReviewService(grades, submissions, assignments, testLogger())

	owner := models.User{ID: 2, Role: models.RoleStudent}
	_, err := svc.ListGrades(context.Background(), owner, 2)
	require.ErrorIs(t, err, ErrGradesNotReady)

	// Graders can inspect in-flight submissions.
	listed, err := svc.ListGrades(context.Background(), graderUser(), 2)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestReviewServiceExportAssignmentGrades(t *testing.T) {
	grades, submissions, assignments := reviewFixture(t)
	submissions.put(models.Submission{
		ID:           2,
		AssignmentID: 1,
		StudentID:    3,
		Status:       models.SubmissionStatusProcessing,
		Student:      models.User{ID: 3, Name: "Lee Soto", Email: "lee@example.edu"},
	})
	svc := NewReviewService(grades, submissions, assignments, testLogger())

	rows, err := svc.ExportAssignmentGrades(context.Background(), graderUser(), 1)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byEmail := make(map[string]dto.GradeExportRow, len(rows))
	for _, row := range rows {
		byEmail[row.StudentEmail] = row
	}

	graded := byEmail["dana@example.edu"]
	require.Equal(t, "Dana Park", graded.StudentName)
	require.NotNil(t, graded.TotalScore)
	require.Equal(t, 12, *graded.TotalScore)
	require.Equal(t, map[string]int{"q1": 8}, graded.QuestionScores)

	pending := byEmail["lee@example.edu"]
	require.Equal(t, string(models.SubmissionStatusProcessing), pending.Status)
	require.Nil(t, pending.TotalScore)
	require.Empty(t, pending.QuestionScores)

	_, err = svc.ExportAssignmentGrades(context.Background(), models.User{ID: 2, Role: models.RoleStudent}, 1)
	require.ErrorIs(t, err, ErrGradeForbidden)
}
