package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/gradepilot/gradepilot-api/internal/dto"
	"github.com/gradepilot/gradepilot-api/internal/models"
)

func newTestAssignmentService(repo *fakeAssignmentRepo) AssignmentService {
	return NewAssignmentService(repo, validator.New(validator.WithRequiredStructEnabled()), testLogger())
}

func validCreateRequest() dto.AssignmentCreateRequest {
	return dto.AssignmentCreateRequest{
		Name:        "Calculus HW3",
		Description: "Derivatives and limits.",
		Rubric: map[string]dto.RubricEntryPayload{
			"q1": {MaxPoints: 10, Criteria: "correct derivative with steps"},
			"q2": {MaxPoints: 5, Criteria: "correct limit value"},
		},
		AnswerKey: map[string]string{"q1": "2x", "q2": "0"},
	}
}

func TestAssignmentServiceCreate(t *testing.T) {
	repo := newFakeAssignmentRepo()
	svc := newTestAssignmentService(repo)

	instructor := models.User{ID: 7, Role: models.RoleInstructor}
	created, err := svc.Create(context.Background(), validCreateRequest(), instructor)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, uint(7), created.InstructorID)

	// max_points comes from the rubric, never from the caller
	require.Equal(t, 15, created.MaxPoints)
	require.Len(t, created.Rubric, 2)
	require.Equal(t, "2x", created.AnswerKey["q1"])
}

func TestAssignmentServiceCreateRejectsInvalidRubric(t *testing.T) {
	svc := newTestAssignmentService(newFakeAssignmentRepo())
	instructor := models.User{ID: 7, Role: models.RoleInstructor}

	missingKey := validCreateRequest()
	delete(missingKey.AnswerKey, "q2")
	_, err := svc.Create(context.Background(), missingKey, instructor)
	require.ErrorIs(t, err, models.ErrInvalidRubric)

	extraKey := validCreateRequest()
	extraKey.AnswerKey["q3"] = "stray"
	_, err = svc.Create(context.Background(), extraKey, instructor)
	require.ErrorIs(t, err, models.ErrInvalidRubric)

	noName := validCreateRequest()
	noName.Name = ""
	_, err = svc.Create(context.Background(), noName, instructor)
	require.Error(t, err)
	require.NotErrorIs(t, err, models.ErrInvalidRubric)
}

func TestAssignmentServiceCreateSanitizesDescription(t *testing.T) {
	svc := newTestAssignmentService(newFakeAssignmentRepo())

	payload := validCreateRequest()
	payload.Description = `<img src=x onerror=alert(1)>Show all work.`
	created, err := svc.Create(context.Background(), payload, models.User{ID: 7, Role: models.RoleInstructor})
	require.NoError(t, err)
	require.Equal(t, "Show all work.", created.Description)
}

func TestAssignmentServiceGetHidesAnswerKeyFromStudents(t *testing.T) {
	repo := newFakeAssignmentRepo()
	svc := newTestAssignmentService(repo)

	created, err := svc.Create(context.Background(), validCreateRequest(), models.User{ID: 7, Role: models.RoleInstructor})
	require.NoError(t, err)

	student, err := svc.Get(context.Background(), created.ID, models.User{ID: 2, Role: models.RoleStudent})
	require.NoError(t, err)
	require.Empty(t, student.AnswerKey)
	require.Len(t, student.Rubric, 2)

	ta, err := svc.Get(context.Background(), created.ID, models.User{ID: 9, Role: models.RoleTA})
	require.NoError(t, err)
	require.Equal(t, "2x", ta.AnswerKey["q1"])
}

func TestAssignmentServiceGetNotFound(t *testing.T) {
	svc := newTestAssignmentService(newFakeAssignmentRepo())

	_, err := svc.Get(context.Background(), 42, models.User{ID: 2, Role: models.RoleStudent})
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestAssignmentServiceListScopesInstructors(t *testing.T) {
	repo := newFakeAssignmentRepo()
	svc := newTestAssignmentService(repo)

	_, err := svc.Create(context.Background(), validCreateRequest(), models.User{ID: 7, Role: models.RoleInstructor})
	require.NoError(t, err)

	other := validCreateRequest()
	other.Name = "Algebra HW1"
	_, err = svc.Create(context.Background(), other, models.User{ID: 8, Role: models.RoleInstructor})
	require.NoError(t, err)

	// Instructors see their own assignments, students see everything published.
	mine, err := svc.List(context.Background(), models.User{ID: 7, Role: models.RoleInstructor})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Calculus HW3", mine[0].Name)

	all, err := svc.List(context.Background(), models.User{ID: 2, Role: models.RoleStudent})
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, assignment := range all {
		require.Empty(t, assignment.AnswerKey)
	}
}

func TestAssignmentServiceUpdate(t *testing.T) {
	repo := newFakeAssignmentRepo()
	svc := newTestAssignmentService(repo)

	owner := models.User{ID: 7, Role: models.RoleInstructor}
	created, err := svc.Create(context.Background(), validCreateRequest(), owner)
	require.NoError(t, err)

	name := "Calculus HW3 (revised)"
	updated, err := svc.Update(context.Background(), created.ID, dto.AssignmentUpdateRequest{Name: &name}, owner)
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)

	// rubric swap recomputes max points
	updated, err = svc.Update(context.Background(), created.ID, dto.AssignmentUpdateRequest{
		Rubric: map[string]dto.RubricEntryPayload{
			"q1": {MaxPoints: 20, Criteria: "full proof"},
		},
		AnswerKey: map[string]string{"q1": "2x"},
	}, owner)
	require.NoError(t, err)
	require.Equal(t, 20, updated.MaxPoints)
	require.Len(t, updated.Rubric, 1)

	_, err = svc.Update(context.Background(), created.ID, dto.AssignmentUpdateRequest{Name: &name}, models.User{ID: 8, Role: models.RoleInstructor})
	require.ErrorIs(t, err, ErrAssignmentForbidden)
}

func TestAssignmentServiceUpdateRubricLockedAfterSubmissions(t *testing.T) {
	repo := newFakeAssignmentRepo()
	svc := newTestAssignmentService(repo)

	owner := models.User{ID: 7, Role: models.RoleInstructor}
	created, err := svc.Create(context.Background(), validCreateRequest(), owner)
	require.NoError(t, err)

	repo.submissionCount = 3

	_, err = svc.Update(context.Background(), created.ID, dto.AssignmentUpdateRequest{
		Rubric: map[string]dto.RubricEntryPayload{
			"q1": {MaxPoints: 20, Criteria: "full proof"},
		},
		AnswerKey: map[string]string{"q1": "2x"},
	}, owner)
	require.ErrorIs(t, err, ErrRubricLocked)

	// Metadata edits stay possible while the rubric is frozen.
	name := "Calculus HW3 (typo fix)"
	updated, err := svc.Update(context.Background(), created.ID, dto.AssignmentUpdateRequest{Name: &name}, owner)
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
}
