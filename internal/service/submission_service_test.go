package service

import (
	"bytes"
	"context"
	"mime/multipart"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/gradepilot/gradepilot-api/internal/dto"
	"github.com/gradepilot/gradepilot-api/internal/models"
)

func newTestFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func submissionFixture(t *testing.T) (*fakeSubmissionRepo, *fakeAssignmentRepo, *stubEnqueuer, *recordingNotifier, SubmissionService) {
	t.Helper()

	assignments := newFakeAssignmentRepo()
	assignments.put(models.Assignment{
		ID:           1,
		Name:         "Real Analysis HW2",
		InstructorID: 7,
		Rubric: datatypes.NewJSONType(models.Rubric{
			"q1": {MaxPoints: 10, Criteria: "epsilon-delta argument"},
		}),
		MaxPoints: 10,
	})

	submissions := newFakeSubmissionRepo()
	enqueuer := &stubEnqueuer{}
	notifier := &recordingNotifier{}
	svc := NewSubmissionService(submissions, assignments, validator.New(validator.WithRequiredStructEnabled()), nil, enqueuer, notifier, testLogger())

	return submissions, assignments, enqueuer, notifier, svc
}

func studentUser() models.User {
	return models.User{ID: 2, Role: models.RoleStudent}
}

func TestSubmissionServiceSubmit(t *testing.T) {
	submissions, _, enqueuer, notifier, svc := submissionFixture(t)

	content := []byte("\\documentclass{article}\\begin{document}\\section{Q1} proof \\end{document}")
	file := newTestFileHeader(t, "hw2.tex", content)

	resp, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{AssignmentID: 1}, file, studentUser())
	require.NoError(t, err)
	require.Equal(t, uint(1), resp.AssignmentID)
	require.Equal(t, uint(2), resp.StudentID)
	require.Equal(t, "hw2.tex", resp.OriginalFilename)
	require.Equal(t, string(models.SubmissionStatusUploaded), resp.Status)

	stored, err := submissions.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Equal(t, string(content), stored.RawContent)

	require.Equal(t, []uint{resp.ID}, enqueuer.queued())
	require.Equal(t, []models.SubmissionStatus{models.SubmissionStatusUploaded}, notifier.seen())
}

func TestSubmissionServiceSubmitDuplicate(t *testing.T) {
	_, _, _, _, svc := submissionFixture(t)

	file := newTestFileHeader(t, "hw2.tex", []byte("\\section{Q1} first attempt"))
	_, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{AssignmentID: 1}, file, studentUser())
	require.NoError(t, err)

	again := newTestFileHeader(t, "hw2-v2.tex", []byte("\\section{Q1} second attempt"))
	_, err = svc.Submit(context.Background(), dto.SubmissionCreateRequest{AssignmentID: 1}, again, studentUser())
	require.ErrorIs(t, err, ErrDuplicateSubmission)
}

func TestSubmissionServiceSubmitRejectsBadFiles(t *testing.T) {
	_, _, enqueuer, _, svc := submissionFixture(t)

	pdf := newTestFileHeader(t, "hw2.pdf", []byte("%PDF-1.4"))
	_, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{AssignmentID: 1}, pdf, studentUser())
	require.ErrorIs(t, err, ErrUnsupportedFileType)

	// Binary content behind a .tex name is rejected too.
	disguised := newTestFileHeader(t, "hw2.tex", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0})
	_, err = svc.Submit(context.Background(), dto.SubmissionCreateRequest{AssignmentID: 1}, disguised, studentUser())
	require.ErrorIs(t, err, ErrUnsupportedFileType)

	require.Empty(t, enqueuer.queued())
}

func TestSubmissionServiceSubmitUnknownAssignment(t *testing.T) {
	_, _, _, _, svc := submissionFixture(t)

	file := newTestFileHeader(t, "hw2.tex", []byte("\\section{Q1} proof"))
	_, err := svc.Submit(context.Background(), dto.SubmissionCreateRequest{AssignmentID: 42}, file, studentUser())
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestSubmissionServiceGetVisibility(t *testing.T) {
	submissions, _, _, _, svc := submissionFixture(t)
	submissions.put(models.Submission{
		ID:           1,
		AssignmentID: 1,
		StudentID:    2,
		Status:       models.SubmissionStatusUploaded,
	})

	_, err := svc.Get(context.Background(), 1, studentUser())
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 1, models.User{ID: 3, Role: models.RoleStudent})
	require.ErrorIs(t, err, ErrSubmissionForbidden)

	_, err = svc.Get(context.Background(), 1, models.User{ID: 9, Role: models.RoleTA})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), 99, studentUser())
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestSubmissionServiceListScopesStudents(t *testing.T) {
	submissions, _, _, _, svc := submissionFixture(t)
	submissions.put(models.Submission{ID: 1, AssignmentID: 1, StudentID: 2, Status: models.SubmissionStatusUploaded})
	submissions.put(models.Submission{ID: 2, AssignmentID: 1, StudentID: 3, Status: models.SubmissionStatusGraded})

	mine, err := svc.List(context.Background(), dto.SubmissionFilter{}, studentUser())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, uint(2), mine[0].StudentID)

	// A student's explicit filter for someone else is ignored.
	other := uint(3)
	mine, err = svc.List(context.Background(), dto.SubmissionFilter{StudentID: &other}, studentUser())
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, uint(2), mine[0].StudentID)

	all, err := svc.List(context.Background(), dto.SubmissionFilter{}, models.User{ID: 7, Role: models.RoleInstructor})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestSubmissionServiceRegrade(t *testing.T) {
	submissions, _, enqueuer, notifier, svc := submissionFixture(t)
	submissions.put(models.Submission{
		ID:           1,
		AssignmentID: 1,
		StudentID:    2,
		Status:       models.SubmissionStatusError,
		ErrorMessage: "grading oracle failure",
	})

	resp, err := svc.Regrade(context.Background(), 1, models.User{ID: 9, Role: models.RoleTA})
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusProcessing), resp.Status)
	require.Empty(t, resp.ErrorMessage)
	require.Equal(t, []uint{1}, enqueuer.queued())
	require.Equal(t, []models.SubmissionStatus{models.SubmissionStatusProcessing}, notifier.seen())
}

func TestSubmissionServiceRegradeRecoversStalledSubmission(t *testing.T) {
	// A worker crash can leave a submission in processing (or uploaded) with
	// the queue job consumed and no grades committed. Regrade must be able to
	// re-queue it rather than reject the transition.
	submissions, _, enqueuer, notifier, svc := submissionFixture(t)
	submissions.put(models.Submission{ID: 1, AssignmentID: 1, StudentID: 2, Status: models.SubmissionStatusProcessing})
	submissions.put(models.Submission{ID: 2, AssignmentID: 1, StudentID: 3, Status: models.SubmissionStatusUploaded})

	grader := models.User{ID: 9, Role: models.RoleTA}

	resp, err := svc.Regrade(context.Background(), 1, grader)
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusProcessing), resp.Status)

	_, err = svc.Regrade(context.Background(), 2, grader)
	require.NoError(t, err)

	require.Equal(t, []uint{1, 2}, enqueuer.queued())
	require.Len(t, notifier.seen(), 2)
}

func TestSubmissionServiceRegradeInvalidStates(t *testing.T) {
	submissions, _, _, _, svc := submissionFixture(t)
	submissions.put(models.Submission{ID: 1, AssignmentID: 1, StudentID: 2, Status: models.SubmissionStatusGraded})
	submissions.put(models.Submission{ID: 2, AssignmentID: 1, StudentID: 3, Status: models.SubmissionStatusReviewed})

	grader := models.User{ID: 9, Role: models.RoleTA}

	_, err := svc.Regrade(context.Background(), 1, grader)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Regrade(context.Background(), 2, grader)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Regrade(context.Background(), 1, studentUser())
	require.ErrorIs(t, err, ErrSubmissionForbidden)
}

func TestSubmissionServiceMarkReviewed(t *testing.T) {
	submissions, _, _, _, svc := submissionFixture(t)
	total := 10
	submissions.put(models.Submission{ID: 1, AssignmentID: 1, StudentID: 2, Status: models.SubmissionStatusGraded, TotalScore: &total})
	submissions.put(models.Submission{ID: 2, AssignmentID: 1, StudentID: 3, Status: models.SubmissionStatusProcessing})

	grader := models.User{ID: 7, Role: models.RoleInstructor}

	resp, err := svc.MarkReviewed(context.Background(), 1, grader)
	require.NoError(t, err)
	require.Equal(t, string(models.SubmissionStatusReviewed), resp.Status)

	// reviewed is terminal
	_, err = svc.MarkReviewed(context.Background(), 1, grader)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// only graded submissions can be signed off
	_, err = svc.MarkReviewed(context.Background(), 2, grader)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.MarkReviewed(context.Background(), 1, studentUser())
	require.ErrorIs(t, err, ErrSubmissionForbidden)
}
