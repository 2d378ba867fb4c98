package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradepilot/gradepilot-api/internal/models"
	"github.com/gradepilot/gradepilot-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// fakeSubmissionRepo is an in-memory SubmissionRepository shared by the
// service tests.
type fakeSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[uint]models.Submission
	grades      map[uint][]models.Grade
	nextID      uint
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		submissions: make(map[uint]models.Submission),
		grades:      make(map[uint][]models.Grade),
		nextID:      1,
	}
}

func (f *fakeSubmissionRepo) put(submission models.Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if submission.ID == 0 {
		submission.ID = f.nextID
		f.nextID++
	} else if submission.ID >= f.nextID {
		f.nextID = submission.ID + 1
	}
	f.submissions[submission.ID] = submission
}

func (f *fakeSubmissionRepo) List(_ context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	results := make([]models.Submission, 0, len(f.submissions))
	for _, submission := range f.submissions {
		if filter.AssignmentID != nil && submission.AssignmentID != *filter.AssignmentID {
			continue
		}
		if filter.StudentID != nil && submission.StudentID != *filter.StudentID {
			continue
		}
		if filter.Status != nil && submission.Status != *filter.Status {
			continue
		}
		results = append(results, submission)
	}
	return results, nil
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	submission, ok := f.submissions[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (f *fakeSubmissionRepo) ExistsForAssignmentAndStudent(_ context.Context, assignmentID, studentID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, submission := range f.submissions {
		if submission.AssignmentID == assignmentID && submission.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	submission.ID = f.nextID
	f.nextID++
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) Update(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.submissions[submission.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.submissions[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) CommitGrades(_ context.Context, submission *models.Submission, grades []models.Grade, totalScore int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range grades {
		grades[i].SubmissionID = submission.ID
	}
	f.grades[submission.ID] = grades

	submission.TotalScore = &totalScore
	submission.Status = models.SubmissionStatusGraded
	submission.ErrorMessage = ""
	f.submissions[submission.ID] = *submission
	return nil
}

// fakeAssignmentRepo is an in-memory AssignmentRepository.
type fakeAssignmentRepo struct {
	assignments     map[uint]models.Assignment
	nextID          uint
	submissionCount int64
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{
		assignments: make(map[uint]models.Assignment),
		nextID:      1,
	}
}

func (f *fakeAssignmentRepo) put(assignment models.Assignment) {
	if assignment.ID == 0 {
		assignment.ID = f.nextID
		f.nextID++
	} else if assignment.ID >= f.nextID {
		f.nextID = assignment.ID + 1
	}
	f.assignments[assignment.ID] = assignment
}

func (f *fakeAssignmentRepo) List(context.Context) ([]models.Assignment, error) {
	results := make([]models.Assignment, 0, len(f.assignments))
	for _, assignment := range f.assignments {
		results = append(results, assignment)
	}
	return results, nil
}

func (f *fakeAssignmentRepo) ListByInstructor(_ context.Context, instructorID uint) ([]models.Assignment, error) {
	results := make([]models.Assignment, 0)
	for _, assignment := range f.assignments {
		if assignment.InstructorID == instructorID {
			results = append(results, assignment)
		}
	}
	return results, nil
}

func (f *fakeAssignmentRepo) GetByID(_ context.Context, id uint) (models.Assignment, error) {
	assignment, ok := f.assignments[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (f *fakeAssignmentRepo) Create(_ context.Context, assignment *models.Assignment) error {
	assignment.ID = f.nextID
	f.nextID++
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) Update(_ context.Context, assignment *models.Assignment) error {
	if _, ok := f.assignments[assignment.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.assignments[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) CountSubmissions(context.Context, uint) (int64, error) {
	return f.submissionCount, nil
}

// recordingNotifier captures published status events.
type recordingNotifier struct {
	mu       sync.Mutex
	statuses []models.SubmissionStatus
}

func (n *recordingNotifier) SubmissionStatusChanged(submission models.Submission) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, submission.Status)
}

func (n *recordingNotifier) seen() []models.SubmissionStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.SubmissionStatus(nil), n.statuses...)
}

// noopLocker always grants the lock.
type noopLocker struct{}

func (noopLocker) Acquire(context.Context, uint) (bool, error) { return true, nil }
func (noopLocker) Release(context.Context, uint)               {}

// deniedLocker simulates another worker holding the lock.
type deniedLocker struct{}

func (deniedLocker) Acquire(context.Context, uint) (bool, error) { return false, nil }
func (deniedLocker) Release(context.Context, uint)               {}

// stubEnqueuer records queued submission ids.
type stubEnqueuer struct {
	mu  sync.Mutex
	ids []uint
}

func (s *stubEnqueuer) Enqueue(_ context.Context, submissionID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, submissionID)
	return nil
}

func (s *stubEnqueuer) queued() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint(nil), s.ids...)
}
