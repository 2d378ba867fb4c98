package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gradepilot/gradepilot-api/internal/dto"
	"github.com/gradepilot/gradepilot-api/internal/models"
	"github.com/gradepilot/gradepilot-api/internal/repository"
)

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionForbidden indicates the caller may not access the submission.
var ErrSubmissionForbidden = errors.New("forbidden")

// ErrDuplicateSubmission indicates the student already submitted to the assignment.
var ErrDuplicateSubmission = errors.New("submission already exists for this assignment")

// ErrInvalidTransition indicates an illegal submission status change. No state
// is mutated when it is returned.
var ErrInvalidTransition = errors.New("invalid submission status transition")

// ErrUnsupportedFileType indicates the uploaded file is not LaTeX or plain text.
var ErrUnsupportedFileType = errors.New("only .tex and .txt files are allowed")

// ErrFileTooLarge indicates the uploaded file exceeds the size limit.
var ErrFileTooLarge = errors.New("file exceeds the 2 MB limit")

// maxSubmissionBytes bounds how much of an uploaded document is stored and parsed.
const maxSubmissionBytes = 2 << 20

// GradingEnqueuer hands a submission id to the asynchronous grading queue.
type GradingEnqueuer interface {
	Enqueue(ctx context.Context, submissionID uint) error
}

// SubmissionService orchestrates submission intake and lifecycle operations.
type SubmissionService interface {
	Submit(ctx context.Context, payload dto.SubmissionCreateRequest, file *multipart.FileHeader, student models.User) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint, viewer models.User) (dto.SubmissionResponse, error)
	List(ctx context.Context, filter dto.SubmissionFilter, viewer models.User) ([]dto.SubmissionResponse, error)
	Regrade(ctx context.Context, id uint, actor models.User) (dto.SubmissionResponse, error)
	MarkReviewed(ctx context.Context, id uint, actor models.User) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	uploader    FileUploader
	enqueuer    GradingEnqueuer
	notifier    StatusNotifier
	logger      zerolog.Logger
}

// NewSubmissionService constructs a SubmissionService instance. The uploader
// may be nil when no file archive is configured.
func NewSubmissionService(subRepo repository.SubmissionRepository, assignmentRepo repository.AssignmentRepository, validate *validator.Validate, uploader FileUploader, enqueuer GradingEnqueuer, notifier StatusNotifier, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: subRepo,
		assignments: assignmentRepo,
		validator:   validate,
		uploader:    uploader,
		enqueuer:    enqueuer,
		notifier:    notifier,
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

func (s *submissionService) Submit(ctx context.Context, payload dto.SubmissionCreateRequest, file *multipart.FileHeader, student models.User) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if file == nil {
		return dto.SubmissionResponse{}, fmt.Errorf("submission file is required")
	}

	if _, err := s.assignments.GetByID(ctx, payload.AssignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	exists, err := s.submissions.ExistsForAssignmentAndStudent(ctx, payload.AssignmentID, student.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if exists {
		return dto.SubmissionResponse{}, ErrDuplicateSubmission
	}

	if err := validateSubmissionFile(file); err != nil {
		return dto.SubmissionResponse{}, err
	}

	content, err := readSubmissionContent(file)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	fileURL := ""
	if s.uploader != nil {
		reader, err := file.Open()
		if err != nil {
			return dto.SubmissionResponse{}, fmt.Errorf("failed to open file: %w", err)
		}
		fileURL, err = s.uploader.Upload(ctx, file.Filename, reader)
		reader.Close()
		if err != nil {
			return dto.SubmissionResponse{}, fmt.Errorf("failed to archive file: %w", err)
		}
	}

	submission := models.Submission{
		AssignmentID:     payload.AssignmentID,
		StudentID:        student.ID,
		OriginalFilename: file.Filename,
		FileURL:          fileURL,
		RawContent:       content,
		Status:           models.SubmissionStatusUploaded,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.enqueuer.Enqueue(ctx, submission.ID); err != nil {
		// The row stays in uploaded; a regrade or queue replay can pick it up.
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to enqueue grading job")
	}

	s.notifier.SubmissionStatusChanged(submission)

	created, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", created.ID).Uint("assignment_id", created.AssignmentID).Msg("submission created")

	return dto.NewSubmissionResponse(created), nil
}

func (s *submissionService) Get(ctx context.Context, id uint, viewer models.User) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !viewer.CanGrade() && submission.StudentID != viewer.ID {
		return dto.SubmissionResponse{}, ErrSubmissionForbidden
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter, viewer models.User) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.SubmissionFilter{
		AssignmentID: filter.AssignmentID,
	}

	if filter.Status != nil {
		status := models.SubmissionStatus(*filter.Status)
		repoFilter.Status = &status
	}

	if viewer.CanGrade() {
		repoFilter.StudentID = filter.StudentID
	} else {
		// Students only ever see their own submissions.
		studentID := viewer.ID
		repoFilter.StudentID = &studentID
	}

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

// Regrade re-runs the grading workflow from the parse step. Besides the
// error state this accepts uploaded and processing submissions, so one
// stranded by a crashed worker can be re-queued. Prior grades are discarded
// by the next commit.
func (s *submissionService) Regrade(ctx context.Context, id uint, actor models.User) (dto.SubmissionResponse, error) {
	if !actor.CanGrade() {
		return dto.SubmissionResponse{}, ErrSubmissionForbidden
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !submission.Status.CanRegrade() {
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %s -> processing", ErrInvalidTransition, submission.Status)
	}

	submission.Status = models.SubmissionStatusProcessing
	submission.ErrorMessage = ""
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.enqueuer.Enqueue(ctx, submission.ID); err != nil {
		return dto.SubmissionResponse{}, fmt.Errorf("failed to enqueue regrade: %w", err)
	}

	s.notifier.SubmissionStatusChanged(submission)
	s.logger.Info().Uint("submission_id", submission.ID).Uint("actor_id", actor.ID).Msg("regrade triggered")

	return dto.NewSubmissionResponse(submission), nil
}

// MarkReviewed is the explicit graded -> reviewed sign-off.
func (s *submissionService) MarkReviewed(ctx context.Context, id uint, actor models.User) (dto.SubmissionResponse, error) {
	if !actor.CanGrade() {
		return dto.SubmissionResponse{}, ErrSubmissionForbidden
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !submission.Status.CanTransition(models.SubmissionStatusReviewed) {
		return dto.SubmissionResponse{}, fmt.Errorf("%w: %s -> reviewed", ErrInvalidTransition, submission.Status)
	}

	submission.Status = models.SubmissionStatusReviewed
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.notifier.SubmissionStatusChanged(submission)
	s.logger.Info().Uint("submission_id", submission.ID).Uint("actor_id", actor.ID).Msg("submission marked reviewed")

	return dto.NewSubmissionResponse(submission), nil
}

func validateSubmissionFile(file *multipart.FileHeader) error {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".tex" && ext != ".txt" {
		return ErrUnsupportedFileType
	}

	if file.Size > maxSubmissionBytes {
		return ErrFileTooLarge
	}

	reader, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	mime, err := mimetype.DetectReader(reader)
	if err != nil {
		return fmt.Errorf("failed to detect file type: %w", err)
	}

	// LaTeX sources detect as plain text.
	if !strings.HasPrefix(mime.String(), "text/") {
		return fmt.Errorf("%w: got %s", ErrUnsupportedFileType, mime.String())
	}

	return nil
}

func readSubmissionContent(file *multipart.FileHeader) (string, error) {
	reader, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(io.LimitReader(reader, maxSubmissionBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	return string(content), nil
}
