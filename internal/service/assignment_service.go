package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gradepilot/gradepilot-api/internal/dto"
	"github.com/gradepilot/gradepilot-api/internal/models"
	"github.com/gradepilot/gradepilot-api/internal/repository"
)

// ErrAssignmentNotFound indicates the requested assignment does not exist.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrAssignmentForbidden indicates the caller may not modify the assignment.
var ErrAssignmentForbidden = errors.New("forbidden")

// ErrRubricLocked indicates the rubric can no longer change because
// submissions already exist against it.
var ErrRubricLocked = errors.New("rubric is locked: assignment already has submissions")

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// AssignmentService exposes assignment domain use cases.
type AssignmentService interface {
	List(ctx context.Context, viewer models.User) ([]dto.AssignmentResponse, error)
	Get(ctx context.Context, id uint, viewer models.User) (dto.AssignmentResponse, error)
	Create(ctx context.Context, payload dto.AssignmentCreateRequest, instructor models.User) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor models.User) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	repo      repository.AssignmentRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(repo repository.AssignmentRepository, validate *validator.Validate, logger zerolog.Logger) AssignmentService {
	return &assignmentService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "assignment_service").Logger(),
	}
}

func (s *assignmentService) List(ctx context.Context, viewer models.User) ([]dto.AssignmentResponse, error) {
	var (
		assignments []models.Assignment
		err         error
	)

	if viewer.Role == models.RoleInstructor {
		assignments, err = s.repo.ListByInstructor(ctx, viewer.ID)
	} else {
		assignments, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	return dto.NewAssignmentResponseSlice(assignments, viewer.CanGrade()), nil
}

func (s *assignmentService) Get(ctx context.Context, id uint, viewer models.User) (dto.AssignmentResponse, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}

		return dto.AssignmentResponse{}, err
	}

	// Students never see the answer key.
	return dto.NewAssignmentResponse(assignment, viewer.CanGrade()), nil
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest, instructor models.User) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	rubric := dto.ToRubric(payload.Rubric)
	answerKey := models.AnswerKey(payload.AnswerKey)

	if err := models.ValidateRubric(rubric, answerKey); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment := models.Assignment{
		Name:         strings.TrimSpace(payload.Name),
		Description:  s.sanitizer.Sanitize(payload.Description),
		InstructorID: instructor.ID,
		Rubric:       datatypes.NewJSONType(rubric),
		AnswerKey:    datatypes.NewJSONType(answerKey),
		MaxPoints:    rubric.TotalPoints(),
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Int("max_points", assignment.MaxPoints).
		Int("questions", len(rubric)).
		Msg("assignment created")

	return dto.NewAssignmentResponse(assignment, true), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actor models.User) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}

		return dto.AssignmentResponse{}, err
	}

	if assignment.InstructorID != actor.ID {
		return dto.AssignmentResponse{}, ErrAssignmentForbidden
	}

	if payload.Name != nil {
		assignment.Name = strings.TrimSpace(*payload.Name)
	}

	if payload.Description != nil {
		assignment.Description = s.sanitizer.Sanitize(*payload.Description)
	}

	if payload.Rubric != nil || payload.AnswerKey != nil {
		// Rubric edits concurrent with grading are undefined; once any
		// submission exists the rubric is frozen.
		count, err := s.repo.CountSubmissions(ctx, assignment.ID)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		if count > 0 {
			return dto.AssignmentResponse{}, ErrRubricLocked
		}

		rubric := assignment.Rubric.Data()
		answerKey := assignment.AnswerKey.Data()

		if payload.Rubric != nil {
			rubric = dto.ToRubric(payload.Rubric)
		}
		if payload.AnswerKey != nil {
			answerKey = models.AnswerKey(payload.AnswerKey)
		}

		if err := models.ValidateRubric(rubric, answerKey); err != nil {
			return dto.AssignmentResponse{}, err
		}

		assignment.Rubric = datatypes.NewJSONType(rubric)
		assignment.AnswerKey = datatypes.NewJSONType(answerKey)
		assignment.MaxPoints = rubric.TotalPoints()
	}

	if err := s.repo.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment updated")

	return dto.NewAssignmentResponse(assignment, true), nil
}
