package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gradepilot/gradepilot-api/internal/models"
	"github.com/gradepilot/gradepilot-api/internal/repository"
	"github.com/gradepilot/gradepilot-api/pkg/ai"
	"github.com/gradepilot/gradepilot-api/pkg/latex"
)

// SubmissionLocker serializes grading attempts per submission id.
type SubmissionLocker interface {
	Acquire(ctx context.Context, submissionID uint) (bool, error)
	Release(ctx context.Context, submissionID uint)
}

// GradingConfig tunes the grading workflow.
type GradingConfig struct {
	// OracleRetries is the number of additional attempts after a failed
	// oracle call for a question. Minimum 1.
	OracleRetries int
	// Concurrency bounds how many oracle calls run at once for one submission.
	Concurrency int
	// RetryBackoff is the pause between oracle attempts for a question.
	RetryBackoff time.Duration
}

// GradingService runs the asynchronous grading workflow for submissions.
// Grade is the queue entry point and is safe to invoke multiple times for the
// same submission.
type GradingService interface {
	Grade(ctx context.Context, submissionID uint) error
}

type gradingService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	grader      ai.Grader
	locker      SubmissionLocker
	notifier    StatusNotifier
	sanitizer   *bluemonday.Policy
	config      GradingConfig
	tracer      trace.Tracer
	logger      zerolog.Logger
}

// NewGradingService constructs the grading workflow service.
func NewGradingService(subRepo repository.SubmissionRepository, assignmentRepo repository.AssignmentRepository, grader ai.Grader, locker SubmissionLocker, notifier StatusNotifier, cfg GradingConfig, logger zerolog.Logger) GradingService {
	if cfg.OracleRetries < 1 {
		cfg.OracleRetries = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}

	return &gradingService{
		submissions: subRepo,
		assignments: assignmentRepo,
		grader:      grader,
		locker:      locker,
		notifier:    notifier,
		sanitizer:   bluemonday.StrictPolicy(),
		config:      cfg,
		tracer:      otel.Tracer("github.com/gradepilot/gradepilot-api/internal/service/grading"),
		logger:      logger.With().Str("component", "grading_service").Logger(),
	}
}

// Grade parses the submission, fans out one oracle call per rubric question,
// and commits all grades plus the total score atomically. Any question's
// final oracle failure sends the submission to error with no grade rows.
func (s *gradingService) Grade(parent context.Context, submissionID uint) error {
	ctx, span := s.tracer.Start(parent, "grading.run", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
	))
	defer span.End()

	acquired, err := s.locker.Acquire(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !acquired {
		s.logger.Info().Uint("submission_id", submissionID).Msg("submission already being graded, skipping")
		span.SetAttributes(attribute.Bool("grading.lock_contended", true))
		return nil
	}
	defer s.locker.Release(ctx, submissionID)

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrSubmissionNotFound, submissionID)
		}
		return err
	}

	// Idempotent: a submission that already carries committed grades is left alone.
	if submission.IsGraded() {
		s.logger.Info().Uint("submission_id", submissionID).Str("status", string(submission.Status)).Msg("submission already graded, skipping")
		span.SetAttributes(attribute.Bool("grading.idempotent", true))
		return nil
	}

	if submission.Status == models.SubmissionStatusUploaded {
		submission.Status = models.SubmissionStatusProcessing
		if err := s.submissions.Update(ctx, &submission); err != nil {
			return err
		}
		s.notifier.SubmissionStatusChanged(submission)
	}

	if submission.Status != models.SubmissionStatusProcessing {
		return fmt.Errorf("%w: cannot grade submission in status %s", ErrInvalidTransition, submission.Status)
	}

	assignment, err := s.assignments.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return s.fail(ctx, &submission, fmt.Errorf("load assignment: %w", err))
	}

	rubric := assignment.Rubric.Data()
	answerKey := assignment.AnswerKey.Data()

	// Parsing never fails grading; at worst every answer is empty.
	answers := latex.ParseForRubric(submission.RawContent, rubric.QuestionIDs())
	submission.ParsedAnswers = datatypes.NewJSONType(models.ParsedAnswers(answers))
	if err := s.submissions.Update(ctx, &submission); err != nil {
		return err
	}

	results, err := s.scoreAll(ctx, rubric, answerKey, answers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle_failed")
		return s.fail(ctx, &submission, err)
	}

	grades := make([]models.Grade, 0, len(results))
	totalScore := 0
	for _, questionID := range sortedQuestionIDs(rubric) {
		result := results[questionID]
		feedback := s.sanitizer.Sanitize(result.Feedback)
		grades = append(grades, models.Grade{
			QuestionNo:        questionID,
			AIScore:           result.Score,
			AIFeedback:        feedback,
			AISatisfiesRubric: result.SatisfiesRubric,
			FinalScore:        result.Score,
			FinalFeedback:     feedback,
			HumanReviewed:     false,
		})
		totalScore += result.Score
	}

	if err := s.submissions.CommitGrades(ctx, &submission, grades, totalScore); err != nil {
		return s.fail(ctx, &submission, fmt.Errorf("commit grades: %w", err))
	}

	s.notifier.SubmissionStatusChanged(submission)

	span.SetAttributes(
		attribute.Int("grading.total_score", totalScore),
		attribute.Int("grading.questions", len(grades)),
	)

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Int("total_score", totalScore).
		Int("questions", len(grades)).
		Msg("submission graded")

	return nil
}

// scoreAll fans out one oracle call per rubric question and joins on all of
// them. A question that exhausts its retries cancels the remaining calls and
// discards every partial result, honoring the all-or-nothing commit rule.
func (s *gradingService) scoreAll(ctx context.Context, rubric models.Rubric, answerKey models.AnswerKey, answers map[string]string) (map[string]ai.GradingResult, error) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.config.Concurrency)

	var mu sync.Mutex
	results := make(map[string]ai.GradingResult, len(rubric))

	for questionID, entry := range rubric {
		questionID, entry := questionID, entry
		group.Go(func() error {
			input := ai.GradingInput{
				QuestionID:     questionID,
				QuestionText:   fmt.Sprintf("Question %s", questionID),
				ExpectedAnswer: answerKey[questionID],
				Criteria:       entry.Criteria,
				StudentAnswer:  answers[questionID],
				MaxPoints:      entry.MaxPoints,
			}

			result, err := s.scoreWithRetry(groupCtx, input)
			if err != nil {
				return fmt.Errorf("question %s: %w", questionID, err)
			}

			mu.Lock()
			results[questionID] = result
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (s *gradingService) scoreWithRetry(ctx context.Context, input ai.GradingInput) (ai.GradingResult, error) {
	attempts := 1 + s.config.OracleRetries

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := s.grader.Grade(ctx, input)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !errors.Is(err, ai.ErrOracle) {
			// Context cancellation and other non-oracle failures are not retried.
			return ai.GradingResult{}, err
		}

		s.logger.Warn().
			Err(err).
			Str("question_id", input.QuestionID).
			Int("attempt", attempt).
			Msg("oracle call failed")

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ai.GradingResult{}, ctx.Err()
			case <-time.After(s.config.RetryBackoff):
			}
		}
	}

	return ai.GradingResult{}, lastErr
}

// fail moves the submission to error with a stored message. The original
// workflow error is returned so the worker records the job as failed.
func (s *gradingService) fail(ctx context.Context, submission *models.Submission, cause error) error {
	submission.Status = models.SubmissionStatusError
	submission.ErrorMessage = cause.Error()
	submission.TotalScore = nil

	if err := s.submissions.Update(ctx, submission); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to record grading error")
		return errors.Join(cause, err)
	}

	s.notifier.SubmissionStatusChanged(*submission)
	s.logger.Error().Err(cause).Uint("submission_id", submission.ID).Msg("grading failed")

	return cause
}

func sortedQuestionIDs(rubric models.Rubric) []string {
	ids := rubric.QuestionIDs()
	sort.Strings(ids)
	return ids
}
