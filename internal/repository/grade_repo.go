package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/gradepilot/gradepilot-api/internal/models"
)

// GradeRepository defines data operations for per-question grades.
type GradeRepository interface {
	GetByID(ctx context.Context, id uint) (models.Grade, error)
	ListBySubmission(ctx context.Context, submissionID uint) ([]models.Grade, error)
	ApplyReview(ctx context.Context, grade *models.Grade, event *models.GradeReviewEvent) error
	ListReviewEvents(ctx context.Context, gradeID uint) ([]models.GradeReviewEvent, error)
	CountHumanReviewedByAssignment(ctx context.Context, assignmentID uint) (int64, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates the repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) GetByID(ctx context.Context, id uint) (models.Grade, error) {
	var grade models.Grade
	if err := r.db.WithContext(ctx).
		Preload("Submission").
		Preload("Submission.Assignment").
		First(&grade, id).Error; err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func (r *gradeRepository) ListBySubmission(ctx context.Context, submissionID uint) ([]models.Grade, error) {
	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("question_no ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}

	return grades, nil
}

// ApplyReview persists a human review edit, the audit event and the owning
// submission's recomputed total score in a single transaction.
func (r *gradeRepository) ApplyReview(ctx context.Context, grade *models.Grade, event *models.GradeReviewEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(grade).Error; err != nil {
			return err
		}

		if err := tx.Create(event).Error; err != nil {
			return err
		}

		var total int64
		if err := tx.Model(&models.Grade{}).
			Where("submission_id = ?", grade.SubmissionID).
			Select("COALESCE(SUM(final_score), 0)").
			Scan(&total).Error; err != nil {
			return err
		}

		return tx.Model(&models.Submission{}).
			Where("id = ?", grade.SubmissionID).
			Update("total_score", int(total)).Error
	})
}

// CountHumanReviewedByAssignment counts grades under an assignment that a
// human has touched, used for instructor dashboard stats.
func (r *gradeRepository) CountHumanReviewedByAssignment(ctx context.Context, assignmentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Grade{}).
		Joins("JOIN submissions ON submissions.id = grades.submission_id").
		Where("submissions.assignment_id = ? AND grades.human_reviewed = ?", assignmentID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *gradeRepository) ListReviewEvents(ctx context.Context, gradeID uint) ([]models.GradeReviewEvent, error) {
	var events []models.GradeReviewEvent
	if err := r.db.WithContext(ctx).
		Where("grade_id = ?", gradeID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}
