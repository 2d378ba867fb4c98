package service

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/gradepilot/gradepilot-api/internal/models"
)

// StatusNotifier publishes submission lifecycle events so dashboards and
// external consumers can react without polling.
type StatusNotifier interface {
	SubmissionStatusChanged(submission models.Submission)
}

type statusEvent struct {
	SubmissionID uint      `json:"submission_id"`
	AssignmentID uint      `json:"assignment_id"`
	StudentID    uint      `json:"student_id"`
	Status       string    `json:"status"`
	TotalScore   *int      `json:"total_score,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	SentAt       time.Time `json:"sent_at"`
}

type natsNotifier struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewStatusNotifier builds a NATS-backed notifier. A nil connection yields a
// notifier that silently drops events, so callers never need to nil-check.
func NewStatusNotifier(conn *nats.Conn, subject string, logger zerolog.Logger) StatusNotifier {
	if subject == "" {
		subject = "gradepilot.submissions.status"
	}

	return &natsNotifier{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "status_notifier").Logger(),
		now:     time.Now,
	}
}

func (n *natsNotifier) SubmissionStatusChanged(submission models.Submission) {
	if n.conn == nil {
		return
	}

	event := statusEvent{
		SubmissionID: submission.ID,
		AssignmentID: submission.AssignmentID,
		StudentID:    submission.StudentID,
		Status:       string(submission.Status),
		TotalScore:   submission.TotalScore,
		ErrorMessage: submission.ErrorMessage,
		SentAt:       n.now(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to encode status event")
		return
	}

	if err := n.conn.Publish(n.subject, payload); err != nil {
		n.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish status event")
	}
}
