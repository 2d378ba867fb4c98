package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	oracleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gradepilot",
		Subsystem: "oracle",
		Name:      "grading_duration_seconds",
		Help:      "Duration of oracle grading requests",
	}, []string{"model"})

	oracleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradepilot",
		Subsystem: "oracle",
		Name:      "grading_failures_total",
		Help:      "Number of oracle grading failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGrader implements Grader against the OpenAI chat completion API.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a new grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	tracer := otel.Tracer("github.com/gradepilot/gradepilot-api/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIGrader{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Grade sends the grading request to OpenAI and parses the response. The
// returned score is clamped to [0, input.MaxPoints]; any transport or parse
// failure is reported as an ErrOracle so callers can apply their retry bound.
func (g *OpenAIGrader) Grade(parent context.Context, input GradingInput) (GradingResult, error) {
	ctx, span := g.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.String("question_id", input.QuestionID),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: graderSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildGradingPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	oracleDuration.WithLabelValues(g.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		oracleFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradingResult{}, fmt.Errorf("%w: openai grade: %v", ErrOracle, err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: no choices returned from openai", ErrOracle)
		oracleFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradingResult{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := parseGradingResponse(content, input.MaxPoints)
	if err != nil {
		oracleFailures.WithLabelValues(g.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return GradingResult{}, err
	}

	return result, nil
}

func graderSystemPrompt() string {
	return "You are an expert teaching assistant grading student homework fairly and consistently. Grade strictly according " +
		"to the provided rubric and answer key. Respond with a JSON object containing score (integer), feedback, reasoning " +
		"and satisfies_rubric (boolean)."
}

func buildGradingPrompt(input GradingInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(input.QuestionText)
	builder.WriteString("\n\n## Answer Key\n")
	builder.WriteString(input.ExpectedAnswer)
	builder.WriteString("\n\n## Student Answer\n")
	if strings.TrimSpace(input.StudentAnswer) == "" {
		builder.WriteString("(no answer provided)")
	} else {
		builder.WriteString(input.StudentAnswer)
	}
	builder.WriteString("\n\n## Grading Criteria\n")
	if input.Criteria == "" {
		builder.WriteString("Grade based on correctness and completeness.")
	} else {
		builder.WriteString(input.Criteria)
	}
	builder.WriteString(fmt.Sprintf("\n\n## Maximum Points\n%d", input.MaxPoints))
	builder.WriteString(fmt.Sprintf("\n\nScore must be an integer from 0 to %d. Return JSON.", input.MaxPoints))
	return builder.String()
}

func parseGradingResponse(content string, maxPoints int) (GradingResult, error) {
	var data GradingResult
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return GradingResult{}, fmt.Errorf("%w: parse grading json: %v", ErrOracle, err)
	}

	if data.Score < 0 {
		data.Score = 0
	}
	if data.Score > maxPoints {
		data.Score = maxPoints
	}

	return data, nil
}
