package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	generativeAI "github.com/FACorreiaa/go-genai-sdk/lib"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/wanderplan/internal/app/models"
	"github.com/FACorreiaa/wanderplan/internal/app/observability/metrics"
)

// Oracle is the narrow LLM boundary the adapter depends on. The production
// implementation wraps the Gemini client; tests fake it.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

var _ Oracle = (*GeminiOracle)(nil)

// GeminiOracle calls the Gemini API through the shared genai SDK client.
// The configuration is immutable after construction.
type GeminiOracle struct {
	logger   *zap.Logger
	aiClient *generativeAI.LLMChatClient
	model    string
	timeout  time.Duration
}

// NewGeminiOracle builds the production oracle. timeout bounds every single
// call independently of the caller's deadline; zero means 30s.
func NewGeminiOracle(apiKey, model string, timeout time.Duration, logger *zap.Logger) (*GeminiOracle, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	aiClient, err := generativeAI.NewLLMChatClient(context.Background(), apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI client: %w", err)
	}
	return &GeminiOracle{
		logger:   logger,
		aiClient: aiClient,
		model:    model,
		timeout:  timeout,
	}, nil
}

// Generate runs one prompt and returns the response text. Every failure is
// wrapped in models.ErrOracle so the adapter can fall back uniformly.
func (o *GeminiOracle) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	m := metrics.Get()
	m.OracleRequestsTotal.Add(ctx, 1)
	start := time.Now()

	response, err := o.aiClient.GenerateResponse(ctx, prompt, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.7),
	})
	m.OracleLatencySeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		m.OracleFailuresTotal.Add(ctx, 1)
		o.logger.Error("LLM request failed", zap.String("model", o.model), zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrOracle, err)
	}
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		m.OracleFailuresTotal.Add(ctx, 1)
		return "", fmt.Errorf("%w: empty response", models.ErrOracle)
	}

	var text strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			text.WriteString(string(part.Text))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("%w: response carried no text", models.ErrOracle)
	}
	return text.String(), nil
}

// Model returns the configured model id, surfaced in recommendation_info.
func (o *GeminiOracle) Model() string {
	return o.model
}
