package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pdf-chat-rag/internal/embedding"

	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// ErrGeneration is returned when the completion endpoint fails or times out
var ErrGeneration = errors.New("generation error")

// Config holds the Ollama completion settings
type Config struct {
	Host        string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// OllamaLLM handles interactions with the Ollama LLM API
type OllamaLLM struct {
	Client      *api.Client
	Model       string
	Timeout     time.Duration
	Temperature float64
	logger      *zap.Logger
}

// NewOllamaLLM creates a new Ollama LLM client
func NewOllamaLLM(cfg Config, logger *zap.Logger) (*OllamaLLM, error) {
	hostURL, err := embedding.ResolveHost(cfg.Host)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		return nil, errors.New("completion model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OllamaLLM{
		Client:      api.NewClient(hostURL, http.DefaultClient),
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		Temperature: cfg.Temperature,
		logger:      logger,
	}, nil
}

// Generate sends prompt to the model and returns the full completion text.
// The stream is collected before returning; callers never see partial output.
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	req := api.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		Options: map[string]any{
			"temperature": o.Temperature,
		},
	}

	// Create a context with timeout
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	start := time.Now()

	// Use a string builder to collect the response
	var responseBuilder strings.Builder

	// Make the request
	err := o.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate response: %v", ErrGeneration, err)
	}

	o.logger.Debug("generated response",
		zap.String("model", o.Model),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", responseBuilder.Len()),
		zap.Duration("duration", time.Since(start)),
	)

	return responseBuilder.String(), nil
}
