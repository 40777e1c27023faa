package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// ErrCircuitOpen indicates the engine is cooling off after consecutive
// failures. Callers treat it like any transient translation failure.
var ErrCircuitOpen = errors.New("translate: circuit breaker open")

const (
	defaultModel     = openai.GPT4oMini
	circuitThreshold = 5
	circuitCooloff   = time.Minute
	maxAttempts      = 3

	promptTemplate = "Translate the following text to %s. Preserve Markdown formatting if present. Return only the translated text, nothing else."
)

// OpenAIConfig configures the OpenAI-backed engine.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint (proxies, compatible servers).
	BaseURL string
	// Model defaults to a small chat model.
	Model string
	// RateLimitRPS caps request rate. Default: 2 rps, burst 5.
	RateLimitRPS float64
	Logger       *slog.Logger
}

// OpenAIEngine translates via chat completions. It rate-limits, retries
// transient failures, and opens a circuit breaker after repeated errors.
type OpenAIEngine struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	logger  *slog.Logger

	mu           sync.Mutex
	failures     int
	circuitUntil time.Time
}

// NewOpenAI creates an OpenAIEngine.
func NewOpenAI(cfg OpenAIConfig) *OpenAIEngine {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 2
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEngine{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 5),
		logger:  cfg.Logger,
	}
}

// Translate implements Engine.
func (e *OpenAIEngine) Translate(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return &Result{Skipped: true, SkipReason: "empty text", TargetLang: req.TargetLang}, nil
	}

	if req.CheckIfNeeded {
		if res, skipped := skipDecision(text, req); skipped {
			return res, nil
		}
	}

	if err := e.checkCircuit(); err != nil {
		return nil, err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("translate: rate limiter: %w", err)
	}

	out, err := e.complete(ctx, text, req.TargetLang)
	if err != nil {
		e.recordFailure()
		return nil, err
	}
	e.recordSuccess()

	src := req.SourceLang
	if src == "" || src == "auto" {
		if detected := DetectLanguage(text); detected != "" {
			src = detected
		} else {
			src = "auto"
		}
	}

	return &Result{
		Text:       out,
		SourceLang: src,
		TargetLang: req.TargetLang,
	}, nil
}

// skipDecision applies the local no-network checks: symbol-only text and
// confidently detected source == target. Ambiguous detection defers to the
// model.
func skipDecision(text string, req Request) (*Result, bool) {
	if !hasLetters(text) {
		return &Result{Skipped: true, SkipReason: "no letters", TargetLang: req.TargetLang}, true
	}
	src := req.SourceLang
	if src == "" || src == "auto" {
		src = DetectLanguage(text)
	}
	if src != "" && src == req.TargetLang {
		return &Result{
			Skipped:    true,
			SkipReason: "same language",
			SourceLang: src,
			TargetLang: req.TargetLang,
		}, true
	}
	return nil, false
}

func (e *OpenAIEngine) complete(ctx context.Context, text, targetLang string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(promptTemplate, targetLang)},
				{Role: openai.ChatMessageRoleUser, Content: text},
			},
		})
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("translate: empty completion")
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.logger.Warn("translate: completion failed, retrying",
			"attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return "", fmt.Errorf("translate: completion after %d attempts: %w", maxAttempts, lastErr)
}

func (e *OpenAIEngine) checkCircuit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if time.Now().Before(e.circuitUntil) {
		return fmt.Errorf("%w until %s", ErrCircuitOpen, e.circuitUntil.Format(time.RFC3339))
	}
	return nil
}

func (e *OpenAIEngine) recordSuccess() {
	e.mu.Lock()
	e.failures = 0
	e.mu.Unlock()
}

func (e *OpenAIEngine) recordFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures++
	if e.failures >= circuitThreshold {
		e.circuitUntil = time.Now().Add(circuitCooloff)
		e.logger.Warn("translate: circuit breaker opened",
			"failures", e.failures, "until", e.circuitUntil)
	}
}
