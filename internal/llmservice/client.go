// Package llmservice turns a question plus retrieved context into a single
// formal sentence, calling a Groq-compatible chat completion backend with
// rate-limit-aware retry.
package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"policy-rag/internal/config"
	"policy-rag/internal/models"
)

// Generator is the backend call surface; langchaingo models satisfy it.
type Generator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// SynthesisError wraps a non-rate-limit backend failure. It is fatal for the
// question that triggered it.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("generative backend error: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// ErrRetriesExhausted is returned when every bounded retry attempt for one
// question hit the rate limit.
var ErrRetriesExhausted = errors.New("rate limit retries exhausted")

const (
	fallbackRetryDelay = 3 * time.Second
	retryHintPadding   = 500 * time.Millisecond
	answerTemperature  = 0.2
	answerMaxTokens    = 700
)

var retryHintRe = regexp.MustCompile(models.RetryHintRegex)

// Synthesizer issues one chat request per question under the fixed
// single-sentence answering contract.
type Synthesizer struct {
	llm              Generator
	pacing           time.Duration
	maxAttempts      int
	maxContextTokens int
	encoding         *tiktoken.Tiktoken

	// sleep is injectable so tests can observe waits without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSynthesizer(llmCfg *config.LLMConfig, ragCfg *config.RAGConfig) (*Synthesizer, error) {
	llm, err := openai.New(
		openai.WithBaseURL(llmCfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmCfg.Key, "Bearer ")),
		openai.WithModel(llmCfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing inference client: %w", err)
	}

	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn().Err(err).Msg("Token encoding unavailable, context budget disabled")
		encoding = nil
	}

	maxAttempts := ragCfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = config.DefaultMaxAttempts
	}

	return &Synthesizer{
		llm:              llm,
		pacing:           time.Duration(ragCfg.RequestDelayMS) * time.Millisecond,
		maxAttempts:      maxAttempts,
		maxContextTokens: ragCfg.MaxContextTokens,
		encoding:         encoding,
		sleep:            sleepContext,
	}, nil
}

// Answer runs the attempt loop for one question. Rate-limited attempts wait
// for the backend's embedded hint plus padding (or a fixed fallback) and try
// again, up to maxAttempts. Any other backend failure propagates immediately.
func (s *Synthesizer) Answer(ctx context.Context, question, contextText string) (string, error) {
	contextText = s.fitContext(contextText)
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: models.SystemPrompt}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: fmt.Sprintf(models.UserPromptTemplate, contextText, question)}},
		},
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		// crude outbound pacing ahead of every request
		if s.pacing > 0 {
			if err := s.sleep(ctx, s.pacing); err != nil {
				return "", err
			}
		}

		resp, err := s.llm.GenerateContent(ctx, messages,
			llms.WithTemperature(answerTemperature),
			llms.WithMaxTokens(answerMaxTokens),
		)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", &SynthesisError{Err: errors.New("backend returned no choices")}
			}
			return enforceSingleSentence(resp.Choices[0].Content), nil
		}

		if !isRateLimited(err) {
			return "", &SynthesisError{Err: err}
		}

		delay := retryDelay(err.Error())
		log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("Rate limited, backing off")
		if err := s.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", ErrRetriesExhausted
}

func isRateLimited(err error) bool {
	return strings.Contains(err.Error(), models.RateLimitSignature)
}

// retryDelay parses the "try again in N s" hint out of the error text and adds
// half a second of padding; without a parseable hint it falls back to a fixed
// delay.
func retryDelay(message string) time.Duration {
	if m := retryHintRe.FindStringSubmatch(message); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration(secs*float64(time.Second)) + retryHintPadding
		}
	}
	return fallbackRetryDelay
}

// enforceSingleSentence truncates the model output at its first period,
// whatever the model actually returned.
func enforceSingleSentence(answer string) string {
	answer = strings.TrimSpace(answer)
	if i := strings.Index(answer, "."); i >= 0 {
		return strings.TrimSpace(answer[:i]) + "."
	}
	return answer
}

// fitContext drops trailing context sections until the whole context fits the
// configured token budget. The first section always survives.
func (s *Synthesizer) fitContext(contextText string) string {
	if s.encoding == nil {
		return contextText
	}
	tokens := len(s.encoding.Encode(contextText, nil, nil))
	log.Debug().Int("context_tokens", tokens).Msg("Assembled context")
	if s.maxContextTokens <= 0 || tokens <= s.maxContextTokens {
		return contextText
	}

	sections := strings.Split(contextText, "\n\n")
	kept := sections[:1]
	total := len(s.encoding.Encode(sections[0], nil, nil))
	for _, section := range sections[1:] {
		n := len(s.encoding.Encode(section, nil, nil))
		if total+n > s.maxContextTokens {
			break
		}
		kept = append(kept, section)
		total += n
	}
	log.Debug().Int("kept_sections", len(kept)).Int("dropped_sections", len(sections)-len(kept)).Msg("Trimmed context to token budget")
	return strings.Join(kept, "\n\n")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
