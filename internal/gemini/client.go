// ABOUTME: Generation backend adapter wrapping the Gemini API client.
// ABOUTME: Translates stored turns to Gemini content and classifies outcomes.

package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jarvislabs/jarvis-gateway/internal/store"
)

// DefaultModel is the generation model used when none is configured.
const DefaultModel = "gemini-1.5-flash-latest"

// DefaultTimeout bounds a single generation call. An unbounded hang on the
// backend would stall the calling request indefinitely.
const DefaultTimeout = 30 * time.Second

// defaultSystemPrompt is the persona preamble supplied to the backend on
// every call. It is never stored in conversation history.
const defaultSystemPrompt = "You are Jarvis, a virtual assistant that keeps the full context " +
	"of the prior conversation to give consistent answers."

// safetySettings mirror the moderation thresholds the service has always
// run with: block medium-and-above across all four harm categories.
var safetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
}

// BlockedError reports that the backend produced no usable content, with
// the backend's block reason when it supplied one.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "generation blocked: " + e.Reason
}

// Config holds the settings for the Gemini client.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
}

// Client wraps the Gemini API for the conversation service. It holds no
// per-conversation state; callers supply the full history on every call.
type Client struct {
	client  *genai.Client
	model   string
	system  string
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Gemini client from the given config. The API key is
// required; model, system prompt and timeout fall back to defaults.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		client:  client,
		model:   model,
		system:  system,
		timeout: timeout,
		logger:  slog.Default().With("component", "gemini"),
	}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Generate sends the prior history plus the new user message to Gemini and
// returns the reply text. Outcomes are classified into exactly three
// shapes: reply text, *BlockedError, or a wrapped transport error.
func (c *Client) Generate(ctx context.Context, history []store.Turn, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(c.system)}}
	model.SafetySettings = safetySettings

	session := model.StartChat()
	session.History = historyToContents(history)

	start := time.Now()
	resp, err := session.SendMessage(ctx, genai.Text(message))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			reason := blockReason(blocked)
			c.logger.Warn("generation blocked", "reason", reason)
			return "", &BlockedError{Reason: reason}
		}
		return "", fmt.Errorf("gemini request: %w", err)
	}

	text, reason := extractReply(resp)
	if text == "" {
		c.logger.Warn("generation returned no content", "reason", reason)
		return "", &BlockedError{Reason: reason}
	}

	c.logger.Debug("generation complete",
		"model", c.model,
		"history_turns", len(history),
		"reply_len", len(text),
		"duration", time.Since(start))
	return text, nil
}

// historyToContents converts stored turns into the Gemini wire shape.
// Role names are identical on both sides ("user"/"model").
func historyToContents(history []store.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		parts := make([]genai.Part, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			parts = append(parts, genai.Text(p.Text))
		}
		contents = append(contents, &genai.Content{
			Role:  string(turn.Role),
			Parts: parts,
		})
	}
	return contents
}

// extractReply pulls the reply text out of a response. When no candidate
// carries content it returns the best available block reason instead.
func extractReply(resp *genai.GenerateContentResponse) (text, reason string) {
	if resp == nil {
		return "", "response blocked"
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String(), ""
		}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", enumName(resp.PromptFeedback.BlockReason.String(), "BlockReason")
	}
	for _, cand := range resp.Candidates {
		if cand != nil && cand.FinishReason != genai.FinishReasonUnspecified {
			return "", enumName(cand.FinishReason.String(), "FinishReason")
		}
	}
	return "", "response blocked"
}

// blockReason extracts a reason string from a Gemini blocked error.
func blockReason(err *genai.BlockedError) string {
	if err.PromptFeedback != nil && err.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return enumName(err.PromptFeedback.BlockReason.String(), "BlockReason")
	}
	if err.Candidate != nil && err.Candidate.FinishReason != genai.FinishReasonUnspecified {
		return enumName(err.Candidate.FinishReason.String(), "FinishReason")
	}
	return "response blocked"
}

// enumName strips the Go enum prefix off a generated String() value and
// upper-cases the remainder, e.g. "BlockReasonSafety" -> "SAFETY".
func enumName(s, prefix string) string {
	return strings.ToUpper(strings.TrimPrefix(s, prefix))
}
