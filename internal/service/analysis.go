package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-resty/resty/v2"

	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/domain"
	"github.com/timmy/sportsclips/internal/moments"
	"github.com/timmy/sportsclips/internal/prompts"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"

	externalCallTimeout = 30 * time.Second
)

// AnalysisRequest is the material sent to the generative analysis collaborator.
type AnalysisRequest struct {
	Sport       string
	Keywords    []string
	Title       string
	Description string
	Segments    []domain.TranscriptSegment
}

// Analysis is the parsed model answer. Relevance is nil when the model gave none.
type Analysis struct {
	Relevance  *float64
	Summary    string
	KeyMoments []moments.Moment
}

// Analyzer produces a relevance estimate, summary and key moments for a video.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error)
}

// NewAnalyzer builds the configured analyzer. It returns nil when analysis is disabled.
// Parameters:
//   - cfg: provider, model, credentials and endpoint.
// Returns:
//   - Analyzer: OpenAI-compatible or Anthropic implementation, or nil.
//   - error: non-nil for an unknown provider.
func NewAnalyzer(cfg *config.AnalysisConfig) (Analyzer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return NewOpenAIAnalyzer(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicAnalyzer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown analysis provider: %s", cfg.Provider)
	}
}

// OpenAIAnalyzer calls an OpenAI-compatible chat completions endpoint.
type OpenAIAnalyzer struct {
	client    *resty.Client
	model     string
	maxTokens int
	endpoint  string
}

// NewOpenAIAnalyzer creates an OpenAIAnalyzer.
func NewOpenAIAnalyzer(cfg *config.AnalysisConfig) *OpenAIAnalyzer {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(externalCallTimeout)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &OpenAIAnalyzer{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		endpoint:  baseURL + "/chat/completions",
	}
}

// OpenAI-compatible Chat Completion API request/response structures
type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Analyze implements Analyzer.
func (a *OpenAIAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	body := openAIRequest{
		Model: a.model,
		Messages: []openAIMessage{
			{Role: "system", Content: prompts.AnalysisSystemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		MaxTokens:      a.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var resp openAIResponse
	httpResp, err := a.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&resp).
		SetError(&resp).
		Post(a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call analysis API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		}
		return nil, fmt.Errorf("analysis API returned error: %s", errorMsg)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("analysis API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in analysis response (status: %d)", httpResp.StatusCode())
	}

	return ParseAnalysis(resp.Choices[0].Message.Content)
}

// AnthropicAnalyzer calls the Anthropic Messages API.
type AnthropicAnalyzer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicAnalyzer creates an AnthropicAnalyzer. An OpenAI default base URL is ignored.
func NewAnthropicAnalyzer(cfg *config.AnalysisConfig) *AnthropicAnalyzer {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(externalCallTimeout),
	}
	if cfg.BaseURL != "" && !strings.Contains(cfg.BaseURL, "openai.com") {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicAnalyzer{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// Analyze implements Analyzer.
func (a *AnthropicAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: prompts.AnalysisSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt(req))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call Anthropic API: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("no text in Anthropic response")
	}
	return ParseAnalysis(text.String())
}

func userPrompt(req AnalysisRequest) string {
	var lines strings.Builder
	for _, seg := range req.Segments {
		fmt.Fprintf(&lines, "[%.0f] %s\n", seg.Start, seg.Text)
		if lines.Len() > prompts.MaxTranscriptChars {
			break
		}
	}
	return prompts.AnalysisUserPrompt(req.Sport, req.Keywords, req.Title, req.Description, lines.String())
}

type analysisPayload struct {
	Relevance  *float64 `json:"relevance"`
	Summary    string   `json:"summary"`
	KeyMoments []struct {
		Start       float64 `json:"start"`
		End         float64 `json:"end"`
		Label       string  `json:"label"`
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	} `json:"keyMoments"`
}

// ParseAnalysis decodes the JSON object in a model answer. Code fences and text around
// the object are ignored. Relevance is clamped to [0,1].
func ParseAnalysis(content string) (*Analysis, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in analysis response")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	out := &Analysis{Summary: strings.TrimSpace(payload.Summary)}
	if payload.Relevance != nil {
		r := *payload.Relevance
		if r < 0 {
			r = 0
		} else if r > 1 {
			r = 1
		}
		out.Relevance = &r
	}
	for _, m := range payload.KeyMoments {
		out.KeyMoments = append(out.KeyMoments, moments.Moment{
			Start:       m.Start,
			End:         m.End,
			Label:       m.Label,
			Description: m.Description,
			Confidence:  m.Confidence,
		})
	}
	return out, nil
}
