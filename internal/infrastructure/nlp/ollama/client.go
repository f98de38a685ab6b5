package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
	"github.com/okupriyanov/document-ai-processor/internal/infrastructure/resilience"
)

// Client drives every enrichment stage through one local LLM endpoint.
// Each stage type below adapts a prompt/parse pair to its outbound port.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Option func(*Client)

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithResilienceExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func New(baseURL, model string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	respText, err := c.client.generateJSON(ctx, "classify", buildClassificationPrompt(text))
	if err != nil {
		return domain.Classification{}, err
	}

	var result domain.Classification
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.Classification{}, domain.WrapError(domain.ErrPermanent, "parse classification json", err)
	}
	if result.Category == "" {
		return domain.Classification{}, domain.WrapError(domain.ErrPermanent, "parse classification json",
			fmt.Errorf("missing category in %q", respText))
	}
	if result.Alternatives == nil {
		result.Alternatives = []domain.Alternative{}
	}
	return result, nil
}

type Summarizer struct {
	client *Client
}

func NewSummarizer(client *Client) *Summarizer {
	return &Summarizer{client: client}
}

func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	summary, err := s.client.generateText(ctx, "summarize", buildSummaryPrompt(text))
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", domain.WrapError(domain.ErrPermanent, "summarize", fmt.Errorf("empty summary"))
	}
	return summary, nil
}

type EntityExtractor struct {
	client *Client
}

func NewEntityExtractor(client *Client) *EntityExtractor {
	return &EntityExtractor{client: client}
}

func (e *EntityExtractor) ExtractEntities(ctx context.Context, text string) (domain.Entities, error) {
	respText, err := e.client.generateJSON(ctx, "entities", buildEntitiesPrompt(text))
	if err != nil {
		return nil, err
	}

	var entities domain.Entities
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &entities); err != nil {
		return nil, domain.WrapError(domain.ErrPermanent, "parse entities json", err)
	}
	if entities == nil {
		entities = domain.Entities{}
	}
	return entities, nil
}

type SentimentAnalyzer struct {
	client *Client
}

func NewSentimentAnalyzer(client *Client) *SentimentAnalyzer {
	return &SentimentAnalyzer{client: client}
}

func (s *SentimentAnalyzer) AnalyzeSentiment(ctx context.Context, text string) (domain.Sentiment, error) {
	respText, err := s.client.generateJSON(ctx, "sentiment", buildSentimentPrompt(text))
	if err != nil {
		return domain.Sentiment{}, err
	}

	var sentiment domain.Sentiment
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &sentiment); err != nil {
		return domain.Sentiment{}, domain.WrapError(domain.ErrPermanent, "parse sentiment json", err)
	}
	if sentiment.Label == "" {
		return domain.Sentiment{}, domain.WrapError(domain.ErrPermanent, "parse sentiment json",
			fmt.Errorf("missing label in %q", respText))
	}
	return sentiment, nil
}

func (c *Client) generateJSON(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	return c.generate(ctx, operation, reqBody)
}

func (c *Client) generateText(ctx context.Context, operation, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, operation, reqBody)
}

func (c *Client) generate(ctx context.Context, operation string, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
