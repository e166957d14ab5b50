package relationship

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Oracle turns a market-batch prompt into raw proposal text. The text is
// expected to contain a JSON array but may be wrapped in prose or code
// fences; the mapper salvages it.
type Oracle interface {
	Propose(ctx context.Context, prompt string) (string, error)
}

const anthropicVersion = "2023-06-01"

// OracleConfig holds the inference endpoint configuration.
type OracleConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
	Logger    *zap.Logger
}

// anthropicOracle calls the public messages API.
type anthropicOracle struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	http      *http.Client
	logger    *zap.Logger
}

// NewOracle creates the messages-API oracle.
func NewOracle(cfg *OracleConfig) (Oracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle api key is not set")
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &anthropicOracle{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: maxTokens,
		http:      httpClient,
		logger:    logger,
	}, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (o *anthropicOracle) Propose(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(&messagesRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", o.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := o.http.Do(req)
	OracleCallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		OracleErrors.Inc()
		return "", fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		OracleErrors.Inc()
		return "", fmt.Errorf("read oracle response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		OracleErrors.Inc()
		return "", fmt.Errorf("oracle status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		OracleErrors.Inc()
		return "", fmt.Errorf("decode oracle response: %w", err)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		OracleErrors.Inc()
		return "", fmt.Errorf("oracle returned no text content")
	}

	o.logger.Debug("oracle-response", zap.Int("chars", len(text)))
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
