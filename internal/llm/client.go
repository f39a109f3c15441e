package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"backend/internal/model"

	"go.uber.org/zap"
)

// Config holds the reasoning collaborator connection settings.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client talks to an Ollama-compatible text-generation endpoint and turns its
// output into an approval verdict. It is the only potentially slow dependency
// of the request lifecycle, so every call is timeout-bound and guarded by a
// circuit breaker; callers treat any error as the degraded-mode signal.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	breaker    *verdictBreaker
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    newVerdictBreaker("llm-evaluate", log),
		log:        log,
	}
}

// EvaluateInvoice submits invoice facts and criteria text and returns the raw
// verdict. Decision normalization is the evaluator's job, not the client's.
func (c *Client) EvaluateInvoice(ctx context.Context, in model.EvaluationInput) (model.Verdict, error) {
	prompt := buildApprovalPrompt(in)
	return c.breaker.Execute(func() (model.Verdict, error) {
		raw, err := c.generate(ctx, prompt)
		if err != nil {
			return model.Verdict{}, err
		}
		return parseVerdict(raw)
	})
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("llm generate status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return response.Response, nil
}

// parseVerdict pulls the JSON object out of the model response. Models pad
// their output with prose often enough that the braces are located manually.
func parseVerdict(raw string) (model.Verdict, error) {
	jsonText, err := extractJSONObject(raw)
	if err != nil {
		return model.Verdict{}, err
	}
	var verdict model.Verdict
	if err := json.Unmarshal([]byte(jsonText), &verdict); err != nil {
		return model.Verdict{}, fmt.Errorf("parse verdict json: %w", err)
	}
	if len(verdict.Reasons) == 0 {
		verdict.Reasons = []string{"Model evaluation completed"}
	}
	return verdict, nil
}

func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object in model response")
	}
	return raw[start : end+1], nil
}
