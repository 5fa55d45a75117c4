package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 1024
	apiURL           = "https://api.anthropic.com/v1/messages"
	apiVersion       = "2023-06-01"
)

// AnthropicGenerator writes email bodies with the Claude Messages API.
type AnthropicGenerator struct {
	apiKey string
	model  string
	url    string
	client *http.Client
}

// NewAnthropic creates an AnthropicGenerator.  An empty modelName selects the
// default model.
func NewAnthropic(apiKey, modelName string, timeout time.Duration) *AnthropicGenerator {
	if modelName == "" {
		modelName = defaultModel
	}
	return &AnthropicGenerator{
		apiKey: apiKey,
		model:  modelName,
		url:    apiURL,
		client: &http.Client{Timeout: timeout},
	}
}

// Generate asks the model for a body matching subject.
func (g *AnthropicGenerator) Generate(ctx context.Context, subject string) (string, error) {
	resp, err := g.callAPI(ctx, buildPrompt(subject))
	if err != nil {
		return "", err
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	body := strings.TrimSpace(strings.Join(parts, ""))
	if body == "" {
		return "", fmt.Errorf("model returned an empty body")
	}
	return body, nil
}

// Name returns the generator name.
func (g *AnthropicGenerator) Name() string {
	return "anthropic"
}

// callAPI makes a single request to the Claude Messages API.
func (g *AnthropicGenerator) callAPI(ctx context.Context, prompt string) (*apiResponse, error) {
	reqBody := apiRequest{
		Model:     g.model,
		MaxTokens: defaultMaxTokens,
		Messages: []apiMessage{
			{
				Role: "user",
				Content: []apiContentBlock{
					{Type: "text", Text: prompt},
				},
			},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, g.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Claude API: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// buildPrompt constrains the model to subject-specific body text.
func buildPrompt(subject string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert email writer. Write a complete, professional ")
	sb.WriteString(fmt.Sprintf("email body based ONLY on this subject: %q\n\n", subject))
	sb.WriteString("Instructions:\n")
	sb.WriteString("1. Start with an appropriate greeting (e.g., \"Hi,\" or \"Hello,\")\n")
	sb.WriteString(fmt.Sprintf("2. Write 2-4 paragraphs that are SPECIFICALLY about %q\n", subject))
	sb.WriteString("3. Separate paragraphs with blank lines\n")
	sb.WriteString("4. Use a professional yet friendly tone\n")
	sb.WriteString("5. End with an appropriate closing (e.g., \"Best regards,\" or \"Thanks,\")\n")
	sb.WriteString("6. Do NOT repeat the subject line in the body\n\n")
	sb.WriteString("Now write the email body:")
	return sb.String()
}

// --- Claude API types ---

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string            `json:"role"`
	Content []apiContentBlock `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
