package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ocakhasan/askdata/pkg/httpclient"
)

const (
	DefaultGeminiHost = "https://generativelanguage.googleapis.com"

	defaultMaxTokens = 8192
)

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey      string
	Host        string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// GeminiProvider implements Provider against the Gemini generateContent API.
type GeminiProvider struct {
	config     GeminiConfig
	httpClient *httpclient.Client
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools            []geminiToolSet         `json:"tools,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

// geminiPart holds either text, a functionCall, or a functionResponse.
type geminiPart map[string]interface{}

type geminiToolSet struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultGeminiHost
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &GeminiProvider{
		config: cfg,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithRetryStrategy(httpclient.DefaultRetryStrategy),
			httpclient.WithMaxRetries(3),
		),
	}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, int, error) {
	req := p.buildRequest(messages, tools)

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.config.Host, p.config.Model, p.config.APIKey)

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return "", nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, httpErr := p.httpClient.Do(httpReq)
	if resp == nil {
		return "", nil, 0, fmt.Errorf("gemini request failed: %w", httpErr)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	// The API reports errors with 4xx statuses and a structured error body.
	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		if httpErr != nil {
			return "", nil, 0, fmt.Errorf("gemini request failed: %w", httpErr)
		}
		return "", nil, 0, fmt.Errorf("failed to parse gemini response: %w", err)
	}

	if geminiResp.Error != nil {
		return "", nil, 0, fmt.Errorf("gemini api error: %s", geminiResp.Error.Message)
	}
	if httpErr != nil {
		return "", nil, 0, fmt.Errorf("gemini request failed: %w", httpErr)
	}
	if len(geminiResp.Candidates) == 0 {
		return "", nil, 0, fmt.Errorf("no candidates in response")
	}

	return p.parseResponse(&geminiResp)
}

func (p *GeminiProvider) GetModelName() string {
	return p.config.Model
}

func (p *GeminiProvider) Close() error {
	return nil
}

func (p *GeminiProvider) buildRequest(messages []Message, tools []ToolDefinition) *geminiRequest {
	req := &geminiRequest{
		Contents: p.convertMessages(messages),
		GenerationConfig: &geminiGenerationConfig{
			MaxOutputTokens: p.config.MaxTokens,
		},
	}

	if p.config.Temperature > 0 {
		temp := p.config.Temperature
		req.GenerationConfig.Temperature = &temp
	}

	if len(tools) > 0 {
		decls := make([]geminiFunctionDeclaration, 0, len(tools))
		for _, tool := range tools {
			decls = append(decls, geminiFunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			})
		}
		req.Tools = []geminiToolSet{{FunctionDeclarations: decls}}
	}

	return req
}

func (p *GeminiProvider) convertMessages(messages []Message) []geminiContent {
	var contents []geminiContent

	for _, msg := range messages {
		role := msg.Role
		if role == RoleAssistant {
			role = "model"
		}
		// Gemini has no system role.
		if role == RoleSystem {
			role = "user"
		}

		var parts []geminiPart
		if msg.Content != "" && msg.Role != RoleTool {
			parts = append(parts, geminiPart{"text": msg.Content})
		}

		for _, tc := range msg.ToolCalls {
			parts = append(parts, geminiPart{
				"functionCall": map[string]interface{}{
					"name": tc.Name,
					"args": tc.Arguments,
				},
			})
		}

		if msg.Role == RoleTool {
			role = "user"
			parts = append(parts, geminiPart{
				"functionResponse": map[string]interface{}{
					"name": msg.Name,
					"response": map[string]interface{}{
						"content": msg.Content,
					},
				},
			})
		}

		if len(parts) > 0 {
			contents = append(contents, geminiContent{Role: role, Parts: parts})
		}
	}

	return contents
}

func (p *GeminiProvider) parseResponse(resp *geminiResponse) (string, []ToolCall, int, error) {
	candidate := resp.Candidates[0]

	var textParts []string
	var toolCalls []ToolCall
	for _, part := range candidate.Content.Parts {
		if text, ok := part["text"].(string); ok {
			textParts = append(textParts, text)
		}
		if fc, ok := part["functionCall"].(map[string]interface{}); ok {
			name, _ := fc["name"].(string)
			args, _ := fc["args"].(map[string]interface{})
			toolCalls = append(toolCalls, ToolCall{
				ID:        fmt.Sprintf("call_%d", len(toolCalls)),
				Name:      name,
				Arguments: args,
			})
		}
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = resp.UsageMetadata.TotalTokenCount
	}

	return strings.Join(textParts, ""), toolCalls, tokens, nil
}

var _ Provider = (*GeminiProvider)(nil)
