package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ocakhasan/askdata/pkg/httpclient"
	"github.com/ocakhasan/askdata/pkg/jsonrpc"
)

// callTimeout bounds every transport call. A timed-out call is treated as
// failed, not retried; retry is the reasoning loop's decision.
const callTimeout = 10 * time.Second

// RemoteToolSource manages the tools advertised by a single tool server.
type RemoteToolSource struct {
	name       string
	url        string
	httpClient *httpclient.Client
	tools      map[string]Tool
	mu         sync.RWMutex
}

// RemoteTool is a discovered tool handle backed by a tool server.
type RemoteTool struct {
	toolInfo ToolInfo
	source   *RemoteToolSource
}

// CallParams are the parameters of a tools/call request.
type CallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// NewRemoteToolSource creates a tool source for the server at url.
func NewRemoteToolSource(name, url string) *RemoteToolSource {
	if name == "" {
		name = "remote"
	}

	return &RemoteToolSource{
		name: name,
		url:  url,
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: callTimeout}),
			httpclient.WithRetryStrategy(httpclient.NeverRetry),
		),
		tools: make(map[string]Tool),
	}
}

// Discover returns the invocable tool handles advertised at endpoint.
// Any discovery failure yields an empty slice: a tenant with zero tools is
// not an error, it only produces an agent with no capabilities.
func Discover(ctx context.Context, endpoint string) []Tool {
	source := NewRemoteToolSource("", endpoint)
	if err := source.DiscoverTools(ctx); err != nil {
		slog.Error("tool discovery failed", "endpoint", endpoint, "error", err)
		return nil
	}

	infos := source.ListTools()
	handles := make([]Tool, 0, len(infos))
	for _, info := range infos {
		if tool, ok := source.GetTool(info.Name); ok {
			handles = append(handles, tool)
		}
	}
	return handles
}

func (r *RemoteToolSource) GetName() string {
	return r.name
}

// DiscoverTools queries the server's capability list and rebuilds the
// handle set from it.
func (r *RemoteToolSource) DiscoverTools(ctx context.Context) error {
	infos, err := r.discoverFromServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover tools from %s: %w", r.url, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools = make(map[string]Tool, len(infos))
	for _, info := range infos {
		r.tools[info.Name] = &RemoteTool{toolInfo: info, source: r}
	}

	slog.Info("discovered tools", "endpoint", r.url, "count", len(r.tools))
	return nil
}

func (r *RemoteToolSource) ListTools() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]ToolInfo, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool.GetInfo())
	}
	return tools
}

func (r *RemoteToolSource) GetTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

func (r *RemoteToolSource) discoverFromServer(ctx context.Context) ([]ToolInfo, error) {
	response, err := r.makeRequest(ctx, "tools/list", struct{}{})
	if err != nil {
		return nil, err
	}

	if response.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", response.Error.Code, response.Error.Message)
	}

	var tools []ToolInfo
	result, ok := response.Result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("malformed tools/list result")
	}

	toolsArray, _ := result["tools"].([]interface{})
	for _, item := range toolsArray {
		tool, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		info := ToolInfo{
			Name:        getString(tool, "name"),
			Description: getString(tool, "description"),
			ServerURL:   r.url,
		}

		if schema, ok := tool["inputSchema"].(map[string]interface{}); ok {
			if properties, ok := schema["properties"].(map[string]interface{}); ok {
				for paramName, paramData := range properties {
					param, ok := paramData.(map[string]interface{})
					if !ok {
						continue
					}
					toolParam := ToolParameter{
						Name:        paramName,
						Type:        getString(param, "type"),
						Description: getString(param, "description"),
						Required:    isRequired(schema, paramName),
					}
					if defaultVal, ok := param["default"]; ok {
						toolParam.Default = defaultVal
					}
					info.Parameters = append(info.Parameters, toolParam)
				}
			}
		}

		tools = append(tools, info)
	}

	return tools, nil
}

// makeRequest posts a JSON-RPC request and decodes the response envelope.
func (r *RemoteToolSource) makeRequest(ctx context.Context, method string, params interface{}) (*jsonrpc.Response, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}

	requestBody, err := json.Marshal(jsonrpc.Request{
		JSONRPC: jsonrpc.Version,
		ID:      1,
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, httpErr := r.httpClient.Do(req)
	if httpResp == nil {
		return nil, fmt.Errorf("request failed: %w", httpErr)
	}
	defer httpResp.Body.Close()

	responseBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Protocol errors ride on 4xx status codes with the error envelope in
	// the body, so decode before treating the status as fatal.
	var rpcResp jsonrpc.Response
	if err := json.Unmarshal(responseBody, &rpcResp); err != nil {
		if httpErr != nil {
			return nil, fmt.Errorf("request failed: %w", httpErr)
		}
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	if httpErr != nil && rpcResp.Error == nil {
		return nil, fmt.Errorf("request failed: %w", httpErr)
	}

	return &rpcResp, nil
}

func (t *RemoteTool) GetInfo() ToolInfo {
	return t.toolInfo
}

func (t *RemoteTool) GetName() string {
	return t.toolInfo.Name
}

func (t *RemoteTool) GetDescription() string {
	return t.toolInfo.Description
}

// Execute invokes the tool on its server. Every failure mode, transport
// included, folds into a failed ToolResult.
func (t *RemoteTool) Execute(ctx context.Context, args map[string]interface{}) ToolResult {
	start := time.Now()

	fail := func(err error) ToolResult {
		return ToolResult{
			Success:       false,
			Error:         err.Error(),
			ToolName:      t.toolInfo.Name,
			ExecutionTime: time.Since(start),
		}
	}

	response, err := t.source.makeRequest(ctx, "tools/call", CallParams{
		Name:      t.toolInfo.Name,
		Arguments: args,
	})
	if err != nil {
		return fail(err)
	}

	if response.Error != nil {
		return fail(fmt.Errorf("rpc error %d: %s", response.Error.Code, response.Error.Message))
	}

	result, ok := response.Result.(map[string]interface{})
	if !ok {
		return fail(fmt.Errorf("malformed tool result"))
	}

	if success, ok := result["success"].(bool); ok && !success {
		errMsg, _ := result["error"].(string)
		if errMsg == "" {
			errMsg = "tool execution failed"
		}
		return ToolResult{
			Success:       false,
			Error:         errMsg,
			Output:        result,
			ToolName:      t.toolInfo.Name,
			ExecutionTime: time.Since(start),
		}
	}

	content, _ := json.Marshal(result)
	return ToolResult{
		Success:       true,
		Content:       string(content),
		Output:        result,
		ToolName:      t.toolInfo.Name,
		ExecutionTime: time.Since(start),
	}
}

func (t *RemoteTool) ExecuteRaw(ctx context.Context, raw string) ToolResult {
	return t.Execute(ctx, ParseArguments(raw))
}

func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func isRequired(schema map[string]interface{}, paramName string) bool {
	required, ok := schema["required"].([]interface{})
	if !ok {
		return false
	}
	for _, req := range required {
		if req == paramName {
			return true
		}
	}
	return false
}
