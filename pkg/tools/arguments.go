package tools

import (
	"encoding/json"
	"strings"
)

// ParseArguments resolves the free-form argument text the reasoning loop
// hands to a tool handle. Text that looks like a JSON object is parsed as
// one; anything else (including malformed JSON) is wrapped as the single
// "query" argument, since every query-taking tool names it that.
func ParseArguments(raw string) map[string]interface{} {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &args); err == nil {
			return args
		}
	}
	return map[string]interface{}{"query": raw}
}
