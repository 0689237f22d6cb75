package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"execute_sql","arguments":{"query":"SELECT 1"}}}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	assert.Equal(t, Version, req.JSONRPC)
	assert.Equal(t, float64(1), req.ID)
	assert.Equal(t, "tools/call", req.Method)
	assert.JSONEq(t, `{"name":"execute_sql","arguments":{"query":"SELECT 1"}}`, string(req.Params))
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse(7, map[string]interface{}{"success": true})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{"success":true}}`, string(data))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(nil, MethodNotFound, "Method not found")

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32601,"message":"Method not found"}}`, string(data))
}

func TestErrorImplementsError(t *testing.T) {
	var err error = &Error{Code: InvalidParams, Message: "missing argument: query"}
	assert.Equal(t, "missing argument: query", err.Error())
}
