package tools

import (
	"reflect"
	"testing"
)

func TestParseArguments_JSONObject(t *testing.T) {
	args := ParseArguments(`{"query": "SELECT 1", "limit": 5}`)

	want := map[string]interface{}{"query": "SELECT 1", "limit": float64(5)}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("expected %v, got %v", want, args)
	}
}

func TestParseArguments_FreeText(t *testing.T) {
	args := ParseArguments("how many tasks failed last week")

	if args["query"] != "how many tasks failed last week" {
		t.Errorf("expected free text wrapped under query, got %v", args)
	}
}

func TestParseArguments_MalformedJSON(t *testing.T) {
	raw := `{"query": "SELECT`
	args := ParseArguments(raw)

	// Malformed JSON falls back to the free-text wrapping.
	if args["query"] != raw {
		t.Errorf("expected raw string under query, got %v", args)
	}
}

func TestParseArguments_Whitespace(t *testing.T) {
	args := ParseArguments("  {\"query\": \"x\"}  ")

	if args["query"] != "x" {
		t.Errorf("expected trimmed JSON parse, got %v", args)
	}
}

func TestParseArguments_Empty(t *testing.T) {
	args := ParseArguments("")

	if args["query"] != "" {
		t.Errorf("expected empty query, got %v", args)
	}
}
