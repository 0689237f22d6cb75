package toolserver

import "context"

// Descriptor advertises a tool through tools/list. The input schema is a
// JSON Schema fragment that tells the model what arguments to pass.
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Handler executes one tool call. Handlers never return an error; every
// failure is reported inside the result object as {"success": false}.
type Handler func(ctx context.Context, args map[string]interface{}) map[string]interface{}

func descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        "execute_sql",
			Description: "Execute a SQL query on the database. Use this for data retrieval. MUST CALL get_database_schema FIRST to understand the tables since they change per tenant! The query property must be the exact raw SQL SELECT query to run.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The exact SQL select query to execute (SELECT statements only)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "get_database_schema",
			Description: "Get the database schema (tables, columns, types). Use this to understand what data is available before writing SQL queries.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
				"required":   []string{},
			},
		},
		{
			Name:        "search_support_docs",
			Description: "Search support documentation for troubleshooting and error resolution. Use this when users ask about errors, issues, or how to fix problems.",
			InputSchema: searchSchema(),
		},
		{
			Name:        "search_release_notes",
			Description: "Search release notes for version information, features, bug fixes, and deprecations. Use this when users ask about releases, versions, or what's new.",
			InputSchema: searchSchema(),
		},
	}
}

func searchSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query (natural language)",
			},
			"top_k": map[string]interface{}{
				"type":        "integer",
				"description": "Number of documents to return (default: 3)",
				"default":     3,
			},
		},
		"required": []string{"query"},
	}
}
