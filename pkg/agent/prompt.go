package agent

import (
	"fmt"
	"strings"

	"github.com/ocakhasan/askdata/pkg/memory"
)

// BuildPrompt composes the system instruction, recent session history, and
// the user question into the single prompt the reasoning loop starts from.
func BuildPrompt(tenantID, query string, history []memory.Entry) string {
	systemPrefix := fmt.Sprintf(
		"You are a helpful AI assistant connected to the Multi-Tenant Backend for '%s'. "+
			"You have access to a database via the execute_sql tool, but remember the schema changes per tenant. "+
			"Use get_database_schema to learn the schema before querying.",
		tenantID)

	contextPrompt := ""
	if len(history) > 0 {
		lines := make([]string, 0, len(history))
		for _, entry := range history {
			lines = append(lines, fmt.Sprintf("%s: %s", entry.Role, entry.Text))
		}
		contextPrompt = fmt.Sprintf("\n\nRecent Chat History with User:\n%s\n", strings.Join(lines, "\n"))
	}

	return fmt.Sprintf("%s%s\n\nUser Question: %s", systemPrefix, contextPrompt, query)
}
