package graph

import (
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Helper Functions
// ============================================================================

func getInt64FromRecord(record *neo4j.Record, key string) (int64, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0, false
	}
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		// Ids written by other tools sometimes arrive as floats
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// summarize collapses a Cypher statement onto one line for error messages
func summarize(query string) string {
	s := strings.Join(strings.Fields(query), " ")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}
