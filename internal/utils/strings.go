// Package utils provides small shared helpers with no domain knowledge.
package utils

import "strings"

// ParseCSV splits a comma-separated list into its trimmed non-empty
// entries. Empty input, or input holding nothing but separators and
// whitespace, yields nil. List-valued query parameters such as the
// event type filter on the stream endpoint go through here.
func ParseCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
