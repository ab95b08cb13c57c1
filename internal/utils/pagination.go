// Package utils provides small, generic helper functions shared across
// layers. Nothing here knows about users, messages, or conversations.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or not a
// valid integer. Handlers use it for optional numeric query parameters such
// as ?limit=.
//
// Example:
//
//	n := utils.AtoiDefault(c.Query("limit"), 0) // 0 means "use the default"
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
