// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// SplitList splits a separated list such as a broker list from the
// environment, trimming each element and dropping empties and duplicates.
// Order is preserved; nil is returned when nothing is left.
//
//	SplitList(" b1:9092, b2:9092 ,b1:9092,", ",")
//	// Returns: []string{"b1:9092", "b2:9092"}
func SplitList(raw, sep string) []string {
	var result []string
	seen := make(map[string]struct{})
	for _, v := range strings.Split(raw, sep) {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
