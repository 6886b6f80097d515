// Package utils holds small helpers shared by the HTTP layer that carry no
// wish wall semantics of their own.
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLimit reads a ?limit= value. Empty input and 0 both mean "all",
// which a positive max then bounds to max. Values above max are capped.
// Anything that is not a non-negative integer is an error.
//
//	utils.ParseLimit("25", 500)   // 25, nil
//	utils.ParseLimit("", 500)     // 500, nil
//	utils.ParseLimit("9999", 0)   // 9999, nil
//	utils.ParseLimit("-3", 500)   // 0, error
func ParseLimit(raw string, max int) (int, error) {
	n := 0
	if raw = strings.TrimSpace(raw); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("limit %q is not a non-negative integer", raw)
		}
		n = v
	}
	if max > 0 && (n == 0 || n > max) {
		n = max
	}
	return n, nil
}
