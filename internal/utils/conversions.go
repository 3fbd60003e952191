// Package utils holds small helpers for decoded JSON and optional config fields.
package utils

import "strings"

// ToStringSlice keeps the string elements of a decoded JSON array.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0, len(slice))
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// SpaceDelimited flattens a claim that is either a space separated string or an array of strings.
func SpaceDelimited(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []any:
		return strings.Join(ToStringSlice(s), " ")
	}
	return ""
}
