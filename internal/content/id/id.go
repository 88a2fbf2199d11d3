// Package id provides unique identifier generation for content items.
package id

import "github.com/google/uuid"

// Generate creates a new unique content ID (a random UUID).
func Generate() string {
	return uuid.NewString()
}

// Valid reports whether s looks like an ID produced by Generate.
func Valid(s string) bool {
	return uuid.Validate(s) == nil
}
