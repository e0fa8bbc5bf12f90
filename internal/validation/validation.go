// Package validation provides request field validation helpers.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidatePositiveID returns an error unless the value is a positive integer.
func ValidatePositiveID(field string, value int64) *ValidationError {
	if value <= 0 {
		return &ValidationError{
			Field:   field,
			Message: "must be a positive integer",
		}
	}
	return nil
}

// ValidateRating returns an error unless the value is a 1-5 star rating.
func ValidateRating(field string, value int) *ValidationError {
	if value < 1 || value > 5 {
		return &ValidationError{
			Field:   field,
			Message: "must be between 1 and 5",
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateRange returns an error if the value is outside [min, max].
func ValidateRange(field string, value, min, max float64) *ValidationError {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %.1f and %.1f", min, max),
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidatePriceBounds returns an error when a min/max price pair is inverted
// or negative. Either bound may be nil.
func ValidatePriceBounds(field string, minPrice, maxPrice *float64) *ValidationError {
	if minPrice != nil && *minPrice < 0 {
		return &ValidationError{Field: field, Message: "min_price must not be negative"}
	}
	if maxPrice != nil && *maxPrice < 0 {
		return &ValidationError{Field: field, Message: "max_price must not be negative"}
	}
	if minPrice != nil && maxPrice != nil && *minPrice > *maxPrice {
		return &ValidationError{Field: field, Message: "min_price must not exceed max_price"}
	}
	return nil
}
