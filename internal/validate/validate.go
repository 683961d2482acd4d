// SPDX-License-Identifier: MIT

// Package validate accumulates configuration validation errors so that a
// single Load reports every problem at once.
package validate

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	xnet "github.com/ManuGH/xgcurate/internal/platform/net"
)

// Error is a single rejected field.
type Error struct {
	Field   string
	Value   any // redacted for URLs
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError bundles every Error found by a Validator.
type ValidationError struct {
	errors []Error
}

// Errors returns the individual field errors.
func (e ValidationError) Errors() []Error {
	return e.errors
}

func (e ValidationError) Error() string {
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validator collects field errors. The zero value is ready to use.
type Validator struct {
	errors []Error
}

// New returns an empty Validator.
func New() *Validator {
	return &Validator{}
}

// AddError records a failed field.
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) check(ok bool, field string, value any, format string, args ...any) {
	if !ok {
		v.AddError(field, fmt.Sprintf(format, args...), value)
	}
}

// IsValid reports whether no error has been recorded.
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns the recorded errors.
func (v *Validator) Errors() []Error {
	return v.errors
}

// Err returns a ValidationError holding a copy of the recorded errors, or
// nil when there are none.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errors: slices.Clone(v.errors)}
}

// URL requires an absolute URL with a host and, when allowedSchemes is not
// empty, one of those schemes.
func (v *Validator) URL(field, value string, allowedSchemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), xnet.SanitizeURL(value))
		return
	}
	if u.Host == "" {
		v.AddError(field, "URL must have a host", xnet.SanitizeURL(value))
		return
	}
	if len(allowedSchemes) > 0 {
		v.check(slices.Contains(allowedSchemes, strings.ToLower(u.Scheme)), field, xnet.SanitizeURL(value),
			"unsupported URL scheme %q (allowed: %v)", u.Scheme, allowedSchemes)
	}
}

// Location accepts an http(s) URL, a file:// URL or a plain filesystem path.
func (v *Validator) Location(field, value string) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		v.AddError(field, "location cannot be empty", value)
	case !strings.Contains(value, "://"):
	case strings.HasPrefix(strings.ToLower(value), "file://"):
		v.check(strings.TrimLeft(value[len("file://"):], "/") != "", field, value, "file URL must have a path")
	default:
		v.URL(field, value, []string{"http", "https"})
	}
}

// Range requires minVal <= value <= maxVal.
func (v *Validator) Range(field string, value, minVal, maxVal int) {
	v.check(value >= minVal && value <= maxVal, field, value,
		"value must be between %d and %d, got %d", minVal, maxVal, value)
}

// FloatRange is Range for floats.
func (v *Validator) FloatRange(field string, value, minVal, maxVal float64) {
	v.check(value >= minVal && value <= maxVal, field, value,
		"value must be between %g and %g, got %g", minVal, maxVal, value)
}

// NotEmpty rejects empty and whitespace-only strings.
func (v *Validator) NotEmpty(field, value string) {
	v.check(strings.TrimSpace(value) != "", field, value, "value cannot be empty")
}

// OneOf requires value to be one of allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	v.check(slices.Contains(allowed, value), field, value, "value must be one of %v, got %q", allowed, value)
}

// NonNegative requires value >= 0.
func (v *Validator) NonNegative(field string, value int) {
	v.check(value >= 0, field, value, "value cannot be negative, got %d", value)
}

// PositiveDuration requires value > 0.
func (v *Validator) PositiveDuration(field string, value time.Duration) {
	v.check(value > 0, field, value, "duration must be positive, got %s", value)
}

// Custom records the error returned by fn, if any.
func (v *Validator) Custom(field string, value any, fn func(any) error) {
	if err := fn(value); err != nil {
		v.AddError(field, err.Error(), value)
	}
}
