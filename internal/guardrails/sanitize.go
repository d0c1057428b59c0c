package guardrails

import (
	"fmt"
	"regexp"
	"strings"
)

// Bounds are the input-sanitiser limits of spec.md §4.10. The argument
// bounds (MaxStringLength..MaxNestingDepth) are enforced by ValidateArgs
// against the decoded tool arguments; the transport bounds
// (MaxBodySizeBytes..MaxPathLength) are enforced by the HTTP transport
// against the raw request, before arguments are ever decoded.
type Bounds struct {
	MaxStringLength int
	MaxListSize     int
	MaxDictKeys     int
	MaxNestingDepth int

	MaxBodySizeBytes     int64
	MaxHeaderSizeBytes   int64
	MaxHeaderCount       int
	MaxQueryStringLength int
	MaxPathLength        int
}

// DefaultBounds mirrors spec.md §4.10's defaults exactly.
var DefaultBounds = Bounds{
	MaxStringLength: 1024,
	MaxListSize:     100,
	MaxDictKeys:     50,
	MaxNestingDepth: 5,

	MaxBodySizeBytes:     10 * 1024 * 1024,
	MaxHeaderSizeBytes:   8 * 1024,
	MaxHeaderCount:       50,
	MaxQueryStringLength: 2048,
	MaxPathLength:        2048,
}

// dangerousHeaders are rejected outright regardless of content.
var dangerousHeaders = map[string]bool{
	"x-forwarded-host": true,
	"x-forwarded-server": true,
	"x-original-url":    true,
	"x-rewrite-url":     true,
}

// IsDangerousHeader reports whether name (case-insensitive) is on the
// denylist of headers that are never accepted, per spec.md §4.10.
func IsDangerousHeader(name string) bool {
	return dangerousHeaders[strings.ToLower(name)]
}

// ValidateHeaderValue rejects CRLF injection in a header value.
func ValidateHeaderValue(value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return fmt.Errorf("header value contains CRLF")
	}
	return nil
}

// ValidateArgs recursively checks v (the decoded JSON argument object)
// against bounds, enforcing max string length, list size, dict key count,
// and nesting depth, and rejecting null bytes and control characters.
func ValidateArgs(v interface{}, bounds Bounds) error {
	return validateDepth(v, bounds, 0)
}

func validateDepth(v interface{}, bounds Bounds, depth int) error {
	if depth > bounds.MaxNestingDepth {
		return fmt.Errorf("nesting depth exceeds %d", bounds.MaxNestingDepth)
	}

	switch t := v.(type) {
	case string:
		return validateString(t, bounds)
	case []interface{}:
		if len(t) > bounds.MaxListSize {
			return fmt.Errorf("list size %d exceeds %d", len(t), bounds.MaxListSize)
		}
		for _, item := range t {
			if err := validateDepth(item, bounds, depth+1); err != nil {
				return err
			}
		}
	case map[string]interface{}:
		if len(t) > bounds.MaxDictKeys {
			return fmt.Errorf("dict key count %d exceeds %d", len(t), bounds.MaxDictKeys)
		}
		for k, val := range t {
			if err := validateString(k, bounds); err != nil {
				return err
			}
			if err := validateDepth(val, bounds, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)

func validateString(s string, bounds Bounds) error {
	if len(s) > bounds.MaxStringLength {
		return fmt.Errorf("string length %d exceeds %d", len(s), bounds.MaxStringLength)
	}
	if strings.ContainsRune(s, 0) {
		return fmt.Errorf("string contains null byte")
	}
	if controlCharPattern.MatchString(s) {
		return fmt.Errorf("string contains a dangerous control character")
	}
	return nil
}
