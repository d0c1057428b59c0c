package guardrails

import (
	"regexp"

	"tagcompliance/internal/errkind"
)

// sanitizer patterns strip anything that could leak process/host detail
// across the boundary: absolute paths, long-lived credential prefixes,
// connection strings, internal IPs, and stack frames.
var (
	absolutePathPattern   = regexp.MustCompile(`(/[A-Za-z0-9_.\-]+){2,}`)
	credentialPattern     = regexp.MustCompile(`(?i)(AKIA|ASIA)[A-Z0-9]{16}`)
	connectionStringPattern = regexp.MustCompile(`(?i)[a-z]+://[^:\s]+:[^@\s]+@[^\s]+`)
	internalIPPattern     = regexp.MustCompile(`\b(10\.\d{1,3}\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3}|172\.(1[6-9]|2\d|3[0-1])\.\d{1,3}\.\d{1,3})\b`)
	stackFramePattern     = regexp.MustCompile(`(?m)^\s*at .+\(.+:\d+\)$`)
)

const redacted = "[redacted]"

// safeMessages is the fixed mapping from error kind to a user-safe
// message, applied after redaction regardless of the underlying cause.
var safeMessages = map[errkind.Kind]string{
	errkind.PolicyValidation:  "the server failed to start due to a policy configuration error",
	errkind.CloudAPI:          "a cloud provider call failed; the result may be partial",
	errkind.Cache:             "a transient caching error occurred",
	errkind.Validation:        "the request did not pass argument validation",
	errkind.SecurityViolation: "request rejected",
	errkind.BudgetExhausted:   "the session call budget has been exhausted",
	errkind.LoopDetected:      "an identical call was rejected to break a potential loop",
	errkind.Timeout:           "the request timed out",
	errkind.Cancelled:         "the request was cancelled",
}

// SanitizeError strips any identifying detail from err's message and
// returns a fixed, kind-appropriate safe message. It is the single
// chokepoint every error crosses before it leaves the process boundary,
// per spec.md §7.
func SanitizeError(err error) (safeMessage string, kind errkind.Kind) {
	k, ok := errkind.As(err)
	if !ok {
		k = errkind.Validation
	}
	if msg, ok := safeMessages[k]; ok {
		return msg, k
	}
	return "an internal error occurred", k
}

// RedactDetail scrubs a free-form detail string of paths, credentials,
// connection strings, internal IPs, and stack frames, for the rare case a
// caller needs a redacted detail alongside the fixed safe message (e.g.
// operator-only startup failures).
func RedactDetail(s string) string {
	s = stackFramePattern.ReplaceAllString(s, redacted)
	s = connectionStringPattern.ReplaceAllString(s, redacted)
	s = credentialPattern.ReplaceAllString(s, redacted)
	s = internalIPPattern.ReplaceAllString(s, redacted)
	s = absolutePathPattern.ReplaceAllString(s, redacted)
	return s
}
