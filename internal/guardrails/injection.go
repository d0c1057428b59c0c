package guardrails

import "regexp"

// injectionPattern pairs one denylist regexp with the semantic tag the
// audit trail records for a match — never the pattern's own source text,
// which would leak the detection rule (and, for some patterns, fragments
// of the payload) into a log line.
type injectionPattern struct {
	re   *regexp.Regexp
	kind string
}

// injectionPatterns is the fixed denylist of spec.md §4.10. A positive
// match raises a security violation; the payload itself is never logged
// or echoed, only the fact that a match occurred and its kind.
var injectionPatterns = []injectionPattern{
	{regexp.MustCompile(`(?i)<script`), "script-injection"},
	{regexp.MustCompile(`(?i)javascript:`), "script-injection"},
	{regexp.MustCompile(`(?i)on[a-z]+\s*=`), "script-injection"},
	{regexp.MustCompile(`(?i)eval\(`), "script-injection"},
	{regexp.MustCompile(`(?i)exec\(`), "script-injection"},
	{regexp.MustCompile(`__import__`), "script-injection"},
	{regexp.MustCompile(`\$\{.*\}`), "template-injection"},
	{regexp.MustCompile(`\{\{.*\}\}`), "template-injection"},
	{regexp.MustCompile(`\.\./`), "path-traversal"},
	{regexp.MustCompile(`/etc/passwd`), "path-traversal"},
	{regexp.MustCompile(`/bin/bash`), "path-traversal"},
	{regexp.MustCompile(`(?i)cmd\.exe`), "path-traversal"},
	{regexp.MustCompile(`(?i)\b(rm|del|drop|truncate)\b`), "destructive-verb"},
}

// DetectInjection scans s against the fixed denylist, returning the
// semantic kind of the first matching pattern, if any.
func DetectInjection(s string) (matched bool, kind string) {
	for _, p := range injectionPatterns {
		if p.re.MatchString(s) {
			return true, p.kind
		}
	}
	return false, ""
}

// ScanStringFields recursively scans every string value reachable from v
// (a decoded JSON argument object) for an injection match.
func ScanStringFields(v interface{}) (matched bool, kind string) {
	switch t := v.(type) {
	case string:
		return DetectInjection(t)
	case []interface{}:
		for _, item := range t {
			if m, k := ScanStringFields(item); m {
				return m, k
			}
		}
	case map[string]interface{}:
		for k, val := range t {
			if m, kind := DetectInjection(k); m {
				return m, kind
			}
			if m, kind := ScanStringFields(val); m {
				return m, kind
			}
		}
	}
	return false, ""
}
