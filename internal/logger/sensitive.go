package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// SensitiveDataPatterns match credentials embedded in free text such as request URLs.
var SensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|access[_-]?token|token|secret|password|dsn)=)[^&\s;,]+`),
}

// SensitiveKeywords mark setting or field names whose values must not be printed.
var SensitiveKeywords = []string{"password", "secret", "token", "apikey", "api_key", "dsn", "credential"}

// RedactSensitiveData replaces credential values in input with [REDACTED].
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, p := range SensitiveDataPatterns {
		input = p.ReplaceAllString(input, "${1}"+redacted)
	}
	return input
}

// IsSensitiveKey reports whether a key such as "nutrition.apikey" names a secret.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, kw := range SensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

// RedactValue hides non-empty values of sensitive keys.
func RedactValue(key, value string) string {
	if value != "" && IsSensitiveKey(key) {
		return redacted
	}
	return value
}
