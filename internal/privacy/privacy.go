// Package privacy scrubs credentials and personal hosts from text that leaves
// the process, such as error telemetry.
package privacy

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/mealsnap/mealsnap-go/internal/logger"
)

const redacted = "[REDACTED]"

var (
	// URL pattern for finding URLs in text
	urlPattern = regexp.MustCompile(`\bhttps?://[^\s"'<>]+`)

	// long hex runs are treated as keys or tokens
	hexTokenPattern = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
)

// ScrubMessage removes credentials from message. URLs keep their scheme, host
// and path; user info and sensitive query values are redacted.
func ScrubMessage(message string) string {
	if message == "" {
		return message
	}
	scrubbed := urlPattern.ReplaceAllStringFunc(message, SanitizeURL)
	scrubbed = logger.RedactSensitiveData(scrubbed)
	return hexTokenPattern.ReplaceAllString(scrubbed, redacted)
}

// SanitizeURL strips user info and redacts sensitive query parameters such as apiKey.
// Unparsable input is returned with every query value redacted.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			return raw[:i] + "?" + redacted
		}
		return raw
	}

	u.User = nil
	if u.RawQuery != "" {
		q := u.Query()
		for key, values := range q {
			if !logger.IsSensitiveKey(key) {
				continue
			}
			for i := range values {
				values[i] = redacted
			}
			q[key] = values
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// ScrubbedError hides credentials in the message of the error it wraps.
// errors.Is and errors.As still see the original chain.
type ScrubbedError struct {
	err error
}

func (e *ScrubbedError) Error() string { return ScrubMessage(e.err.Error()) }

func (e *ScrubbedError) Unwrap() error { return e.err }

// ScrubError wraps err so its message is scrubbed when printed or logged.
// A nil err stays nil.
func ScrubError(err error) error {
	if err == nil {
		return nil
	}
	return &ScrubbedError{err: err}
}
