package bluelink

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx response from the Bluelink API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("bluelink: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bluelink: http %d", e.StatusCode)
}

// Substrings the vendor uses across regions to signal an expired or
// invalid session. Matching is case-insensitive on the whole error text.
var defaultAuthPatterns = []string{
	"token is expired",
	"key not authorized",
	"authentication failed",
	"unauthorized",
}

// ErrorClassifier decides whether a failed call means the session
// credentials have expired.
type ErrorClassifier struct {
	patterns []string
}

// NewErrorClassifier builds a classifier with the default vendor
// patterns plus any extra configured ones.
func NewErrorClassifier(extraPatterns []string) *ErrorClassifier {
	patterns := make([]string, 0, len(defaultAuthPatterns)+len(extraPatterns))
	patterns = append(patterns, defaultAuthPatterns...)
	for _, p := range extraPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return &ErrorClassifier{patterns: patterns}
}

// IsAuthExpired reports whether err looks like an expired session.
func (c *ErrorClassifier) IsAuthExpired(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, pattern := range c.patterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}
