package bluelink

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsAuthExpiredDefaults(t *testing.T) {
	classifier := NewErrorClassifier(nil)

	expired := []error{
		errors.New("Token is Expired"),
		errors.New("request failed: key not authorized"),
		errors.New("AUTHENTICATION FAILED for account"),
		errors.New("unauthorized"),
		&APIError{StatusCode: 401, Message: "session gone"},
	}
	for _, err := range expired {
		if !classifier.IsAuthExpired(err) {
			t.Fatalf("expected %v to classify as auth expiry", err)
		}
	}

	notExpired := []error{
		nil,
		errors.New("gateway timeout"),
		errors.New("vehicle not found"),
		&APIError{StatusCode: 503, Message: "maintenance"},
	}
	for _, err := range notExpired {
		if classifier.IsAuthExpired(err) {
			t.Fatalf("expected %v not to classify as auth expiry", err)
		}
	}
}

func TestIsAuthExpiredExtraPatterns(t *testing.T) {
	classifier := NewErrorClassifier([]string{"Session Invalidated", "  "})

	if !classifier.IsAuthExpired(errors.New("vendor says: session invalidated")) {
		t.Fatalf("configured pattern must match case-insensitively")
	}
}

func TestIsAuthExpiredWrappedError(t *testing.T) {
	classifier := NewErrorClassifier(nil)
	wrapped := fmt.Errorf("send command: %w", &APIError{StatusCode: 401})
	if !classifier.IsAuthExpired(wrapped) {
		t.Fatalf("wrapped 401 must classify as auth expiry")
	}
}
