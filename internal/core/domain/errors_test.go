package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestProcessingError_RetryableByKind(t *testing.T) {
	cases := []struct {
		err       *ProcessingError
		retryable bool
	}{
		{NewCredentialError("cookies expired"), false},
		{NewValidationError("missing profile"), false},
		{NewRateLimitError("429 from upstream"), true},
		{NewNetworkError("connect refused", errors.New("dial tcp")), true},
		{&ProcessingError{Kind: ErrorKindInternal, Message: "boom"}, true},
	}

	for _, c := range cases {
		if got := c.err.Retryable(); got != c.retryable {
			t.Errorf("%s: Retryable() = %v, want %v", c.err.Kind, got, c.retryable)
		}
	}
}

func TestClassify_PassesThroughClassifiedErrors(t *testing.T) {
	orig := NewRateLimitError("slow down")
	wrapped := fmt.Errorf("fetch bookmarks: %w", orig)

	got := Classify(wrapped)
	if got != orig {
		t.Errorf("Classify did not unwrap to the original ProcessingError")
	}
	if got.Kind != ErrorKindRateLimit {
		t.Errorf("Kind = %s, want %s", got.Kind, ErrorKindRateLimit)
	}
}

func TestClassify_UnknownErrorsAreRetryableInternal(t *testing.T) {
	got := Classify(errors.New("something odd"))
	if got.Kind != ErrorKindInternal {
		t.Errorf("Kind = %s, want %s", got.Kind, ErrorKindInternal)
	}
	if !got.Retryable() {
		t.Error("unclassified errors must default to retryable")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("02:00")
	if err != nil {
		t.Fatalf("ParseTimeOfDay failed: %v", err)
	}
	if tod.Hour != 2 || tod.Minute != 0 {
		t.Errorf("got %02d:%02d, want 02:00", tod.Hour, tod.Minute)
	}

	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Error("expected error for 25:00")
	}
	if _, err := ParseTimeOfDay("garbage"); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestParseContentType(t *testing.T) {
	for _, ct := range AllContentTypes() {
		got, err := ParseContentType(string(ct))
		if err != nil || got != ct {
			t.Errorf("ParseContentType(%q) = %v, %v", ct, got, err)
		}
	}
	if _, err := ParseContentType("mentions"); err == nil {
		t.Error("expected error for unknown content type")
	}
}
