package api

import (
	"testing"
	"time"
)

func TestBackoffDuration(t *testing.T) {
	if d := backoffDuration(0); d != 100*time.Millisecond {
		t.Fatalf("backoffDuration(0) = %v, want 100ms", d)
	}
	if d := backoffDuration(2); d != 200*time.Millisecond {
		t.Fatalf("backoffDuration(2) = %v, want 200ms", d)
	}
	if d := backoffDuration(3); d != 400*time.Millisecond {
		t.Fatalf("backoffDuration(3) = %v, want 400ms", d)
	}
	// growth is bounded for large attempt counts
	if d := backoffDuration(20); d != backoffDuration(6) {
		t.Fatalf("backoffDuration unbounded: %v vs %v", d, backoffDuration(6))
	}
}

func TestShouldRetryStatus(t *testing.T) {
	for _, code := range []int{500, 502, 503, 504} {
		if !shouldRetryStatus(code) {
			t.Fatalf("status %d not retried", code)
		}
	}
	for _, code := range []int{200, 204, 400, 401, 404, 409} {
		if shouldRetryStatus(code) {
			t.Fatalf("status %d retried", code)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("a long response body", 6); got != "a long" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestNewClientNormalizesBaseURL(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	if c.baseURL != "http://localhost:8080" {
		t.Fatalf("baseURL = %q", c.baseURL)
	}
}
