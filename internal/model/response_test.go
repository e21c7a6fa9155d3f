package model

import (
	"testing"
)

// TestResponseIsRedirect tests 3xx detection.
func TestResponseIsRedirect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   bool
	}{
		{status: 200, want: false},
		{status: 299, want: false},
		{status: 301, want: true},
		{status: 302, want: true},
		{status: 399, want: true},
		{status: 400, want: false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.status}
		if got := resp.IsRedirect(); got != tt.want {
			t.Errorf("IsRedirect() for %d = %v, want %v", tt.status, got, tt.want)
		}
	}
}

// TestResponseLocation tests Location header access.
func TestResponseLocation(t *testing.T) {
	t.Parallel()

	resp := &Response{StatusCode: 301}
	resp.Header.Add("Location", "http://example.com/new")

	if got := resp.Location(); got != "http://example.com/new" {
		t.Errorf("Location() = %q, want %q", got, "http://example.com/new")
	}

	empty := &Response{StatusCode: 200}
	if got := empty.Location(); got != "" {
		t.Errorf("Location() = %q, want empty", got)
	}
}

// TestResponseText tests body decoding to UTF-8.
func TestResponseText(t *testing.T) {
	t.Parallel()

	t.Run("utf-8 passes through", func(t *testing.T) {
		t.Parallel()

		resp := &Response{Body: []byte("héllo wörld")}
		resp.Header.Add("Content-Type", "text/plain; charset=utf-8")

		text, err := resp.Text()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "héllo wörld" {
			t.Errorf("Text() = %q, want %q", text, "héllo wörld")
		}
	})

	t.Run("latin-1 is decoded", func(t *testing.T) {
		t.Parallel()

		// "café" in ISO-8859-1: é is a single 0xE9 byte.
		resp := &Response{Body: []byte{'c', 'a', 'f', 0xE9}}
		resp.Header.Add("Content-Type", "text/plain; charset=iso-8859-1")

		text, err := resp.Text()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "café" {
			t.Errorf("Text() = %q, want %q", text, "café")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		resp := &Response{}
		text, err := resp.Text()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "" {
			t.Errorf("Text() = %q, want empty", text)
		}
	})
}
