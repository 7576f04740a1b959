package result

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		want       ErrorCategory
	}{
		{
			name:       "4xx status",
			err:        nil,
			statusCode: 404,
			want:       Category4xx,
		},
		{
			name:       "5xx status",
			err:        nil,
			statusCode: 500,
			want:       Category5xx,
		},
		{
			name:       "timeout error",
			err:        context.DeadlineExceeded,
			statusCode: 0,
			want:       CategoryTimeout,
		},
		{
			name:       "wrapped timeout error",
			err:        fmt.Errorf("head: %w", context.DeadlineExceeded),
			statusCode: 0,
			want:       CategoryTimeout,
		},
		{
			name:       "cancelled",
			err:        context.Canceled,
			statusCode: 0,
			want:       CategoryCancelled,
		},
		{
			name:       "status wins over error",
			err:        errors.New("boom"),
			statusCode: 503,
			want:       Category5xx,
		},
		{
			name:       "no error no status",
			err:        nil,
			statusCode: 0,
			want:       CategoryUnknown,
		},
		{
			name:       "3xx status is unknown",
			err:        nil,
			statusCode: 301,
			want:       CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err, tt.statusCode)
			if got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyError_DNSFailure(t *testing.T) {
	// Create a DNS error
	dnsErr := &net.DNSError{
		Err:  "no such host",
		Name: "example.invalid",
	}

	got := ClassifyError(dnsErr, 0)
	if got != CategoryDNSFailure {
		t.Errorf("ClassifyError(DNSError) = %v, want %v", got, CategoryDNSFailure)
	}
}

func TestFormatCategory(t *testing.T) {
	tests := []struct {
		cat  ErrorCategory
		want string
	}{
		{CategoryTimeout, "Timeouts"},
		{CategoryDNSFailure, "DNS Failures"},
		{CategoryConnectionRefused, "Connection Refused"},
		{Category4xx, "Client Errors (4xx)"},
		{Category5xx, "Server Errors (5xx)"},
		{CategoryCancelled, "Cancelled"},
		{CategoryUnknown, "Other Errors"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			got := FormatCategory(tt.cat)
			if got != tt.want {
				t.Errorf("FormatCategory(%v) = %v, want %v", tt.cat, got, tt.want)
			}
		})
	}
}

func TestClassifyError_ConnectionRefused(t *testing.T) {
	err := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")}

	if got := ClassifyError(err, 0); got != CategoryConnectionRefused {
		t.Errorf("ClassifyError(OpError) = %v, want %v", got, CategoryConnectionRefused)
	}
}

func TestReason(t *testing.T) {
	long := errors.New(strings.Repeat("x", 250))

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", fmt.Errorf("get: %w", context.DeadlineExceeded), "Timeout"},
		{"dns", &net.DNSError{Err: "no such host", Name: "docs.invalid"}, "DNS failure"},
		{"refused", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, "Connection refused"},
		{"other", errors.New("tls: handshake failure"), "Error: tls: handshake failure"},
		{"truncated", long, "Error: " + strings.Repeat("x", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reason(tt.err); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}
