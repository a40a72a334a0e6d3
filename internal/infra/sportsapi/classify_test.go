package sportsapi

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oddsline-core/pkg/resilience"
)

// netError implements net.Error for testing
type netError struct {
	msg     string
	timeout bool
}

func (e *netError) Error() string   { return e.msg }
func (e *netError) Timeout() bool   { return e.timeout }
func (e *netError) Temporary() bool { return false }

func TestHTTPError_Error(t *testing.T) {
	err := &HTTPError{StatusCode: 503, Message: "Service Unavailable"}

	assert.Equal(t, "HTTP 503: Service Unavailable", err.Error())
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, Classify(nil))
}

func TestClassify_AlreadyClassifiedPassesThrough(t *testing.T) {
	classified := resilience.Transient(DependencyName, errors.New("flaky feed"))

	assert.Same(t, classified, Classify(classified))
}

func TestClassify_StatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       resilience.Kind
	}{
		{
			name:       "request timeout",
			statusCode: 408,
			want:       resilience.KindTransient,
		},
		{
			name:       "too many requests",
			statusCode: 429,
			want:       resilience.KindResourceExhausted,
		},
		{
			name:       "unauthorized",
			statusCode: 401,
			want:       resilience.KindFatal,
		},
		{
			name:       "forbidden",
			statusCode: 403,
			want:       resilience.KindFatal,
		},
		{
			name:       "service unavailable",
			statusCode: 503,
			want:       resilience.KindUnavailable,
		},
		{
			name:       "internal server error",
			statusCode: 500,
			want:       resilience.KindTransient,
		},
		{
			name:       "bad gateway",
			statusCode: 502,
			want:       resilience.KindTransient,
		},
		{
			name:       "bad request",
			statusCode: 400,
			want:       resilience.KindInvalidInput,
		},
		{
			name:       "not found",
			statusCode: 404,
			want:       resilience.KindInvalidInput,
		},
		{
			name:       "unprocessable entity",
			statusCode: 422,
			want:       resilience.KindInvalidInput,
		},
		{
			name:       "gone",
			statusCode: 410,
			want:       resilience.KindInvalidInput,
		},
		{
			name:       "unexpected redirect",
			statusCode: 302,
			want:       resilience.KindFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := &HTTPError{StatusCode: tt.statusCode, Message: tt.name}

			got := Classify(httpErr)

			require.Error(t, got)
			assert.Equal(t, tt.want, resilience.KindOf(got))
			assert.True(t, errors.Is(got, httpErr))

			var failure *resilience.Failure
			require.True(t, errors.As(got, &failure))
			assert.Equal(t, DependencyName, failure.Dependency)
		})
	}
}

func TestClassify_NetworkErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want resilience.Kind
	}{
		{
			name: "dns no such host",
			err:  &net.DNSError{Err: "no such host", Name: "feeds.example.com", IsNotFound: true},
			want: resilience.KindUnavailable,
		},
		{
			name: "dns timeout",
			err:  &net.DNSError{Err: "lookup timeout", Name: "feeds.example.com", IsTimeout: true},
			want: resilience.KindTransient,
		},
		{
			name: "connection refused",
			err:  &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
			want: resilience.KindUnavailable,
		},
		{
			name: "connection reset",
			err:  &net.OpError{Op: "read", Net: "tcp", Err: syscall.ECONNRESET},
			want: resilience.KindTransient,
		},
		{
			name: "io timeout",
			err:  &netError{msg: "i/o timeout", timeout: true},
			want: resilience.KindTransient,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: resilience.KindTransient,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			want: resilience.KindFatal,
		},
		{
			name: "unrecognized error",
			err:  errors.New("something odd"),
			want: resilience.KindFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)

			require.Error(t, got)
			assert.Equal(t, tt.want, resilience.KindOf(got))
			assert.True(t, errors.Is(got, tt.err))
		})
	}
}
