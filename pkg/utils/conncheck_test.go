package utils

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFromDBURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"with port", "postgresql://user:pw@db:6543/rte", "db:6543"},
		{"default port", "postgresql://user:pw@db/rte", "db:5432"},
		{"short scheme", "postgres://user@localhost:5432/rte", "localhost:5432"},
		{"invalid", "mysql://x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFromDBURL(tt.url))
		})
	}
}

func TestExtractFromNatsURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"with port", "nats://broker:4333", "broker:4333"},
		{"default port", "nats://broker", "broker:4222"},
		{"credentials", "nats://u:p@broker:4222", "broker:4222"},
		{"list", "nats://a:4222,nats://b:4222", "a:4222"},
		{"tls", "tls://secure", "secure:4222"},
		{"invalid", "http://broker", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFromNatsURL(tt.url))
		})
	}
}

func TestWaitForTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	open := ln.Addr().String()

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gone := closed.Addr().String()
	closed.Close()

	ctx := context.Background()
	assert.NoError(t, WaitForTCP(ctx, open, time.Second))
	assert.ErrorIs(t, WaitForTCP(ctx, gone, 300*time.Millisecond), context.DeadlineExceeded)
	assert.ErrorIs(t, WaitForTCP(ctx, "", time.Second), ErrNoAddress)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, WaitForTCP(cancelled, gone, time.Minute), context.Canceled)

	assert.NoError(t, WaitForAll(ctx, time.Second, open, open))
	assert.Error(t, WaitForAll(ctx, 300*time.Millisecond, open, gone))
}
