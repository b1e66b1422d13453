package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// UserPrefix is the key prefix for every cached entry of one user.
func UserPrefix(userID int64) string { return fmt.Sprintf("u:%d:", userID) }

// Key builds a per-user cache key from an endpoint name and its arguments.
func Key(userID int64, endpoint string, args ...string) string {
	var b strings.Builder
	b.WriteString(UserPrefix(userID))
	b.WriteString(endpoint)
	for _, a := range args {
		b.WriteByte(':')
		b.WriteString(strings.ToLower(a))
	}
	return b.String()
}
