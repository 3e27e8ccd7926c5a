// Package cache provides request-scoped memoization. Nothing stored here
// outlives the request context it is attached to.
package cache

import (
	"context"
	"strings"
	"sync"
)

type memoKey struct{}

// Memo holds values computed during one request.
type Memo struct {
	mu      sync.Mutex
	entries map[string]any
}

// WithMemo attaches an empty memo to ctx. A context that already carries one
// is returned unchanged.
func WithMemo(ctx context.Context) context.Context {
	if MemoFromContext(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, memoKey{}, &Memo{entries: make(map[string]any)})
}

func MemoFromContext(ctx context.Context) *Memo {
	if ctx == nil {
		return nil
	}
	memo, _ := ctx.Value(memoKey{}).(*Memo)
	return memo
}

// Load returns the memoized value for key or computes it with fn. Without a
// memo on ctx fn runs every time. Errors are never memoized.
func Load[T any](ctx context.Context, key string, fn func() (T, error)) (T, error) {
	memo := MemoFromContext(ctx)
	if memo == nil {
		return fn()
	}

	memo.mu.Lock()
	if v, ok := memo.entries[key]; ok {
		memo.mu.Unlock()
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	} else {
		memo.mu.Unlock()
	}

	value, err := fn()
	if err != nil {
		return value, err
	}

	memo.mu.Lock()
	memo.entries[key] = value
	memo.mu.Unlock()
	return value, nil
}

// Key joins non-empty parts into a memo key.
func Key(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
