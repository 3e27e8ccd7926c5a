// Package correlation carries a correlation id from the inbound request
// through logs and spans. Ids are ULIDs unless the caller supplies one.
package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type ctxKey struct{}

// HeaderName carries a caller supplied correlation id across services.
const HeaderName = "X-Correlation-Id"

const maxLength = 128

// Sanitize returns id when it is safe to echo into logs and response
// headers, and "" otherwise.
func Sanitize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxLength {
		return ""
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':':
		default:
			return ""
		}
	}
	return id
}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// ContextWithCorrelationID stores id on ctx. Unsafe ids are dropped.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id = Sanitize(id); id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// EnsureCorrelationID returns ctx carrying a correlation id, minting a ULID
// when none is present.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := ExtractCorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return context.WithValue(ctx, ctxKey{}, id), id
}
